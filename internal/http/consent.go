package http

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
)

func (s *Server) handleConsentRequests(c *gin.Context) {
	c.JSON(http.StatusOK, extensionResponse{OK: true, Data: s.svc.PendingRequests()})
}

func (s *Server) handleConsentGrants(c *gin.Context) {
	c.JSON(http.StatusOK, extensionResponse{OK: true, Data: grantsResp{Grants: s.svc.Grants()}})
}

func (s *Server) handleConsentGrant(c *gin.Context) {
	var g permissions.Grant
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, extensionResponse{Error: HTTPErrorInvalidJSONText})
		return
	}
	s.writeConsentResult(c, s.svc.Grant(c.Request.Context(), g))
}

func (s *Server) handleConsentDeny(c *gin.Context) {
	var g permissions.Grant
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, extensionResponse{Error: HTTPErrorInvalidJSONText})
		return
	}
	s.writeConsentResult(c, s.svc.Deny(c.Request.Context(), g))
}

func (s *Server) handleConsentRevoke(c *gin.Context) {
	var req revokeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, extensionResponse{Error: HTTPErrorInvalidJSONText})
		return
	}
	if permissions.NormalizeAccount(req.AccountAddress) == "" {
		c.JSON(http.StatusBadRequest, extensionResponse{Error: ConsentErrorMissingAccountText})
		return
	}
	s.writeConsentResult(c, s.svc.RevokeAccount(c.Request.Context(), req.AccountAddress))
}

func (s *Server) handleWalletAccount(c *gin.Context) {
	var req selectAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, extensionResponse{Error: HTTPErrorInvalidJSONText})
		return
	}
	s.svc.SelectAccount(c.Request.Context(), req.Address)
	c.JSON(http.StatusOK, extensionResponse{OK: true, Data: gin.H{"address": s.svc.CurrentAccount()}})
}

func (s *Server) handleWalletDefault(c *gin.Context) {
	var req defaultWalletReq
	if err := c.ShouldBindJSON(&req); err != nil || req.DefaultWallet == nil {
		c.JSON(http.StatusBadRequest, extensionResponse{Error: HTTPErrorInvalidJSONText})
		return
	}
	s.svc.SetDefaultWallet(c.Request.Context(), *req.DefaultWallet)
	c.JSON(http.StatusOK, extensionResponse{OK: true})
}

func (s *Server) handleClaimReferrer(c *gin.Context) {
	c.JSON(http.StatusOK, extensionResponse{OK: true, Data: gin.H{"referrer": s.svc.ClaimReferrer()}})
}

func (s *Server) writeConsentResult(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, extensionResponse{OK: true})
	case errors.Is(err, permissions.ErrInvalidGrant):
		c.JSON(http.StatusBadRequest, extensionResponse{Error: ConsentErrorInvalidGrantText})
	case permissions.IsStorageError(err):
		logRequestError(c, "permission store failed", err)
		c.JSON(http.StatusInternalServerError, extensionResponse{Error: ConsentErrorStoreText})
	default:
		logRequestError(c, "consent request failed", err)
		c.JSON(http.StatusInternalServerError, extensionResponse{Error: HTTPErrorInternalText})
	}
}
