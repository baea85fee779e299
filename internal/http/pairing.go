package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantumauth-io/quantum-auth-gate/internal/pairing"
)

// handleTokenPair swaps a one-shot pair code for the agent session token.
func (s *Server) handleTokenPair(c *gin.Context) {
	var req pairExchangeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, extensionResponse{Error: HTTPErrorInvalidJSONText})
		return
	}
	req.PairID = strings.TrimSpace(req.PairID)
	req.Code = strings.TrimSpace(req.Code)
	if req.PairID == "" || req.Code == "" {
		c.JSON(http.StatusBadRequest, extensionResponse{Error: PairingErrorMissingPairIDOrCodeText})
		return
	}

	now := time.Now()

	s.pairingsMu.Lock()
	// cleanup
	for id, p := range s.pairings {
		if p == nil || now.After(p.ExpiresAt) {
			delete(s.pairings, id)
		}
	}

	p, ok := s.pairings[req.PairID]
	if !ok || p == nil || p.Used || now.After(p.ExpiresAt) {
		s.pairingsMu.Unlock()
		c.JSON(http.StatusGone, extensionResponse{Error: PairingErrorPairExpiredText})
		return
	}

	if !pairing.Matches(p.CodeHash, req.Code) {
		s.pairingsMu.Unlock()
		c.JSON(http.StatusUnauthorized, extensionResponse{Error: PairingErrorInvalidCodeText})
		return
	}

	p.Used = true
	token := p.Token
	s.pairingsMu.Unlock()

	c.JSON(http.StatusOK, pairExchangeResp{
		OK:     true,
		Token:  token,
		Header: agentSessionHeader,
	})
}

// handleAgentExtensionPair issues a fresh extension pairing token, replacing
// any previous one.
func (s *Server) handleAgentExtensionPair(c *gin.Context) {
	token, err := newSessionToken()
	if err != nil {
		logRequestError(c, "pairing token generation failed", err)
		c.JSON(http.StatusInternalServerError, extensionResponse{Error: HTTPErrorInternalText})
		return
	}

	if err := writePairingTokenFile(s.pairingTokenPath, token); err != nil {
		logRequestError(c, "pairing token write failed", err)
		c.JSON(http.StatusInternalServerError, extensionResponse{Error: HTTPErrorInternalText})
		return
	}

	c.JSON(http.StatusOK, pairResp{
		OK:               true,
		PairingToken:     token,
		PairingTokenPath: s.pairingTokenPath,
	})
}

func (s *Server) handleAgentExtensionStatus(c *gin.Context) {
	_, err := loadPairingToken(s.pairingTokenPath)
	c.JSON(http.StatusOK, gin.H{"paired": err == nil})
}
