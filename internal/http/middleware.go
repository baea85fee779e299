package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
)

// uiCORS admits only the configured consent UI origins.
func (s *Server) uiCORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			_, ok := s.uiAllowedOrigins[permissions.NormalizeOrigin(origin)]
			return ok
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", agentSessionHeader},
		MaxAge:       corsMaxAge,
	})
}

func (s *Server) withLoopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoopbackRequest(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, extensionResponse{Error: HTTPErrorForbiddenText})
			return
		}
		c.Next()
	}
}

func (s *Server) withLocalHost() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isSafeLocalHost(c.Request.Host) {
			c.AbortWithStatusJSON(http.StatusForbidden, extensionResponse{Error: HTTPErrorForbiddenHost})
			return
		}
		c.Next()
	}
}

// withAgentGuards protects the consent UI API: loopback, local Host header and
// the agent session token handed out by the pair exchange.
func (s *Server) withAgentGuards() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoopbackRequest(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, extensionResponse{Error: HTTPErrorForbiddenText})
			return
		}

		got := c.GetHeader(agentSessionHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.agentSessionToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, extensionResponse{Error: HTTPErrorUnauthorized})
			return
		}

		if !isSafeLocalHost(c.Request.Host) {
			c.AbortWithStatusJSON(http.StatusForbidden, extensionResponse{Error: HTTPErrorForbiddenHost})
			return
		}

		c.Next()
	}
}

// withExtensionPairedGuards requires the pairing token written by
// /agent/extension/pair.
func (s *Server) withExtensionPairedGuards() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoopbackRequest(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, extensionResponse{Error: HTTPErrorForbiddenText})
			return
		}
		if !isSafeLocalHost(c.Request.Host) {
			c.AbortWithStatusJSON(http.StatusForbidden, extensionResponse{Error: HTTPErrorForbiddenHost})
			return
		}

		token, err := loadPairingToken(s.pairingTokenPath)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusPreconditionRequired, extensionResponse{Error: HTTPErrorNotPairedText})
			return
		}

		got := c.GetHeader(extensionPairHeader)
		if got == "" {
			got = c.Query(extensionPairQuery)
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Warn("extension pairing token rejected", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, extensionResponse{Error: HTTPErrorUnauthorized})
			return
		}

		c.Next()
	}
}
