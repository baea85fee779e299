// Package http is the gate's loopback surface: provider and popup-host
// websockets for the paired extension, and the consent API for the agent UI.
package http

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-auth-gate/internal/pairing"
	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
	"github.com/quantumauth-io/quantum-auth-gate/internal/popup"
	"github.com/quantumauth-io/quantum-auth-gate/internal/provider"
)

type Options struct {
	Service *provider.Service
	Hub     *popup.Hub

	UIAllowedOrigins []string
	// UIBaseURL is where the agent UI is served; used for the pairing link.
	UIBaseURL string

	PortName         string
	ReadLimit        int64
	PairingTokenPath string
}

type Server struct {
	engine *gin.Engine
	svc    *provider.Service
	hub    *popup.Hub

	agentSessionToken string
	uiAllowedOrigins  map[string]struct{}
	uiBaseURL         string

	portName         string
	readLimit        int64
	pairingTokenPath string

	pairings   map[string]*Pairing
	pairingsMu sync.Mutex
}

func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil || opts.Hub == nil {
		return nil, errors.New("http server needs a provider service and a popup hub")
	}
	if opts.PairingTokenPath == "" {
		p, err := PairingTokenFilePath()
		if err != nil {
			return nil, err
		}
		opts.PairingTokenPath = p
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, errors.Wrap(err, "agent session token")
	}

	s := &Server{
		svc:               opts.Service,
		hub:               opts.Hub,
		agentSessionToken: token,
		uiAllowedOrigins:  make(map[string]struct{}, len(opts.UIAllowedOrigins)),
		uiBaseURL:         opts.UIBaseURL,
		portName:          opts.PortName,
		readLimit:         opts.ReadLimit,
		pairingTokenPath:  opts.PairingTokenPath,
		pairings:          make(map[string]*Pairing),
	}
	for _, o := range opts.UIAllowedOrigins {
		o = permissions.NormalizeOrigin(o)
		if o == "" {
			continue
		}
		s.uiAllowedOrigins[o] = struct{}{}
	}

	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	ui := r.Group("/", s.uiCORS())
	uiRoute(ui, http.MethodGet, "/healthz", s.withLoopbackOnly(), s.handleHealth)
	uiRoute(ui, http.MethodPost, "/pair/exchange", s.withLoopbackOnly(), s.withLocalHost(), s.handleTokenPair)

	agent := r.Group("/", s.uiCORS(), s.withAgentGuards())
	uiRoute(agent, http.MethodPost, "/agent/extension/pair", s.handleAgentExtensionPair)
	uiRoute(agent, http.MethodGet, "/agent/extension/status", s.handleAgentExtensionStatus)

	uiRoute(agent, http.MethodGet, "/consent/requests", s.handleConsentRequests)
	uiRoute(agent, http.MethodPost, "/consent/grant", s.handleConsentGrant)
	uiRoute(agent, http.MethodPost, "/consent/deny", s.handleConsentDeny)
	uiRoute(agent, http.MethodGet, "/consent/grants", s.handleConsentGrants)
	uiRoute(agent, http.MethodPost, "/consent/revoke", s.handleConsentRevoke)

	uiRoute(agent, http.MethodPost, "/wallet/account", s.handleWalletAccount)
	uiRoute(agent, http.MethodPost, "/wallet/default", s.handleWalletDefault)
	uiRoute(agent, http.MethodGet, "/wallet/claim-referrer", s.handleClaimReferrer)

	// extension websockets (paired extension only)
	ext := r.Group("/", s.withExtensionPairedGuards())
	ext.GET("/provider", s.handleProvider)
	ext.GET("/host", s.handleHost)

	return r
}

// uiRoute registers a browser-facing route plus its CORS preflight; the CORS
// middleware answers OPTIONS before the no-op handler runs.
func uiRoute(g *gin.RouterGroup, method, path string, handlers ...gin.HandlerFunc) {
	g.Handle(method, path, handlers...)
	g.OPTIONS(path, func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// NewPairing registers a one-shot pair code for the agent UI and returns the
// link that carries it.
func (s *Server) NewPairing() (string, error) {
	pairID := uuid.NewString()
	pairCode, err := pairing.GeneratePairCode()
	if err != nil {
		return "", err
	}

	s.pairingsMu.Lock()
	s.pairings[pairID] = &Pairing{
		CodeHash:  pairing.HashCode(pairCode),
		ExpiresAt: time.Now().Add(PairingExchangeTTL),
		Token:     s.agentSessionToken,
	}
	s.pairingsMu.Unlock()

	return fmt.Sprintf(
		"%s/#/?server=%s&pair_id=%s&code=%s",
		s.uiBaseURL,
		url.QueryEscape(s.uiBaseURL),
		url.QueryEscape(pairID),
		url.QueryEscape(pairCode),
	), nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"channels": s.svc.OpenChannels(),
		"host":     s.hub.Attached(),
	})
}

func logRequestError(c *gin.Context, msg string, err error) {
	log.Error(msg, "path", c.Request.URL.Path, "error", err)
}
