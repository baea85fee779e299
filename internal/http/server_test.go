package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-auth-gate/internal/consent"
	"github.com/quantumauth-io/quantum-auth-gate/internal/dispatch"
	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
	"github.com/quantumauth-io/quantum-auth-gate/internal/popup"
	"github.com/quantumauth-io/quantum-auth-gate/internal/provider"
)

const (
	testUIOrigin = "http://localhost:5173"
	testPort     = "quantum-provider"
	testAccount  = "0x00000000000000000000000000000000000000aa"
	testDapp     = "https://dapp.example"
	testPairTok  = "pair-token-for-tests"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	srv   *Server
	svc   *provider.Service
	hub   *popup.Hub
	cache *permissions.Cache
	dir   string
}

func newTestEnv(t *testing.T, paired bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := permissions.OpenFileStore(filepath.Join(dir, "grants.json"))
	require.NoError(t, err)
	cache, err := permissions.NewCache(ctx, store)
	require.NoError(t, err)

	hub := popup.NewHub()
	disp := dispatch.Func(func(context.Context, string, []json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"0x1"`), nil
	})
	svc := provider.New(provider.Deps{
		Store:      cache,
		Table:      consent.NewTable(),
		Popups:     popup.NewManager(hub, hub, "chrome-extension://wallet/popup.html"),
		Dispatcher: disp,
		Publisher:  hub,
	}, provider.Config{Account: testAccount, ChainIDHex: "0x1"})

	tokenPath := filepath.Join(dir, "pairing.token")
	if paired {
		require.NoError(t, writePairingTokenFile(tokenPath, testPairTok))
	}

	srv, err := NewServer(Options{
		Service:          svc,
		Hub:              hub,
		UIAllowedOrigins: []string{testUIOrigin},
		UIBaseURL:        testUIOrigin,
		PortName:         testPort,
		PairingTokenPath: tokenPath,
	})
	require.NoError(t, err)

	return &testEnv{srv: srv, svc: svc, hub: hub, cache: cache, dir: dir}
}

func localRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.RemoteAddr = "127.0.0.1:50000"
	req.Host = "127.0.0.1:8090"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func (e *testEnv) agentRequest(method, target string, body any) *http.Request {
	req := localRequest(method, target, body)
	req.Header.Set(agentSessionHeader, e.srv.agentSessionToken)
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzIsLoopbackOnly(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(localRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	req := localRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.1.2.3:40000"
	assert.Equal(t, http.StatusForbidden, env.do(req).Code)
}

func TestPairExchange(t *testing.T) {
	env := newTestEnv(t, false)

	link, err := env.srv.NewPairing()
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	q, err := url.ParseQuery(strings.TrimPrefix(u.Fragment, "/?"))
	require.NoError(t, err)
	pairID, code := q.Get("pair_id"), q.Get("code")
	require.NotEmpty(t, pairID)
	require.NotEmpty(t, code)

	rec := env.do(localRequest(http.MethodPost, "/pair/exchange", pairExchangeReq{PairID: pairID, Code: "WRONGCOD"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(localRequest(http.MethodPost, "/pair/exchange", pairExchangeReq{PairID: pairID, Code: code}))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp pairExchangeResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, env.srv.agentSessionToken, resp.Token)
	assert.Equal(t, agentSessionHeader, resp.Header)

	rec = env.do(localRequest(http.MethodPost, "/pair/exchange", pairExchangeReq{PairID: pairID, Code: code}))
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = env.do(localRequest(http.MethodPost, "/pair/exchange", pairExchangeReq{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentRoutesNeedSessionToken(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(localRequest(http.MethodGet, "/consent/requests", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := env.agentRequest(http.MethodGet, "/consent/requests", nil)
	req.Host = "evil.example"
	assert.Equal(t, http.StatusForbidden, env.do(req).Code)

	rec = env.do(env.agentRequest(http.MethodGet, "/consent/requests", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"data":[]}`, rec.Body.String())
}

func TestUIPreflight(t *testing.T) {
	env := newTestEnv(t, false)

	req := localRequest(http.MethodOptions, "/consent/grants", nil)
	req.Header.Set("Origin", testUIOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", agentSessionHeader)
	rec := env.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testUIOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	req = localRequest(http.MethodOptions, "/consent/grants", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = env.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConsentGrantAndRevoke(t *testing.T) {
	env := newTestEnv(t, false)

	g := permissions.NewGrant(testDapp, testAccount, "Dapp", "", permissions.StateAllowed)
	rec := env.do(env.agentRequest(http.MethodPost, "/consent/grant", g))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(env.agentRequest(http.MethodGet, "/consent/grants", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data grantsResp `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Grants, 1)
	assert.Equal(t, testDapp, body.Data.Grants[0].Origin)
	assert.False(t, body.Data.Grants[0].GrantedAt.IsZero())

	rec = env.do(env.agentRequest(http.MethodPost, "/consent/revoke", revokeReq{AccountAddress: testAccount}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.cache.Snapshot())
	assert.Empty(t, env.svc.CurrentAccount())

	rec = env.do(env.agentRequest(http.MethodPost, "/consent/revoke", revokeReq{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsentRejectsInvalidGrant(t *testing.T) {
	env := newTestEnv(t, false)

	g := permissions.NewGrant(testDapp, testAccount, "", "", permissions.StateDenied)
	rec := env.do(env.agentRequest(http.MethodPost, "/consent/grant", g))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ConsentErrorInvalidGrantText)

	g.State = permissions.StateAllowed
	rec = env.do(env.agentRequest(http.MethodPost, "/consent/deny", g))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := env.agentRequest(http.MethodPost, "/consent/grant", nil)
	req.Body = http.NoBody
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
}

func TestWalletRoutes(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(env.agentRequest(http.MethodPost, "/wallet/account", selectAccountReq{Address: "0xBB"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xbb", env.svc.CurrentAccount())

	rec = env.do(env.agentRequest(http.MethodPost, "/wallet/default", map[string]any{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(env.agentRequest(http.MethodPost, "/wallet/default", map[string]any{"defaultWallet": true}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(env.agentRequest(http.MethodGet, "/wallet/claim-referrer", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"data":{"referrer":""}}`, rec.Body.String())
}

func TestExtensionPairWritesToken(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(localRequest(http.MethodGet, "/provider", nil))
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = env.do(env.agentRequest(http.MethodPost, "/agent/extension/pair", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp pairResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.PairingToken)

	b, err := os.ReadFile(resp.PairingTokenPath)
	require.NoError(t, err)
	assert.Equal(t, resp.PairingToken, strings.TrimSpace(string(b)))

	rec = env.do(env.agentRequest(http.MethodGet, "/agent/extension/status", nil))
	assert.JSONEq(t, `{"paired":true}`, rec.Body.String())

	rec = env.do(localRequest(http.MethodGet, "/provider?pair_token=nope", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProviderRejectsUnknownPort(t *testing.T) {
	env := newTestEnv(t, true)

	req := localRequest(http.MethodGet, "/provider?port=other", nil)
	req.Header.Set(extensionPairHeader, testPairTok)
	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func readJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestProviderConsentRoundTrip(t *testing.T) {
	env := newTestEnv(t, true)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsBase := "ws" + strings.TrimPrefix(ts.URL, "http")

	host, _, err := websocket.Dial(ctx, wsBase+"/host?pair_token="+testPairTok, nil)
	require.NoError(t, err)
	defer host.CloseNow()
	require.Eventually(t, env.hub.Attached, 2*time.Second, 10*time.Millisecond)

	q := url.Values{}
	q.Set(extensionPairQuery, testPairTok)
	q.Set(ProviderQueryPort, testPort)
	q.Set(ProviderQuerySender, testDapp+"/app")
	q.Set(ProviderQueryTitle, "Dapp")
	page, _, err := websocket.Dial(ctx, wsBase+"/provider?"+q.Encode(), nil)
	require.NoError(t, err)
	defer page.CloseNow()

	req := []byte(`{"id":"7","request":{"method":"eth_requestAccounts","params":[]}}`)
	require.NoError(t, page.Write(ctx, websocket.MessageText, req))

	// host sees the pending request, then the permission popup
	var msg popup.HostMessage
	readJSON(t, ctx, host, &msg)
	assert.Equal(t, popup.TypePermissionRequested, msg.Type)
	readJSON(t, ctx, host, &msg)
	require.Equal(t, popup.TypeWindowOpen, msg.Type)
	require.NotNil(t, msg.Spec)
	assert.Contains(t, msg.Spec.URL, "page=")

	rec := env.do(env.agentRequest(http.MethodGet, "/consent/requests", nil))
	assert.Contains(t, rec.Body.String(), testDapp)

	g := permissions.NewGrant(testDapp, testAccount, "Dapp", "", permissions.StateAllowed)
	rec = env.do(env.agentRequest(http.MethodPost, "/consent/grant", g))
	require.Equal(t, http.StatusOK, rec.Code)

	// the grant broadcasts accountChanged before the call's own reply
	for {
		var resp struct {
			ID     json.RawMessage `json:"id"`
			Result json.RawMessage `json:"result"`
		}
		readJSON(t, ctx, page, &resp)
		if string(resp.ID) == `"tallyHo"` {
			continue
		}
		assert.Equal(t, `"7"`, string(resp.ID))
		assert.JSONEq(t, `["`+testAccount+`"]`, string(resp.Result))
		break
	}

	readJSON(t, ctx, host, &msg)
	assert.Equal(t, popup.TypeWindowClose, msg.Type)
}
