// Package provider is the gate between dApp provider channels and the wallet:
// it classifies every page RPC, enforces grants, drives the consent flow and
// fans out account/config pushes.
package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-auth-gate/internal/consent"
	"github.com/quantumauth-io/quantum-auth-gate/internal/dispatch"
	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
	"github.com/quantumauth-io/quantum-auth-gate/internal/popup"
)

// GrantStore is the grant repository plus the views the consent UI reads.
type GrantStore interface {
	permissions.Store
	Snapshot() []permissions.Grant
	ForAccount(account string) []permissions.Grant
}

// Popups opens and closes consent/signing windows.
type Popups interface {
	Open(ctx context.Context, kind popup.FlowKind) (*popup.Handle, error)
	Close(ctx context.Context, h *popup.Handle)
}

// RequestPublisher relays a new permission request to the consent UI.
type RequestPublisher interface {
	PublishRequest(ctx context.Context, request any) error
}

type Deps struct {
	Store      GrantStore
	Table      *consent.Table
	Popups     Popups
	Dispatcher dispatch.Dispatcher

	// optional
	Publisher       RequestPublisher
	OnClaimReferrer func(referrer string)
}

type Config struct {
	Account       string
	ChainIDHex    string
	DefaultWallet bool
	// ClaimOrigin is the only origin allowed to call tally_setClaimReferrer.
	ClaimOrigin string
}

type pendingRequest struct {
	grant permissions.Grant
	seq   uint64
}

// Service owns the open channels, the wallet state the router reads and the
// pending permission requests.
type Service struct {
	store      GrantStore
	table      *consent.Table
	popups     Popups
	dispatcher dispatch.Dispatcher
	publisher  RequestPublisher
	onReferrer func(string)
	now        func() time.Time

	claimOrigin string

	mu            sync.Mutex
	account       string
	chainID       string
	defaultWallet bool
	claimReferrer string
	pending       map[string]pendingRequest
	pendingSeq    uint64

	chMu     sync.Mutex
	channels map[Channel]struct{}
}

func New(deps Deps, cfg Config) *Service {
	table := deps.Table
	if table == nil {
		table = consent.NewTable()
	}
	return &Service{
		store:         deps.Store,
		table:         table,
		popups:        deps.Popups,
		dispatcher:    deps.Dispatcher,
		publisher:     deps.Publisher,
		onReferrer:    deps.OnClaimReferrer,
		now:           time.Now,
		claimOrigin:   permissions.NormalizeOrigin(cfg.ClaimOrigin),
		account:       permissions.NormalizeAccount(cfg.Account),
		chainID:       cfg.ChainIDHex,
		defaultWallet: cfg.DefaultWallet,
		pending:       make(map[string]pendingRequest),
		channels:      make(map[Channel]struct{}),
	}
}

// Grant records an allow decision from the consent UI and wakes the origin's
// pending request.
func (s *Service) Grant(ctx context.Context, g permissions.Grant) error {
	g = g.Normalized()

	var err error
	if g.State != permissions.StateAllowed || g.AccountAddress == "" {
		err = permissions.ErrInvalidGrant
	} else {
		g.GrantedAt = s.now().UTC()
		err = s.store.Put(ctx, g)
	}

	s.dropPending(g.Origin)
	s.table.Resolve(g.Origin, consent.DecisionGranted)

	if err != nil {
		return err
	}
	log.Info("permission granted", "origin", g.Origin, "account", g.AccountAddress)
	s.NotifyAccountChange(ctx)
	return nil
}

// Deny records a deny decision, removing any grant it names.
func (s *Service) Deny(ctx context.Context, g permissions.Grant) error {
	g = g.Normalized()

	var err error
	if g.State != permissions.StateDenied || g.AccountAddress == "" {
		err = permissions.ErrInvalidGrant
	} else {
		err = s.store.Delete(ctx, g.Origin, g.AccountAddress)
	}

	s.dropPending(g.Origin)
	s.table.Resolve(g.Origin, consent.DecisionDenied)

	if err == nil {
		log.Info("permission denied", "origin", g.Origin, "account", g.AccountAddress)
	}
	s.NotifyAccountChange(ctx)
	return err
}

// RevokeAccount deletes every grant of an account removed from the wallet.
func (s *Service) RevokeAccount(ctx context.Context, account string) error {
	account = permissions.NormalizeAccount(account)

	var first error
	for _, g := range s.store.ForAccount(account) {
		if err := s.store.Delete(ctx, g.Origin, g.AccountAddress); err != nil {
			log.Error("revoke grant failed", "origin", g.Origin, "account", account, "error", err)
			if first == nil {
				first = err
			}
		}
	}

	s.mu.Lock()
	if s.account == account {
		s.account = ""
	}
	s.mu.Unlock()

	s.NotifyAccountChange(ctx)
	return first
}

func (s *Service) SelectAccount(ctx context.Context, account string) {
	s.mu.Lock()
	s.account = permissions.NormalizeAccount(account)
	s.mu.Unlock()

	log.Info("active account changed", "account", account)
	s.NotifyAccountChange(ctx)
}

func (s *Service) SetDefaultWallet(ctx context.Context, v bool) {
	s.mu.Lock()
	s.defaultWallet = v
	s.mu.Unlock()

	s.NotifyConfigChange(ctx)
}

func (s *Service) CurrentAccount() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

func (s *Service) ClaimReferrer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimReferrer
}

// PendingRequests lists requested grants still waiting for the user.
func (s *Service) PendingRequests() []permissions.Grant {
	s.mu.Lock()
	out := make([]permissions.Grant, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p.grant)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out
}

func (s *Service) Grants() []permissions.Grant {
	return s.store.Snapshot()
}

func (s *Service) config() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"defaultWallet": s.defaultWallet,
		"chainId":       s.chainID,
	}
}

func (s *Service) addPending(g permissions.Grant) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingSeq++
	s.pending[g.Origin] = pendingRequest{grant: g, seq: s.pendingSeq}
	return s.pendingSeq
}

// removePending drops origin's entry only if it is still the one added with seq.
func (s *Service) removePending(origin string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[origin]; ok && p.seq == seq {
		delete(s.pending, origin)
	}
}

func (s *Service) dropPending(origin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, origin)
}
