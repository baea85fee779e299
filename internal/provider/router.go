package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-auth-gate/internal/consent"
	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
	"github.com/quantumauth-io/quantum-auth-gate/internal/policy"
	"github.com/quantumauth-io/quantum-auth-gate/internal/popup"
	"github.com/quantumauth-io/quantum-auth-gate/internal/rpc"
)

// route runs one inbound call to completion. reply is false when nothing must
// be sent back (storage failure, channel gone).
func (s *Service) route(ctx context.Context, ch Channel, origin string, in rpc.Inbound) (result any, reply bool) {
	m := in.Method()
	params := in.Request.Params

	var err error
	if m.Family() == rpc.FamilyInternal {
		result, err = s.routeInternal(ctx, origin, m, params)
	} else {
		result, err = s.routeDapp(ctx, ch, origin, m, params)
	}
	if err == nil {
		return result, true
	}

	var pe *rpc.ProviderError
	switch {
	case errors.As(err, &pe):
		return pe, true
	case permissions.IsStorageError(err):
		log.Error("permission store failure", "origin", origin, "method", m.String(), "error", err)
		return nil, false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, false
	default:
		log.Error("rpc failed", "origin", origin, "method", m.String(), "error", err)
		return rpc.ErrUserRejected, true
	}
}

func (s *Service) routeInternal(ctx context.Context, origin string, m rpc.Method, params []json.RawMessage) (any, error) {
	switch m {
	case rpc.MethodGetConfig:
		return s.config(), nil
	case rpc.MethodSetClaimReferrer:
		if s.claimOrigin == "" || origin != s.claimOrigin {
			return nil, rpc.ErrUnauthorized
		}
		var referrer string
		if len(params) > 0 {
			if err := json.Unmarshal(params[0], &referrer); err != nil {
				return nil, rpc.ErrUserRejected
			}
		}
		referrer = strings.TrimSpace(referrer)

		s.mu.Lock()
		s.claimReferrer = referrer
		s.mu.Unlock()

		log.Info("claim referrer set", "referrer", referrer)
		if s.onReferrer != nil {
			s.onReferrer(referrer)
		}
		return true, nil
	default:
		return nil, errors.Newf("unknown internal method %s", m)
	}
}

func (s *Service) routeDapp(ctx context.Context, ch Channel, origin string, m rpc.Method, params []json.RawMessage) (any, error) {
	account := s.CurrentAccount()
	if account == "" {
		if m == rpc.MethodRequestAccounts {
			return nil, rpc.ErrUserRejected
		}
		return nil, rpc.ErrUnauthorized
	}

	g, ok, err := s.store.Get(ctx, origin, account)
	if err != nil {
		return nil, err
	}
	if ok {
		return s.authorized(ctx, origin, m, params, g)
	}
	if m != rpc.MethodRequestAccounts {
		return nil, rpc.ErrUnauthorized
	}
	return s.awaitConsent(ctx, ch, origin, account, params)
}

// awaitConsent suspends this call until the user decides on origin.
func (s *Service) awaitConsent(ctx context.Context, ch Channel, origin, account string, params []json.RawMessage) (any, error) {
	tab := ch.Tab()
	req := permissions.NewGrant(origin, account, tab.Title, tab.FaviconURL, permissions.StateRequested)

	// register before the request becomes visible so an early decision is not lost
	wait := s.table.Register(origin)
	defer wait.Cancel()

	seq := s.addPending(req)
	defer s.removePending(origin, seq)

	if s.publisher != nil {
		if err := s.publisher.PublishRequest(ctx, req); err != nil {
			log.Warn("publish permission request failed", "origin", origin, "error", err)
		}
	}

	h, err := s.popups.Open(ctx, popup.FlowPermission)
	if err != nil {
		log.Error("permission popup failed", "origin", origin, "error", err)
		return nil, rpc.ErrUserRejected
	}
	defer s.popups.Close(context.WithoutCancel(ctx), h)

	log.Info("awaiting permission", "origin", origin, "channel", ch.ID())
	decision, err := wait.Await(ctx)
	if err != nil {
		if errors.Is(err, consent.ErrSuperseded) {
			return nil, rpc.ErrUserRejected
		}
		return nil, err
	}
	log.Info("permission decided", "origin", origin, "decision", decision.String())

	// the account may have changed while the popup was open
	g, ok, err := s.store.Get(ctx, origin, s.CurrentAccount())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rpc.ErrUserRejected
	}
	return s.authorized(ctx, origin, rpc.MethodAccounts, params, g)
}

func (s *Service) authorized(ctx context.Context, origin string, m rpc.Method, params []json.RawMessage, g permissions.Grant) (any, error) {
	if err := policy.Check(m, params, g); err != nil {
		log.Warn("signer rejected", "origin", origin, "method", m.String(), "error", err)
		return nil, rpc.ErrUserRejected
	}

	if m.IsSigning() {
		h, err := s.popups.Open(ctx, flowFor(m))
		if err != nil {
			log.Warn("signing popup failed", "origin", origin, "method", m.String(), "error", err)
		} else {
			defer s.popups.Close(context.WithoutCancel(ctx), h)
		}
		return s.dispatch(ctx, origin, m, params)
	}

	switch m.Family() {
	case rpc.FamilyAccounts:
		return policy.Accounts(g), nil
	case rpc.FamilyPassThrough:
		return s.dispatch(ctx, origin, m, params)
	case rpc.FamilyInternal:
		return nil, errors.Newf("internal method %s routed as dapp call", m)
	default:
		return nil, errors.Newf("unhandled method family %s", m.Family())
	}
}

func (s *Service) dispatch(ctx context.Context, origin string, m rpc.Method, params []json.RawMessage) (any, error) {
	res, err := s.dispatcher.Dispatch(ctx, m.String(), params)
	if err != nil {
		log.Error("dispatch failed", "origin", origin, "method", m.String(), "error", err)
		return nil, rpc.ErrUserRejected
	}
	return res, nil
}

func flowFor(m rpc.Method) popup.FlowKind {
	switch m.Family() {
	case rpc.FamilyTransaction:
		return popup.FlowSignTransaction
	case rpc.FamilyTypedData:
		return popup.FlowSignData
	default:
		return popup.FlowPersonalSign
	}
}
