package provider

import (
	"context"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
	"github.com/quantumauth-io/quantum-auth-gate/internal/rpc"
)

// NotifyConfigChange pushes the wallet config to every open channel.
func (s *Service) NotifyConfigChange(ctx context.Context) {
	push := rpc.NewPush(rpc.PushGetConfig, s.config())
	for _, ch := range s.snapshot() {
		s.deliver(ctx, ch, push)
	}
}

// NotifyAccountChange tells every channel which account it may now see:
// the active account if its origin holds a grant for it, otherwise none.
func (s *Service) NotifyAccountChange(ctx context.Context) {
	account := s.CurrentAccount()

	for _, ch := range s.snapshot() {
		origin := permissions.NormalizeOrigin(ch.SenderURL())
		if origin == "" {
			continue
		}

		addresses := []string{}
		if account != "" {
			g, ok, err := s.store.Get(ctx, origin, account)
			if err != nil {
				log.Error("account change lookup failed", "channel", ch.ID(), "origin", origin, "error", err)
				continue
			}
			if ok {
				addresses = append(addresses, g.AccountAddress)
			}
		}

		s.deliver(ctx, ch, rpc.NewPush(rpc.PushAccountChanged, map[string]any{"address": addresses}))
	}
}
