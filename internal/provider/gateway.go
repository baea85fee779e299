package provider

import (
	"context"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
	"github.com/quantumauth-io/quantum-auth-gate/internal/rpc"
)

// TabInfo is best-effort metadata about the page behind a channel.
type TabInfo struct {
	Title      string
	FaviconURL string
}

// Channel is one page's provider connection. Implementations must be
// comparable; the value itself is the channel's identity.
type Channel interface {
	ID() string
	// SenderURL is fixed for the channel's lifetime; empty if never known.
	SenderURL() string
	Tab() TabInfo
	Send(ctx context.Context, r rpc.Response) error
}

func (s *Service) Connect(ch Channel) {
	s.chMu.Lock()
	s.channels[ch] = struct{}{}
	n := len(s.channels)
	s.chMu.Unlock()

	log.Info("provider channel connected", "channel", ch.ID(), "origin", permissions.NormalizeOrigin(ch.SenderURL()), "open", n)
}

func (s *Service) Disconnect(ch Channel) {
	s.chMu.Lock()
	delete(s.channels, ch)
	n := len(s.channels)
	s.chMu.Unlock()

	log.Info("provider channel disconnected", "channel", ch.ID(), "open", n)
}

func (s *Service) OpenChannels() int {
	s.chMu.Lock()
	defer s.chMu.Unlock()
	return len(s.channels)
}

func (s *Service) isOpen(ch Channel) bool {
	s.chMu.Lock()
	defer s.chMu.Unlock()
	_, ok := s.channels[ch]
	return ok
}

func (s *Service) snapshot() []Channel {
	s.chMu.Lock()
	defer s.chMu.Unlock()
	out := make([]Channel, 0, len(s.channels))
	for ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// HandleMessage processes one frame from ch and replies on ch. It blocks for
// as long as the call takes, including a pending consent; callers run it on
// its own goroutine.
func (s *Service) HandleMessage(ctx context.Context, ch Channel, data []byte) {
	origin := permissions.NormalizeOrigin(ch.SenderURL())
	if origin == "" {
		return
	}

	in, err := rpc.DecodeInbound(data)
	if err != nil {
		log.Warn("dropping provider frame", "channel", ch.ID(), "origin", origin, "error", err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("provider call panicked", "channel", ch.ID(), "origin", origin, "method", in.Request.Method, "panic", r)
			s.deliver(ctx, ch, in.Reply(rpc.ErrUserRejected))
		}
	}()

	result, reply := s.route(ctx, ch, origin, in)
	if !reply {
		return
	}
	s.deliver(ctx, ch, in.Reply(result))
}

// deliver sends r on ch unless ch has been disconnected.
func (s *Service) deliver(ctx context.Context, ch Channel, r rpc.Response) {
	if !s.isOpen(ch) {
		return
	}
	if err := ch.Send(context.WithoutCancel(ctx), r); err != nil {
		log.Warn("provider send failed", "channel", ch.ID(), "error", err)
	}
}
