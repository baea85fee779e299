package popup

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var (
	ErrNoHost   = errors.New("no popup host attached")
	ErrNoBounds = errors.New("popup host has not reported window bounds")
)

// Host protocol message types.
const (
	TypeWindowOpen          = "window.open"
	TypeWindowClose         = "window.close"
	TypeWindowClosed        = "window.closed"
	TypeHostBounds          = "host.bounds"
	TypePermissionRequested = "permission.requested"
)

// HostMessage is every frame exchanged with the popup host.
type HostMessage struct {
	Type     string  `json:"type"`
	WindowID string  `json:"windowId,omitempty"`
	Spec     *Spec   `json:"spec,omitempty"`
	Bounds   *Bounds `json:"bounds,omitempty"`
	Request  any     `json:"request,omitempty"`
}

type hostSession struct {
	id   string
	send func(ctx context.Context, m HostMessage) error
}

// Hub is an Opener and BoundsSource backed by the extension's popup host,
// which connects over a websocket. The most recent host wins.
type Hub struct {
	mu      sync.Mutex
	host    *hostSession
	bounds  *Bounds
	windows map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{windows: make(map[string]struct{})}
}

// ServeConn runs the host session until conn fails or ctx ends.
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn) {
	sess := &hostSession{
		id: uuid.NewString(),
		send: func(ctx context.Context, m HostMessage) error {
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			return conn.Write(ctx, websocket.MessageText, data)
		},
	}
	h.attach(sess)
	defer h.detach(sess)

	log.Info("popup host attached", "host", sess.id)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Info("popup host detached", "host", sess.id)
			return
		}
		var m HostMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("popup host sent invalid frame", "host", sess.id, "error", err)
			continue
		}
		h.handle(m)
	}
}

func (h *Hub) attach(s *hostSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.host = s
	h.windows = make(map[string]struct{})
}

func (h *Hub) detach(s *hostSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.host == s {
		h.host = nil
		h.windows = make(map[string]struct{})
	}
}

func (h *Hub) handle(m HostMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch m.Type {
	case TypeHostBounds:
		if m.Bounds != nil {
			b := *m.Bounds
			h.bounds = &b
		}
	case TypeWindowClosed:
		delete(h.windows, m.WindowID)
	}
}

func (h *Hub) current() *hostSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.host
}

func (h *Hub) Attached() bool {
	return h.current() != nil
}

func (h *Hub) Open(ctx context.Context, spec Spec) (string, error) {
	host := h.current()
	if host == nil {
		return "", ErrNoHost
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.windows[id] = struct{}{}
	h.mu.Unlock()

	if err := host.send(ctx, HostMessage{Type: TypeWindowOpen, WindowID: id, Spec: &spec}); err != nil {
		h.mu.Lock()
		delete(h.windows, id)
		h.mu.Unlock()
		return "", errors.Wrap(err, "send window.open")
	}
	return id, nil
}

func (h *Hub) Close(ctx context.Context, windowID string) error {
	h.mu.Lock()
	host := h.host
	_, open := h.windows[windowID]
	delete(h.windows, windowID)
	h.mu.Unlock()

	if !open {
		return ErrWindowClosed
	}
	if host == nil {
		return ErrNoHost
	}
	if err := host.send(ctx, HostMessage{Type: TypeWindowClose, WindowID: windowID}); err != nil {
		return errors.Wrap(err, "send window.close")
	}
	return nil
}

func (h *Hub) CurrentWindow(_ context.Context) (Bounds, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bounds == nil {
		return Bounds{}, ErrNoBounds
	}
	return *h.bounds, nil
}

// PublishRequest relays a pending permission request so the popup can render it.
func (h *Hub) PublishRequest(ctx context.Context, request any) error {
	host := h.current()
	if host == nil {
		return ErrNoHost
	}
	return host.send(ctx, HostMessage{Type: TypePermissionRequested, Request: request})
}

// OpenWindows counts windows opened through the current host and not yet closed.
func (h *Hub) OpenWindows() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.windows)
}
