// Package popup opens and closes the wallet's consent/signing windows.
package popup

import (
	"context"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Popup geometry.
const (
	Width  = 384
	Height = 558

	// distance from the right edge of the browser window to the popup's left edge
	rightInset = 400

	defaultWindowWidth = 1920
)

var (
	// ErrWindowClosed is returned by an Opener for a window that is already gone.
	ErrWindowClosed = errors.New("popup window already closed")
)

type FlowKind int

const (
	FlowPermission FlowKind = iota
	FlowSignTransaction
	FlowPersonalSign
	FlowSignData
)

// Path is the consent UI page for the flow.
func (k FlowKind) Path() string {
	switch k {
	case FlowSignTransaction:
		return "/sign-transaction"
	case FlowPersonalSign:
		return "/personal-sign"
	case FlowSignData:
		return "/sign-data"
	default:
		return "/dapp-permission"
	}
}

func (k FlowKind) String() string {
	return k.Path()[1:]
}

type Bounds struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height,omitempty"`
}

// Spec is what an Opener needs to create a window.
type Spec struct {
	Kind   string `json:"kind"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Left   int    `json:"left"`
	Top    int    `json:"top"`
}

// Opener is the platform window capability.
type Opener interface {
	Open(ctx context.Context, spec Spec) (string, error)
	Close(ctx context.Context, windowID string) error
}

// BoundsSource reports the focused browser window's geometry.
type BoundsSource interface {
	CurrentWindow(ctx context.Context) (Bounds, error)
}

type Handle struct {
	WindowID string
	Kind     FlowKind
}

type Manager struct {
	opener  Opener
	bounds  BoundsSource
	pageURL string
}

// NewManager wires an opener. bounds may be nil.
func NewManager(opener Opener, bounds BoundsSource, pageURL string) *Manager {
	return &Manager{opener: opener, bounds: bounds, pageURL: pageURL}
}

// Open creates the popup for kind at the top-right of the current window. It
// does not wait for the user.
func (m *Manager) Open(ctx context.Context, kind FlowKind) (*Handle, error) {
	b := Bounds{Width: defaultWindowWidth}
	if m.bounds != nil {
		if cur, err := m.bounds.CurrentWindow(ctx); err == nil && cur.Width > 0 {
			b = cur
		}
	}

	pageURL, err := m.pageFor(kind)
	if err != nil {
		return nil, err
	}

	spec := Spec{
		Kind:   kind.String(),
		URL:    pageURL,
		Width:  Width,
		Height: Height,
		Left:   b.Left + b.Width - rightInset,
		Top:    b.Top,
	}

	id, err := m.opener.Open(ctx, spec)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s popup", kind)
	}
	return &Handle{WindowID: id, Kind: kind}, nil
}

// Close closes h. Failures, including a window the user already closed, are
// logged and dropped.
func (m *Manager) Close(ctx context.Context, h *Handle) {
	if h == nil {
		return
	}
	if err := m.opener.Close(ctx, h.WindowID); err != nil {
		if errors.Is(err, ErrWindowClosed) {
			return
		}
		log.Warn("popup close failed", "window", h.WindowID, "kind", h.Kind.String(), "error", err)
	}
}

func (m *Manager) pageFor(kind FlowKind) (string, error) {
	u, err := url.Parse(m.pageURL)
	if err != nil {
		return "", errors.Wrap(err, "parse popup page url")
	}
	q := u.Query()
	q.Set("page", kind.Path())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
