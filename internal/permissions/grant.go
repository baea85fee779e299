// Package permissions persists per-origin, per-account permission grants.
package permissions

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type State string

const (
	StateRequested State = "requested"
	StateAllowed   State = "allowed"
	StateDenied    State = "denied"
)

// Grant records the user's decision for one origin and one account.
type Grant struct {
	Key            string    `json:"key"`
	Origin         string    `json:"origin"`
	AccountAddress string    `json:"accountAddress"`
	FaviconURL     string    `json:"faviconUrl,omitempty"`
	Title          string    `json:"title,omitempty"`
	State          State     `json:"state"`
	GrantedAt      time.Time `json:"grantedAt,omitzero"`
}

func NewGrant(origin, account, title, favicon string, state State) Grant {
	g := Grant{
		Origin:         NormalizeOrigin(origin),
		AccountAddress: NormalizeAccount(account),
		FaviconURL:     strings.TrimSpace(favicon),
		Title:          strings.TrimSpace(title),
		State:          state,
	}
	g.Key = Key(g.Origin, g.AccountAddress)
	return g
}

// Normalized returns g with a normalized origin, account and a derived key.
func (g Grant) Normalized() Grant {
	g.Origin = NormalizeOrigin(g.Origin)
	g.AccountAddress = NormalizeAccount(g.AccountAddress)
	g.Key = Key(g.Origin, g.AccountAddress)
	return g
}

// Key is the storage key of the (origin, account) pair.
func Key(origin, account string) string {
	return NormalizeOrigin(origin) + "|" + NormalizeAccount(account)
}

// NormalizeOrigin reduces a URL or origin to lower-case scheme://host[:port].
// Values that do not parse as an absolute URL are only trimmed and lower-cased.
func NormalizeOrigin(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	u, err := url.Parse(in)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(in)
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), strings.ToLower(u.Host))
}

func NormalizeAccount(in string) string {
	return strings.ToLower(strings.TrimSpace(in))
}
