package permissions

import (
	"context"
	"sort"
	"sync"
)

// Cache is a write-through in-memory view over a Store. It is seeded once and
// afterwards assumes it is the only writer.
type Cache struct {
	mu     sync.RWMutex
	store  Store
	grants map[string]Grant
}

func NewCache(ctx context.Context, store Store) (*Cache, error) {
	grants, err := store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = make(map[string]Grant)
	}
	return &Cache{store: store, grants: grants}, nil
}

func (c *Cache) Get(_ context.Context, origin, account string) (Grant, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.grants[Key(origin, account)]
	return g, ok, nil
}

func (c *Cache) Put(ctx context.Context, g Grant) error {
	g = g.Normalized()
	if err := c.store.Put(ctx, g); err != nil {
		return err
	}

	c.mu.Lock()
	c.grants[g.Key] = g
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(ctx context.Context, origin, account string) error {
	if err := c.store.Delete(ctx, origin, account); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.grants, Key(origin, account))
	c.mu.Unlock()
	return nil
}

func (c *Cache) ListAll(_ context.Context) (map[string]Grant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Grant, len(c.grants))
	for k, v := range c.grants {
		out[k] = v
	}
	return out, nil
}

// Snapshot returns every grant ordered by origin then account.
func (c *Cache) Snapshot() []Grant {
	c.mu.RLock()
	out := make([]Grant, 0, len(c.grants))
	for _, g := range c.grants {
		out = append(out, g)
	}
	c.mu.RUnlock()

	sortGrants(out)
	return out
}

// ForAccount returns the grants covering account.
func (c *Cache) ForAccount(account string) []Grant {
	account = NormalizeAccount(account)

	c.mu.RLock()
	var out []Grant
	for _, g := range c.grants {
		if g.AccountAddress == account {
			out = append(out, g)
		}
	}
	c.mu.RUnlock()

	sortGrants(out)
	return out
}

func sortGrants(gs []Grant) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].Origin != gs[j].Origin {
			return gs[i].Origin < gs[j].Origin
		}
		return gs[i].AccountAddress < gs[j].AccountAddress
	})
}
