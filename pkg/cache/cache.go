// Package cache memoizes generated thoughts in the session tier, keyed by
// fingerprint. Entries never expire within a session.
package cache

import (
	"context"
	"fmt"

	"logossophia/pkg/domain"
	"logossophia/pkg/store"
)

// Cache is a session-scoped memo of generated thoughts.
type Cache struct {
	store *store.Store
}

func New(s *store.Store) *Cache {
	return &Cache{store: s}
}

// Lookup returns the thought cached under fp. Corrupt entries are misses.
func (c *Cache) Lookup(ctx context.Context, fp Fingerprint) (domain.DailyThought, bool) {
	return store.GetJSON[domain.DailyThought](ctx, c.store, store.TierSession, fp.String())
}

// Store writes thought under fp, replacing any previous entry.
func (c *Cache) Store(ctx context.Context, fp Fingerprint, thought domain.DailyThought) error {
	if err := store.SetJSON(ctx, c.store, store.TierSession, fp.String(), thought); err != nil {
		return fmt.Errorf("cache thought: %w", err)
	}
	return nil
}
