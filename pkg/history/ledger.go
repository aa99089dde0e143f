// Package history keeps the per-user log of previously generated thoughts
// used to steer the generator away from repeats.
package history

import (
	"context"
	"fmt"
	"strings"

	"logossophia/pkg/domain"
	"logossophia/pkg/store"
)

// MaxEntries bounds the ledger to roughly a year of thoughts.
const MaxEntries = 365

const keyPrefix = "logos_history_"

// Ledger is an append-only, capped, date-deduplicated log per user,
// persisted in the durable tier.
type Ledger struct {
	store *store.Store
	limit int
}

// NewLedger builds a ledger. limit <= 0 uses MaxEntries.
func NewLedger(s *store.Store, limit int) *Ledger {
	if limit <= 0 {
		limit = MaxEntries
	}
	return &Ledger{store: s, limit: limit}
}

// Key returns the durable key holding userID's ledger.
func Key(userID string) string {
	return keyPrefix + userID
}

// List returns userID's entries, most recent first. Anonymous ("") and
// unknown users get an empty slice.
func (l *Ledger) List(ctx context.Context, userID string) []domain.HistoryItem {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []domain.HistoryItem{}
	}
	items, ok := store.GetJSON[[]domain.HistoryItem](ctx, l.store, store.TierDurable, Key(userID))
	if !ok || items == nil {
		return []domain.HistoryItem{}
	}
	return items
}

// Append prepends item unless an entry for its date already exists, then
// truncates to the newest limit entries. Anonymous users are not recorded.
func (l *Ledger) Append(ctx context.Context, userID string, item domain.HistoryItem) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	items := l.List(ctx, userID)
	for _, existing := range items {
		if existing.Date == item.Date {
			return nil
		}
	}
	next := make([]domain.HistoryItem, 0, len(items)+1)
	next = append(next, item)
	next = append(next, items...)
	if len(next) > l.limit {
		next = next[:l.limit]
	}
	if err := store.SetJSON(ctx, l.store, store.TierDurable, Key(userID), next); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// ExcludeTopics renders entries as "title (reference)" hints for the generator.
func ExcludeTopics(items []domain.HistoryItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%s (%s)", item.Title, item.Reference))
	}
	return out
}
