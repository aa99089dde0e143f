package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Tier selects the lifetime of a stored value.
type Tier string

const (
	// TierSession values are discarded when the session ends.
	TierSession Tier = "session"
	// TierDurable values survive across sessions until explicitly removed.
	TierDurable Tier = "durable"
)

// ErrStorageCorruption marks a stored value that could not be decoded.
// Readers treat it as absence; it is only ever logged.
var ErrStorageCorruption = errors.New("storage corruption")

// Backend is a key -> string mapping. A missing key is reported with
// ok == false and a nil error.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Store routes reads and writes to one backend per tier.
type Store struct {
	session Backend
	durable Backend
	logger  *slog.Logger
}

// New builds a Store. Nil backends default to in-memory ones.
func New(session, durable Backend, logger *slog.Logger) *Store {
	if session == nil {
		session = NewMemoryBackend()
	}
	if durable == nil {
		durable = NewMemoryBackend()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{session: session, durable: durable, logger: logger}
}

func (s *Store) backend(tier Tier) (Backend, error) {
	switch tier {
	case TierSession:
		return s.session, nil
	case TierDurable:
		return s.durable, nil
	default:
		return nil, fmt.Errorf("unknown storage tier %q", tier)
	}
}

// Get returns the raw value for key. Backend failures are logged and
// reported as absence.
func (s *Store) Get(ctx context.Context, tier Tier, key string) (string, bool) {
	b, err := s.backend(tier)
	if err != nil {
		s.logger.Warn("storage get", "tier", tier, "key", key, "err", err)
		return "", false
	}
	val, ok, err := b.Get(ctx, key)
	if err != nil {
		s.logger.Warn("storage get failed, treating as absent", "tier", tier, "key", key, "err", err)
		return "", false
	}
	return val, ok
}

// Set writes value under key.
func (s *Store) Set(ctx context.Context, tier Tier, key, value string) error {
	b, err := s.backend(tier)
	if err != nil {
		return err
	}
	if err := b.Set(ctx, key, value); err != nil {
		return fmt.Errorf("storage set %s/%s: %w", tier, key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, tier Tier, key string) error {
	b, err := s.backend(tier)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, key); err != nil {
		return fmt.Errorf("storage remove %s/%s: %w", tier, key, err)
	}
	return nil
}

// ClearTier drops every value in a tier. Clearing the session tier ends the session.
func (s *Store) ClearTier(ctx context.Context, tier Tier) error {
	b, err := s.backend(tier)
	if err != nil {
		return err
	}
	if err := b.Clear(ctx); err != nil {
		return fmt.Errorf("storage clear %s: %w", tier, err)
	}
	return nil
}

// GetJSON decodes the value under key into T. Undecodable values are logged
// as corruption and reported as absent.
func GetJSON[T any](ctx context.Context, s *Store, tier Tier, key string) (T, bool) {
	var out T
	raw, ok := s.Get(ctx, tier, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("discarding stored value",
			"tier", tier, "key", key, "err", fmt.Errorf("%w: %v", ErrStorageCorruption, err))
		var zero T
		return zero, false
	}
	return out, true
}

// SetJSON encodes v and writes it under key.
func SetJSON(ctx context.Context, s *Store, tier Tier, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, tier, key, string(data))
}
