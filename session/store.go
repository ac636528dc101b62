package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned when a write is missing either token.
var ErrInvalidCredentials = errors.New("session credentials require both access and refresh tokens")

// Credentials is the stored token pair. A session exists only when both are present.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Valid reports whether both tokens are present.
func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Options configures a [Store].
type Options struct {
	AccessSlot  string
	RefreshSlot string
	Logger      *zap.Logger
}

// Store is the process-wide holder of the current credentials.
//
// Reads are served from the cache. Writes are persisted first and only then published to the
// cache, so a failed write leaves the previous credentials in place.
//
// Concurrency:
// Safe for concurrent use. Mutations are serialized so the persisted pair and the cache are
// always the same pair.
type Store struct {
	persistence Persistence
	accessSlot  string
	refreshSlot string
	logger      *zap.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	creds   Credentials
	present bool
}

// NewStore returns a Store bound to p and hydrated from it.
func NewStore(ctx context.Context, p Persistence, opts Options) (*Store, error) {
	if p == nil {
		return nil, errors.New("session store requires a persistence backend")
	}
	if opts.AccessSlot == "" {
		opts.AccessSlot = DefaultAccessTokenSlot
	}
	if opts.RefreshSlot == "" {
		opts.RefreshSlot = DefaultRefreshTokenSlot
	}
	if opts.AccessSlot == opts.RefreshSlot {
		return nil, errors.New("session access and refresh slots must differ")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Store{
		persistence: p,
		accessSlot:  opts.AccessSlot,
		refreshSlot: opts.RefreshSlot,
		logger:      opts.Logger.Named("session"),
	}
	if err := s.Hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the cached credentials. The bool is false when no session exists.
func (s *Store) Current() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, s.present
}

// SetCredentials replaces both tokens. Both must be non-empty.
func (s *Store) SetCredentials(ctx context.Context, access, refresh string) error {
	creds := Credentials{AccessToken: access, RefreshToken: refresh}
	if !creds.Valid() {
		return ErrInvalidCredentials
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.persistence.Save(ctx, map[string]string{
		s.accessSlot:  access,
		s.refreshSlot: refresh,
	})
	if err != nil {
		s.logger.Warn("persist credentials failed", zap.Error(err))
		return fmt.Errorf("persist credentials: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.present = true
	s.mu.Unlock()
	return nil
}

// Clear removes both tokens. Calling it with no session is a no-op at the cache level.
// The cache is emptied even when the durable erase fails; that error is returned.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.creds = Credentials{}
	s.present = false
	s.mu.Unlock()

	if err := s.persistence.Erase(ctx, s.accessSlot, s.refreshSlot); err != nil {
		s.logger.Warn("erase credentials failed", zap.Error(err))
		return fmt.Errorf("erase credentials: %w", err)
	}
	return nil
}

// Hydrate reloads the cache from durable storage. A lone token slot is treated as no
// session and erased.
func (s *Store) Hydrate(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	values, err := s.persistence.Load(ctx, s.accessSlot, s.refreshSlot)
	if err != nil {
		return fmt.Errorf("hydrate session: %w", err)
	}
	creds := Credentials{
		AccessToken:  values[s.accessSlot],
		RefreshToken: values[s.refreshSlot],
	}

	if !creds.Valid() {
		if creds.AccessToken != "" || creds.RefreshToken != "" {
			s.logger.Info("erasing orphan credential slot")
			if err := s.persistence.Erase(ctx, s.accessSlot, s.refreshSlot); err != nil {
				s.logger.Warn("erase orphan slot failed", zap.Error(err))
			}
		}
		creds = Credentials{}
	}

	s.mu.Lock()
	s.creds = creds
	s.present = creds.Valid()
	s.mu.Unlock()
	return nil
}
