package session

import (
	"context"
	"errors"
)

// Default slot names, matching the local-storage keys of the back-office web client.
const (
	DefaultAccessTokenSlot  = "jwtToken"
	DefaultRefreshTokenSlot = "refreshToken"
)

// ErrPersistenceUnavailable wraps backend failures.
var ErrPersistenceUnavailable = errors.New("session persistence unavailable")

// Persistence is a durable key-value area holding named string slots.
//
// Save must write all given slots atomically. Load omits slots that are absent. Erase of
// absent slots is not an error.
type Persistence interface {
	Load(ctx context.Context, slots ...string) (map[string]string, error)
	Save(ctx context.Context, values map[string]string) error
	Erase(ctx context.Context, slots ...string) error
}
