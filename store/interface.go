package store

import (
	"context"
	"errors"
	"time"

	"storefront/model"
)

// ErrNotFound is returned when a session has no entry of the requested kind.
var ErrNotFound = errors.New("not found")

// DefaultTTL is how long session state lives when no TTL is configured.
const DefaultTTL = 30 * 24 * time.Hour

// Store holds per-visitor session state keyed by session id. It owns no
// business data: users, carts and orders live in the backend, the store
// only caches what the pages need between requests.
type Store interface {
	GetUser(ctx context.Context, sessionID string) (*model.User, error)
	SaveUser(ctx context.Context, sessionID string, u *model.User) error
	DeleteUser(ctx context.Context, sessionID string) error

	GetCart(ctx context.Context, sessionID string) (*model.Cart, error)
	SaveCart(ctx context.Context, sessionID string, c *model.Cart) error
	DeleteCart(ctx context.Context, sessionID string) error

	GetSearchHistory(ctx context.Context, sessionID string) ([]string, error)
	SaveSearchHistory(ctx context.Context, sessionID string, queries []string) error
	DeleteSearchHistory(ctx context.Context, sessionID string) error

	Close() error
}
