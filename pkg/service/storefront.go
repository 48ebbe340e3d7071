// Package service implements the storefront operations on top of explicitly
// supplied stores. Every per-user method takes the caller's user id, which
// the HTTP layer reads from a verified token; it is the only tenant filter.
package service

import (
	"context"
	"sync"

	"github.com/example/storefront/pkg/audit"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

type CartStore interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	ReplaceCart(ctx context.Context, userID string, items []models.CartItem) (*models.Cart, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, userID string) ([]*models.Order, error)
	FindOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
	FindOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error)
}

type Store interface {
	UserStore
	CartStore
	OrderStore
}

// Cache is the read-through cache in front of profiles and carts.
type Cache interface {
	CacheUser(ctx context.Context, user models.PublicUser) error
	GetUserCache(ctx context.Context, userID string) (*models.PublicUser, error)
	CacheCart(ctx context.Context, cart *models.Cart) error
	GetCartCache(ctx context.Context, userID string) (*models.Cart, error)
	InvalidateCart(ctx context.Context, userID string) error
}

type Options struct {
	Cache       Cache
	Revocations auth.RevocationList
	Audit       *audit.Recorder
	BcryptCost  int
}

type Storefront struct {
	store       Store
	tokens      *auth.TokenIssuer
	cache       Cache
	revocations auth.RevocationList
	audit       *audit.Recorder
	bcryptCost  int
	logger      *zap.Logger

	// staleCarts holds users whose cached cart could not be refreshed after
	// a write. Values are staleCart.
	staleCarts sync.Map
}

func New(store Store, tokens *auth.TokenIssuer, logger *zap.Logger, opts Options) *Storefront {
	return &Storefront{
		store:       store,
		tokens:      tokens,
		cache:       opts.Cache,
		revocations: opts.Revocations,
		audit:       opts.Audit,
		bcryptCost:  opts.BcryptCost,
		logger:      logger,
	}
}

func (s *Storefront) record(action, userID, entityID string, data map[string]interface{}) {
	s.audit.Record(&audit.Event{
		Action:   action,
		UserID:   userID,
		EntityID: entityID,
		Data:     data,
	})
}
