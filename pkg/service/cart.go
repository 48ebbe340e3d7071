package service

import (
	"context"
	"errors"
	"time"

	"github.com/example/storefront/pkg/apperror"
	"github.com/example/storefront/pkg/audit"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
)

type CartInput struct {
	Items []models.CartItem `json:"items" validate:"dive"`
}

// GetCart returns the user's cart, or nil when none was ever written.
func (s *Storefront) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	if s.cache != nil && !s.cartIsStale(userID) {
		cached, err := s.cache.GetCartCache(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("Cart cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperror.Unhandled("Error fetching cart", err)
	}

	if s.cache != nil {
		if err := s.cache.CacheCart(ctx, cart); err != nil {
			s.logger.Warn("Cart cache write failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			s.clearStaleCart(cart)
		}
	}
	return cart, nil
}

// ReplaceCart stores items as the user's whole cart.
func (s *Storefront) ReplaceCart(ctx context.Context, userID string, in CartInput) (*models.Cart, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	items := in.Items
	if items == nil {
		items = []models.CartItem{}
	}

	cart, err := s.store.ReplaceCart(ctx, userID, items)
	if err != nil {
		return nil, apperror.Unhandled("Error updating cart", err)
	}
	s.refreshCachedCart(ctx, cart)

	s.record(audit.ActionReplaceCart, userID, cart.ID, map[string]interface{}{"items": len(cart.Items)})
	return cart, nil
}

// refreshCachedCart writes a just-stored cart through to the cache. When that
// fails the cached entry may be stale until it expires, so this process reads
// the user's cart from the store until then.
func (s *Storefront) refreshCachedCart(ctx context.Context, cart *models.Cart) {
	if s.cache == nil {
		return
	}
	err := s.cache.CacheCart(ctx, cart)
	if err == nil {
		s.clearStaleCart(cart)
		return
	}

	s.staleCarts.Store(cart.UserID, staleCart{
		version: cart.UpdatedAt,
		expires: time.Now().Add(repository.CartCacheTTL),
	})
	s.logger.Error("Cart cache refresh failed, bypassing cache until expiry",
		zap.String("user_id", cart.UserID), zap.Error(err))
	if err := s.cache.InvalidateCart(ctx, cart.UserID); err != nil {
		s.logger.Warn("Cart cache invalidation failed", zap.String("user_id", cart.UserID), zap.Error(err))
	}
}

type staleCart struct {
	version time.Time
	expires time.Time
}

func (s *Storefront) cartIsStale(userID string) bool {
	v, ok := s.staleCarts.Load(userID)
	if !ok {
		return false
	}
	if time.Now().After(v.(staleCart).expires) {
		s.staleCarts.CompareAndDelete(userID, v)
		return false
	}
	return true
}

// clearStaleCart lifts the bypass once a cart at least as new as the failed
// write has reached the cache.
func (s *Storefront) clearStaleCart(cart *models.Cart) {
	v, ok := s.staleCarts.Load(cart.UserID)
	if !ok {
		return
	}
	if !cart.UpdatedAt.Before(v.(staleCart).version) {
		s.staleCarts.CompareAndDelete(cart.UserID, v)
	}
}
