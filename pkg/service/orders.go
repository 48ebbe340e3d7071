package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/example/storefront/pkg/apperror"
	"github.com/example/storefront/pkg/audit"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pricing"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
)

// OrderInput is the body of a direct order placement. Total is taken as
// submitted by the client.
type OrderInput struct {
	Items          []models.OrderItem `json:"items" validate:"dive"`
	Total          float64            `json:"total" validate:"gte=0"`
	Address        string             `json:"address" validate:"max=500"`
	CustomerName   string             `json:"customerName" validate:"max=200"`
	CustomerPhone  string             `json:"customerPhone" validate:"max=50"`
	IdempotencyKey string             `json:"-" validate:"max=64"`
}

// CheckoutInput is one checkout attempt. The server prices the items itself,
// and the idempotency key identifies the attempt across retries.
type CheckoutInput struct {
	Items          []models.OrderItem `json:"items" validate:"required,min=1,dive"`
	Address        string             `json:"address" validate:"required,max=500"`
	CustomerName   string             `json:"customerName" validate:"required,max=200"`
	CustomerPhone  string             `json:"customerPhone" validate:"required,max=50"`
	IdempotencyKey string             `json:"-" validate:"required,max=64"`
}

type CheckoutResult struct {
	Order *models.Order
	// Replayed is set when the key matched an order from an earlier attempt.
	Replayed bool
}

func orderLines(items []models.OrderItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.Line{Price: item.Price, Quantity: item.Quantity})
	}
	return lines
}

func normalizeItems(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		item.Image = pricing.NormalizeImage(item.Image)
		out = append(out, item)
	}
	return out
}

func (s *Storefront) CreateOrder(ctx context.Context, userID string, in OrderInput) (*models.Order, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	if in.CustomerName == "" || in.CustomerPhone == "" {
		return nil, apperror.InvalidInput("Customer name and phone are required.")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	items := normalizeItems(in.Items)
	summary := pricing.Summarize(orderLines(items))
	order := &models.Order{
		UserID:         userID,
		CustomerName:   in.CustomerName,
		CustomerPhone:  in.CustomerPhone,
		Items:          items,
		Subtotal:       summary.Subtotal,
		Shipping:       summary.Shipping,
		Total:          in.Total,
		Address:        strings.TrimSpace(in.Address),
		Status:         models.OrderStatusPending,
		IdempotencyKey: in.IdempotencyKey,
	}

	placed, _, err := s.placeOrder(ctx, order)
	if errors.Is(err, errKeyReused) {
		return nil, errKeyReused
	}
	if err != nil {
		return nil, apperror.Unhandled("Error placing order", err)
	}

	s.record(audit.ActionCreateOrder, userID, placed.ID, map[string]interface{}{"total": placed.Total})
	return placed, nil
}

// errKeyReused is returned by placeOrder when the idempotency key belongs to
// an order with different contents.
var errKeyReused = apperror.Conflict("Idempotency key was already used for a different order")

// placeOrder inserts order, or returns the order already stored under the
// same idempotency key when it has the same contents.
func (s *Storefront) placeOrder(ctx context.Context, order *models.Order) (*models.Order, bool, error) {
	if order.IdempotencyKey != "" {
		existing, err := s.store.FindOrderByIdempotencyKey(ctx, order.UserID, order.IdempotencyKey)
		if err == nil {
			return replay(existing, order)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, false, err
		}
	}

	err := s.store.CreateOrder(ctx, order)
	if errors.Is(err, repository.ErrDuplicate) && order.IdempotencyKey != "" {
		// A concurrent attempt with the same key won the insert.
		existing, findErr := s.store.FindOrderByIdempotencyKey(ctx, order.UserID, order.IdempotencyKey)
		if findErr != nil {
			return nil, false, findErr
		}
		return replay(existing, order)
	}
	if err != nil {
		return nil, false, err
	}
	return order, false, nil
}

func replay(existing, requested *models.Order) (*models.Order, bool, error) {
	if !sameOrder(existing, requested) {
		return nil, false, errKeyReused
	}
	return existing, true, nil
}

// sameOrder compares what the shopper submitted: recipient, address, total
// and the lines in order.
func sameOrder(a, b *models.Order) bool {
	if a.Address != b.Address || a.CustomerName != b.CustomerName || a.CustomerPhone != b.CustomerPhone {
		return false
	}
	if !sameAmount(a.Total, b.Total) || len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		x, y := a.Items[i], b.Items[i]
		if x.ProductID != y.ProductID || x.Quantity != y.Quantity || !sameAmount(x.Price, y.Price) ||
			x.SelectedSize != y.SelectedSize || x.SelectedColor != y.SelectedColor {
			return false
		}
	}
	return true
}

func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

// Checkout places the order and empties the server cart. Both steps are
// safe to repeat with the same key: a retry after a failed cart clear finds
// the existing order and clears the cart again.
func (s *Storefront) Checkout(ctx context.Context, userID string, in CheckoutInput) (*CheckoutResult, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.Address = strings.TrimSpace(in.Address)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if len(in.Items) == 0 {
		return nil, apperror.InvalidInput("Cart is empty")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	items := normalizeItems(in.Items)
	summary := pricing.Summarize(orderLines(items))
	order, replayed, err := s.placeOrder(ctx, &models.Order{
		UserID:         userID,
		CustomerName:   in.CustomerName,
		CustomerPhone:  in.CustomerPhone,
		Items:          items,
		Subtotal:       summary.Subtotal,
		Shipping:       summary.Shipping,
		Total:          summary.Total,
		Address:        in.Address,
		Status:         models.OrderStatusPending,
		IdempotencyKey: in.IdempotencyKey,
	})
	if errors.Is(err, errKeyReused) {
		return nil, errKeyReused
	}
	if err != nil {
		return nil, apperror.Unhandled("Error placing order", err)
	}

	cleared, err := s.store.ReplaceCart(ctx, userID, []models.CartItem{})
	if err != nil {
		s.logger.Error("Cart clear after checkout failed",
			zap.String("user_id", userID),
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil, apperror.Unhandled("Order placed but clearing the cart failed; retry checkout", err)
	}
	s.refreshCachedCart(ctx, cleared)

	if !replayed {
		s.record(audit.ActionCheckout, userID, order.ID, map[string]interface{}{
			"total":           order.Total,
			"idempotency_key": order.IdempotencyKey,
		})
	}
	return &CheckoutResult{Order: order, Replayed: replayed}, nil
}

func (s *Storefront) ListOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	orders, err := s.store.ListOrders(ctx, userID)
	if err != nil {
		return nil, apperror.Unhandled("Error fetching orders", err)
	}
	return orders, nil
}

func (s *Storefront) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	if !repository.IsValidID(orderID) {
		return nil, apperror.InvalidInput("Invalid order ID")
	}

	order, err := s.store.FindOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Order not found")
		}
		return nil, apperror.Unhandled("Error fetching order", err)
	}
	return order, nil
}
