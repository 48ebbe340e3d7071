package service

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/storefront/pkg/apperror"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blueTee(qty int) models.OrderItem {
	return models.OrderItem{
		ProductID:     "1",
		Name:          "Linen Tee",
		Quantity:      qty,
		Price:         20,
		Image:         "./images/tee.png",
		SelectedSize:  "M",
		SelectedColor: "Blue",
	}
}

func checkoutInput(key string, items ...models.OrderItem) CheckoutInput {
	return CheckoutInput{
		Items:          items,
		Address:        "1 Main St",
		CustomerName:   "Ada Lovelace",
		CustomerPhone:  "555-0100",
		IdempotencyKey: key,
	}
}

func TestCreateOrder(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), Options{})
	userID := repository.NewID()

	order, err := svc.CreateOrder(context.Background(), userID, OrderInput{
		Items:         []models.OrderItem{blueTee(3)},
		Total:         60,
		Address:       "1 Main St",
		CustomerName:  "Ada",
		CustomerPhone: "555-0100",
	})
	require.NoError(t, err)

	assert.True(t, repository.IsValidID(order.ID))
	assert.Equal(t, userID, order.UserID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "/images/tee.png", order.Items[0].Image)
	assert.InDelta(t, 60, order.Subtotal, 0.001)
	assert.InDelta(t, 0, order.Shipping, 0.001)
	assert.InDelta(t, 60, order.Total, 0.001)
	assert.False(t, order.CreatedAt.IsZero())
}

func TestCreateOrder_RequiresCustomerNameAndPhone(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), Options{})

	for name, in := range map[string]OrderInput{
		"no name":  {CustomerPhone: "555"},
		"no phone": {CustomerName: "Ada"},
		"blank":    {CustomerName: "  ", CustomerPhone: "555"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), repository.NewID(), in)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindInvalidInput))
			assert.Equal(t, "Customer name and phone are required.", err.Error())
		})
	}
}

func TestCreateOrder_RejectsBadLines(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), Options{})
	bad := blueTee(0)

	_, err := svc.CreateOrder(context.Background(), repository.NewID(), OrderInput{
		Items:         []models.OrderItem{bad},
		CustomerName:  "Ada",
		CustomerPhone: "555",
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindInvalidInput))
	assert.Contains(t, err.Error(), "items[0].quantity")
}

func TestCreateOrder_IdempotencyKeyReplay(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newTestService(t, store, Options{})
	userID := repository.NewID()
	in := OrderInput{
		Items:          []models.OrderItem{blueTee(1)},
		Total:          25.99,
		CustomerName:   "Ada",
		CustomerPhone:  "555",
		IdempotencyKey: "attempt-1",
	}

	first, err := svc.CreateOrder(context.Background(), userID, in)
	require.NoError(t, err)
	second, err := svc.CreateOrder(context.Background(), userID, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	orders, err := svc.ListOrders(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrders_TenantIsolation(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), Options{})
	ctx := context.Background()
	owner, intruder := repository.NewID(), repository.NewID()

	order, err := svc.CreateOrder(ctx, owner, OrderInput{
		Items:         []models.OrderItem{blueTee(1)},
		Total:         25.99,
		CustomerName:  "Ada",
		CustomerPhone: "555",
	})
	require.NoError(t, err)

	got, err := svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.GetOrder(ctx, intruder, order.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = svc.GetOrder(ctx, owner, repository.NewID())
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = svc.GetOrder(ctx, owner, "not-an-id")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindInvalidInput))
	assert.Equal(t, "Invalid order ID", err.Error())

	theirs, err := svc.ListOrders(ctx, intruder)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestCheckout_ScenarioTotals(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newTestService(t, store, Options{})
	ctx := context.Background()
	userID := repository.NewID()

	_, err := store.ReplaceCart(ctx, userID, []models.CartItem{{ProductID: "1", Name: "Linen Tee", Quantity: 3, Price: 20}})
	require.NoError(t, err)

	res, err := svc.Checkout(ctx, userID, checkoutInput("key-60", blueTee(3)))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.InDelta(t, 60.00, res.Order.Total, 0.001)
	assert.InDelta(t, 0, res.Order.Shipping, 0.001)

	cart, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.Empty(t, cart.Items)

	small := blueTee(1)
	small.Price = 10
	res, err = svc.Checkout(ctx, userID, checkoutInput("key-10", small))
	require.NoError(t, err)
	assert.InDelta(t, 10, res.Order.Subtotal, 0.001)
	assert.InDelta(t, 5.99, res.Order.Shipping, 0.001)
	assert.InDelta(t, 15.99, res.Order.Total, 0.001)
}

func TestCheckout_Validation(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), Options{})
	userID := repository.NewID()

	_, err := svc.Checkout(context.Background(), userID, checkoutInput("k"))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindInvalidInput))
	assert.Equal(t, "Cart is empty", err.Error())

	noAddress := checkoutInput("k", blueTee(1))
	noAddress.Address = " "
	_, err = svc.Checkout(context.Background(), userID, noAddress)
	assert.True(t, apperror.Is(err, apperror.KindInvalidInput))

	noKey := checkoutInput("", blueTee(1))
	_, err = svc.Checkout(context.Background(), userID, noKey)
	assert.True(t, apperror.Is(err, apperror.KindInvalidInput))
}

func TestCheckout_RetryAfterCartClearFailureConverges(t *testing.T) {
	store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
	svc := newTestService(t, store, Options{})
	ctx := context.Background()
	userID := repository.NewID()

	_, err := store.MemoryStore.ReplaceCart(ctx, userID, []models.CartItem{{ProductID: "1", Quantity: 2, Price: 20}})
	require.NoError(t, err)

	store.setFailCart(true)
	_, err = svc.Checkout(ctx, userID, checkoutInput("attempt-1", blueTee(2)))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindUnhandled))

	store.setFailCart(false)
	res, err := svc.Checkout(ctx, userID, checkoutInput("attempt-1", blueTee(2)))
	require.NoError(t, err)
	assert.True(t, res.Replayed)

	orders, err := svc.ListOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, res.Order.ID, orders[0].ID)

	cart, err := store.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCheckout_KeyReusedForDifferentCartIsRejected(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), Options{})
	ctx := context.Background()
	userID := repository.NewID()

	first, err := svc.Checkout(ctx, userID, checkoutInput("attempt-1", blueTee(1)))
	require.NoError(t, err)

	pants := models.OrderItem{ProductID: "2", Name: "Pants", Quantity: 1, Price: 40}
	_, err = svc.Checkout(ctx, userID, checkoutInput("attempt-1", blueTee(1), pants))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	moved := checkoutInput("attempt-1", blueTee(1))
	moved.Address = "2 Side St"
	_, err = svc.Checkout(ctx, userID, moved)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	res, err := svc.Checkout(ctx, userID, checkoutInput("attempt-1", blueTee(1)))
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, first.Order.ID, res.Order.ID)

	orders, err := svc.ListOrders(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCheckout_ConcurrentRetriesCreateOneOrder(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryStore(), Options{})
	ctx := context.Background()
	userID := repository.NewID()

	var wg sync.WaitGroup
	ids := make(chan string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Checkout(ctx, userID, checkoutInput("same-key", blueTee(1)))
			if assert.NoError(t, err) {
				ids <- res.Order.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first string
	for id := range ids {
		if first == "" {
			first = id
		}
		assert.Equal(t, first, id)
	}

	orders, err := svc.ListOrders(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCheckout_RefreshesCachedCart(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := repository.NewRedisRepository(&config.RedisConfig{Addr: mr.Addr()})
	svc := newTestService(t, repository.NewMemoryStore(), Options{Cache: cache})
	ctx := context.Background()
	userID := repository.NewID()

	_, err := svc.ReplaceCart(ctx, userID, CartInput{Items: []models.CartItem{{ProductID: "1", Quantity: 1, Price: 20}}})
	require.NoError(t, err)
	cart, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, mr.Exists("cart:"+userID))

	_, err = svc.Checkout(ctx, userID, checkoutInput("k1", blueTee(1)))
	require.NoError(t, err)

	cached, err := cache.GetCartCache(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, cached.Items)

	cart, err = svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}
