package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pricing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const syncTimeout = 10 * time.Second

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrNotSignedIn    = errors.New("not signed in")
	ErrIncompleteForm = errors.New("shipping address and phone are required")
)

type CheckoutForm struct {
	FirstName string
	LastName  string
	Address   string
	Phone     string
}

// Session is the shopper's view of the store: credentials and the working
// cart live in the local store, and the server cart is a best-effort mirror
// updated when items are added.
type Session struct {
	api    *API
	store  LocalStore
	logger *zap.Logger

	mu     sync.Mutex
	syncMu sync.Mutex
	syncs  sync.WaitGroup
}

func NewSession(api *API, store LocalStore, logger *zap.Logger) *Session {
	return &Session{api: api, store: store, logger: logger}
}

func (s *Session) Signup(ctx context.Context, req SignupRequest) (*models.PublicUser, error) {
	res, err := s.api.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.saveCredentials(res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (s *Session) Login(ctx context.Context, email, password string) (*models.PublicUser, error) {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.saveCredentials(res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (s *Session) saveCredentials(res *AuthResponse) error {
	user, err := json.Marshal(res.User)
	if err != nil {
		return err
	}
	if err := s.store.Set(KeyUser, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	if err := s.store.Set(KeyToken, []byte(res.Token)); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Logout asks the server to revoke the token, then forgets the credentials.
// The local cart is kept.
func (s *Session) Logout(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		return nil
	}
	s.Flush()

	if err := s.api.Logout(ctx, token); err != nil && !IsUnauthorized(err) {
		s.logger.Warn("Server logout failed", zap.Error(err))
	}
	if err := s.store.Delete(KeyToken); err != nil {
		return err
	}
	return s.store.Delete(KeyUser)
}

func (s *Session) Token() string {
	token, err := s.store.Get(KeyToken)
	if err != nil {
		return ""
	}
	return string(token)
}

// CurrentUser returns the signed-in user, or nil.
func (s *Session) CurrentUser() (*models.PublicUser, error) {
	data, err := s.store.Get(KeyUser)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user models.PublicUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode stored user: %w", err)
	}
	return &user, nil
}

func (s *Session) Cart() (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCart()
}

func (s *Session) loadCart() (Cart, error) {
	data, err := s.store.Get(KeyCart)
	if errors.Is(err, ErrKeyNotFound) {
		return Cart{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode stored cart: %w", err)
	}
	return cart, nil
}

func (s *Session) saveCart(cart Cart) error {
	if cart.IsEmpty() {
		return s.store.Delete(KeyCart)
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.store.Set(KeyCart, data)
}

func (s *Session) mutateCart(fn func(Cart) Cart) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadCart()
	if err != nil {
		return nil, err
	}
	cart = fn(cart)
	if err := s.saveCart(cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return cart, nil
}

// AddToCart updates the local cart right away. When signed in, the whole cart
// is then pushed to the server in the background; failures there are logged
// and otherwise ignored.
func (s *Session) AddToCart(line Line) (Cart, error) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	cart, err := s.mutateCart(func(c Cart) Cart { return c.Add(line) })
	if err != nil {
		return nil, err
	}

	if token := s.Token(); token != "" {
		s.syncs.Add(1)
		go s.syncCart(token)
	}
	return cart, nil
}

// syncCart sends the cart as stored at send time, so the last sync to run
// always carries the newest local state.
func (s *Session) syncCart(token string) {
	defer s.syncs.Done()
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	cart, err := s.Cart()
	if err != nil {
		s.logger.Debug("Cart sync skipped", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if _, err := s.api.ReplaceCart(ctx, token, cart.cartItems()); err != nil {
		s.logger.Debug("Cart sync failed", zap.Error(err))
	}
}

// Flush waits for background cart syncs to finish.
func (s *Session) Flush() {
	s.syncs.Wait()
}

func (s *Session) UpdateQuantity(key LineKey, quantity int) (Cart, error) {
	return s.mutateCart(func(c Cart) Cart { return c.SetQuantity(key, quantity) })
}

func (s *Session) RemoveItem(key LineKey) (Cart, error) {
	return s.mutateCart(func(c Cart) Cart { return c.Remove(key) })
}

func (s *Session) ClearCart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(KeyCart)
}

func (s *Session) Summary() (pricing.Summary, error) {
	cart, err := s.Cart()
	if err != nil {
		return pricing.Summary{}, err
	}
	return cart.Summary(), nil
}

// pendingCheckout is the saved attempt: its idempotency key and a digest of
// the request the key was issued for.
type pendingCheckout struct {
	Key         string `json:"key"`
	Fingerprint string `json:"fingerprint"`
}

func fingerprint(req OrderRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// checkoutKey returns the key of the pending attempt for req. A retry of the
// same request reuses it, across restarts too; a changed cart or form gets a
// fresh key.
func (s *Session) checkoutKey(req OrderRequest) (string, error) {
	digest, err := fingerprint(req)
	if err != nil {
		return "", err
	}

	data, err := s.store.Get(KeyCheckoutKey)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return "", err
	}
	if err == nil {
		var pending pendingCheckout
		if json.Unmarshal(data, &pending) == nil && pending.Key != "" && pending.Fingerprint == digest {
			return pending.Key, nil
		}
	}

	pending := pendingCheckout{Key: uuid.New().String(), Fingerprint: digest}
	data, err = json.Marshal(pending)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(KeyCheckoutKey, data); err != nil {
		return "", fmt.Errorf("failed to save checkout key: %w", err)
	}
	return pending.Key, nil
}

// Checkout places an order for the local cart. On acceptance the server has
// already emptied its copy of the cart, and the local cart is cleared too.
func (s *Session) Checkout(ctx context.Context, form CheckoutForm) (*models.Order, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNotSignedIn
	}
	if strings.TrimSpace(form.Address) == "" || strings.TrimSpace(form.Phone) == "" {
		return nil, ErrIncompleteForm
	}

	// A sync landing after checkout would refill the server cart.
	s.Flush()

	cart, err := s.Cart()
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	req := OrderRequest{
		Items:         cart.orderItems(),
		Address:       strings.TrimSpace(form.Address),
		CustomerName:  strings.TrimSpace(form.FirstName + " " + form.LastName),
		CustomerPhone: strings.TrimSpace(form.Phone),
	}
	key, err := s.checkoutKey(req)
	if err != nil {
		return nil, err
	}

	order, err := s.api.Checkout(ctx, token, key, req)
	if err != nil {
		return nil, err
	}

	if err := s.ClearCart(); err != nil {
		s.logger.Warn("Failed to clear local cart after checkout", zap.Error(err))
	}
	if err := s.store.Delete(KeyCheckoutKey); err != nil {
		s.logger.Warn("Failed to clear checkout key", zap.Error(err))
	}
	return order, nil
}

func (s *Session) Orders(ctx context.Context) ([]*models.Order, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNotSignedIn
	}
	return s.api.ListOrders(ctx, token)
}

func (s *Session) Order(ctx context.Context, id string) (*models.Order, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNotSignedIn
	}
	return s.api.GetOrder(ctx, token, id)
}
