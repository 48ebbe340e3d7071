package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/storefront/pkg/models"
)

// MemoryStore keeps every record in process memory. It backs the "memory"
// storage driver and the service tests.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*models.User
	emails map[string]string
	carts  map[string]*models.Cart
	orders map[string]*models.Order
	audit  []*AuditLog
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*models.User),
		emails: make(map[string]string),
		carts:  make(map[string]*models.Cart),
		orders: make(map[string]*models.Order),
		now:    time.Now,
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.emails[user.Email]; exists {
		return ErrDuplicate
	}
	if user.ID == "" {
		user.ID = NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.now().UTC().Truncate(time.Millisecond)
	}

	stored := *user
	m.users[stored.ID] = &stored
	m.emails[stored.Email] = stored.ID
	return nil
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	user := *m.users[id]
	return &user, nil
}

func (m *MemoryStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := *stored
	return &user, nil
}

func (m *MemoryStore) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cart, ok := m.carts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCart(cart), nil
}

func (m *MemoryStore) ReplaceCart(ctx context.Context, userID string, items []models.CartItem) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cart, ok := m.carts[userID]
	if !ok {
		created := now.UTC().Truncate(time.Millisecond)
		cart = &models.Cart{ID: NewID(), UserID: userID, CreatedAt: created, UpdatedAt: created}
		m.carts[userID] = cart
	} else {
		cart.UpdatedAt = nextUpdatedAt(cart.UpdatedAt, now)
	}
	cart.Items = append([]models.CartItem{}, items...)

	return copyCart(cart), nil
}

func copyCart(cart *models.Cart) *models.Cart {
	out := *cart
	out.Items = append([]models.CartItem{}, cart.Items...)
	return &out
}

func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.IdempotencyKey != "" {
		for _, existing := range m.orders {
			if existing.UserID == order.UserID && existing.IdempotencyKey == order.IdempotencyKey {
				return ErrDuplicate
			}
		}
	}
	if order.ID == "" {
		order.ID = NewID()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = m.now().UTC().Truncate(time.Millisecond)
	}

	m.orders[order.ID] = copyOrder(order)
	return nil
}

func copyOrder(order *models.Order) *models.Order {
	out := *order
	out.Items = append([]models.OrderItem{}, order.Items...)
	return &out
}

func (m *MemoryStore) ListOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := []*models.Order{}
	for _, order := range m.orders {
		if order.UserID == userID {
			orders = append(orders, copyOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (m *MemoryStore) FindOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, ErrNotFound
	}
	return copyOrder(order), nil
}

func (m *MemoryStore) FindOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, order := range m.orders {
		if order.UserID == userID && order.IdempotencyKey == key {
			return copyOrder(order), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if log.ID == "" {
		log.ID = NewID()
	}
	log.CreatedAt = m.now().UTC()
	entry := *log
	m.audit = append(m.audit, &entry)
	return nil
}

func (m *MemoryStore) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := []*AuditLog{}
	for i := len(m.audit) - 1; i >= 0 && int64(len(logs)) < limit; i-- {
		if m.audit[i].EntityID == entityID {
			entry := *m.audit[i]
			logs = append(logs, &entry)
		}
	}
	return logs, nil
}
