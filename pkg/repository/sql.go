package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Cart, order and audit rows keep their nested collections as JSON text.
type cartRow struct {
	ID        string    `gorm:"primaryKey;type:varchar(24)"`
	UserID    string    `gorm:"type:varchar(24);uniqueIndex;not null"`
	Items     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (cartRow) TableName() string {
	return "carts"
}

type orderRow struct {
	ID             string    `gorm:"primaryKey;type:varchar(24)"`
	UserID         string    `gorm:"type:varchar(24);not null;index;uniqueIndex:idx_orders_user_key,priority:1"`
	CustomerName   string    `gorm:"type:varchar(200);not null"`
	CustomerPhone  string    `gorm:"type:varchar(50);not null"`
	Items          string    `gorm:"type:text"`
	Subtotal       float64   `gorm:"type:decimal(10,2)"`
	Shipping       float64   `gorm:"type:decimal(10,2)"`
	Total          float64   `gorm:"type:decimal(10,2)"`
	Address        string    `gorm:"type:varchar(500)"`
	Status         string    `gorm:"type:varchar(20);default:'pending'"`
	IdempotencyKey *string   `gorm:"type:varchar(64);uniqueIndex:idx_orders_user_key,priority:2"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
}

func (orderRow) TableName() string {
	return "orders"
}

type auditRow struct {
	ID        string    `gorm:"primaryKey;type:varchar(24)"`
	Service   string    `gorm:"type:varchar(50)"`
	Action    string    `gorm:"type:varchar(50);index"`
	UserID    string    `gorm:"type:varchar(24)"`
	EntityID  string    `gorm:"type:varchar(24);index"`
	Data      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (auditRow) TableName() string {
	return "audit_logs"
}

type SQLRepository struct {
	db *gorm.DB
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

func NewMySQLRepository(cfg *config.MySQLConfig) (*SQLRepository, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get MySQL handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	return newSQLRepository(db)
}

// NewSQLiteRepository opens a SQLite database at path. A single connection is
// used so writers serialize, which SQLite requires anyway.
func NewSQLiteRepository(path string) (*SQLRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQLite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return newSQLRepository(db)
}

func newSQLRepository(db *gorm.DB) (*SQLRepository, error) {
	if err := db.AutoMigrate(&models.User{}, &cartRow{}, &orderRow{}, &auditRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &SQLRepository{db: db}, nil
}

func (s *SQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLRepository) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = NewID()
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *SQLRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *SQLRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *SQLRepository) findUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *SQLRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	var row cartRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return row.toModel()
}

func (s *SQLRepository) ReplaceCart(ctx context.Context, userID string, items []models.CartItem) (*models.Cart, error) {
	cart, err := s.replaceCart(ctx, userID, items)
	if errors.Is(err, ErrDuplicate) {
		// Lost the race to create the row; the retry locks and updates it.
		cart, err = s.replaceCart(ctx, userID, items)
	}
	return cart, err
}

func (s *SQLRepository) replaceCart(ctx context.Context, userID string, items []models.CartItem) (*models.Cart, error) {
	if items == nil {
		items = []models.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart items: %w", err)
	}

	var row cartRow
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&row).Error

		now := time.Now()
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			now = now.UTC().Truncate(time.Millisecond)
			row = cartRow{
				ID:        NewID(),
				UserID:    userID,
				Items:     string(data),
				CreatedAt: now,
				UpdatedAt: now,
			}
			return tx.Create(&row).Error
		case err != nil:
			return err
		}

		row.Items = string(data)
		row.UpdatedAt = nextUpdatedAt(row.UpdatedAt, now)
		return tx.Model(&cartRow{}).
			Where("id = ?", row.ID).
			Updates(map[string]interface{}{"items": row.Items, "updated_at": row.UpdatedAt}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to upsert cart: %w", err)
	}
	return row.toModel()
}

func (r *cartRow) toModel() (*models.Cart, error) {
	items := []models.CartItem{}
	if r.Items != "" {
		if err := json.Unmarshal([]byte(r.Items), &items); err != nil {
			return nil, fmt.Errorf("failed to decode cart items: %w", err)
		}
	}
	return &models.Cart{
		ID:        r.ID,
		UserID:    r.UserID,
		Items:     items,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

func (s *SQLRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = NewID()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	row, err := newOrderRow(order)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *SQLRepository) ListOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	var rows []orderRow
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*models.Order, 0, len(rows))
	for i := range rows {
		order, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *SQLRepository) FindOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	return s.findOrder(ctx, "id = ? AND user_id = ?", orderID, userID)
}

func (s *SQLRepository) FindOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	return s.findOrder(ctx, "user_id = ? AND idempotency_key = ?", userID, key)
}

func (s *SQLRepository) findOrder(ctx context.Context, query string, args ...interface{}) (*models.Order, error) {
	var row orderRow
	if err := s.db.WithContext(ctx).Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return row.toModel()
}

func newOrderRow(order *models.Order) (*orderRow, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order items: %w", err)
	}

	row := &orderRow{
		ID:            order.ID,
		UserID:        order.UserID,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		Items:         string(items),
		Subtotal:      order.Subtotal,
		Shipping:      order.Shipping,
		Total:         order.Total,
		Address:       order.Address,
		Status:        string(order.Status),
		CreatedAt:     order.CreatedAt,
	}
	if order.IdempotencyKey != "" {
		key := order.IdempotencyKey
		row.IdempotencyKey = &key
	}
	return row, nil
}

func (r *orderRow) toModel() (*models.Order, error) {
	items := []models.OrderItem{}
	if r.Items != "" {
		if err := json.Unmarshal([]byte(r.Items), &items); err != nil {
			return nil, fmt.Errorf("failed to decode order items: %w", err)
		}
	}

	order := &models.Order{
		ID:            r.ID,
		UserID:        r.UserID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		Items:         items,
		Subtotal:      r.Subtotal,
		Shipping:      r.Shipping,
		Total:         r.Total,
		Address:       r.Address,
		Status:        models.OrderStatus(r.Status),
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.IdempotencyKey != nil {
		order.IdempotencyKey = *r.IdempotencyKey
	}
	return order, nil
}

func (s *SQLRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = NewID()
	}
	log.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(log.Data)
	if err != nil {
		return fmt.Errorf("failed to encode audit data: %w", err)
	}

	return s.db.WithContext(ctx).Create(&auditRow{
		ID:        log.ID,
		Service:   log.Service,
		Action:    log.Action,
		UserID:    log.UserID,
		EntityID:  log.EntityID,
		Data:      string(data),
		CreatedAt: log.CreatedAt,
	}).Error
}

func (s *SQLRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	var rows []auditRow
	if err := s.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("created_at DESC").
		Limit(int(limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	logs := make([]*AuditLog, 0, len(rows))
	for _, row := range rows {
		entry := &AuditLog{
			ID:        row.ID,
			Service:   row.Service,
			Action:    row.Action,
			UserID:    row.UserID,
			EntityID:  row.EntityID,
			CreatedAt: row.CreatedAt.UTC(),
		}
		if row.Data != "" {
			if err := json.Unmarshal([]byte(row.Data), &entry.Data); err != nil {
				return nil, fmt.Errorf("failed to decode audit data: %w", err)
			}
		}
		logs = append(logs, entry)
	}
	return logs, nil
}
