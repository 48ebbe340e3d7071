package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection  = "users"
	cartsCollection  = "carts"
	ordersCollection = "orders"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	repo := &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoRepository) users() *mongo.Collection {
	return m.database.Collection(usersCollection)
}

func (m *MongoRepository) carts() *mongo.Collection {
	return m.database.Collection(cartsCollection)
}

func (m *MongoRepository) orders() *mongo.Collection {
	return m.database.Collection(ordersCollection)
}

// EnsureIndexes creates the unique indexes the stores rely on: one user per
// email, one cart per user, one order per (user, idempotency key).
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := m.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	if _, err := m.carts().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create carts index: %w", err)
	}

	if _, err := m.orders().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
		},
	}); err != nil {
		return fmt.Errorf("failed to create orders indexes: %w", err)
	}

	return nil
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	collection := m.database.Collection(m.config.AuditCollection)
	if log.ID == "" {
		log.ID = NewID()
	}
	log.CreatedAt = time.Now()
	_, err := collection.InsertOne(ctx, log)
	return err
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	collection := m.database.Collection(m.config.AuditCollection)

	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func (m *MongoRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := m.users().InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (m *MongoRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"email": email})
}

func (m *MongoRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"_id": id})
}

func (m *MongoRepository) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := m.users().FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	if err := m.carts().FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

// ReplaceCart upserts the user's cart in one round trip. The update pipeline
// bumps updated_at to at least one millisecond past the stored value, so the
// timestamp strictly increases even when two writes land in the same tick.
func (m *MongoRepository) ReplaceCart(ctx context.Context, userID string, items []models.CartItem) (*models.Cart, error) {
	if items == nil {
		items = []models.CartItem{}
	}
	now := time.Now().UTC().Truncate(time.Millisecond)

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "user_id", Value: userID},
			{Key: "items", Value: bson.D{{Key: "$literal", Value: items}}},
			{Key: "created_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$created_at", now}}}},
			{Key: "updated_at", Value: bson.D{{Key: "$max", Value: bson.A{
				now,
				bson.D{{Key: "$add", Value: bson.A{
					bson.D{{Key: "$ifNull", Value: bson.A{"$updated_at", time.Unix(0, 0).UTC()}}},
					1,
				}}},
			}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var cart models.Cart
	err := m.carts().FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&cart)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent first write inserted the cart; the retry takes the update path.
		err = m.carts().FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&cart)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart: %w", err)
	}
	return &cart, nil
}

func (m *MongoRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = NewID()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := m.orders().InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (m *MongoRepository) ListOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := m.orders().Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []*models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (m *MongoRepository) FindOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	return m.findOrder(ctx, bson.M{"_id": orderID, "user_id": userID})
}

func (m *MongoRepository) FindOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	return m.findOrder(ctx, bson.M{"user_id": userID, "idempotency_key": key})
}

func (m *MongoRepository) findOrder(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	if err := m.orders().FindOne(ctx, filter).Decode(&order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}
