package repository

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrCacheMiss = errors.New("cache miss")
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        string                 `bson:"_id,omitempty" json:"id"`
	Service   string                 `bson:"service" json:"service"`
	Action    string                 `bson:"action" json:"action"`
	UserID    string                 `bson:"user_id" json:"user_id"`
	EntityID  string                 `bson:"entity_id" json:"entity_id"`
	Data      map[string]interface{} `bson:"data" json:"data"`
	CreatedAt time.Time              `bson:"created_at" json:"created_at"`
}

// NewID returns a fresh identifier. Every store uses ObjectID hex strings so
// that id validation means the same thing regardless of the backend.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

func IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// nextUpdatedAt returns a millisecond timestamp strictly after prev.
func nextUpdatedAt(prev, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Millisecond)
	if !now.After(prev) {
		return prev.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return now
}
