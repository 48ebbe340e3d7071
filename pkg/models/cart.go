package models

import (
	"time"
)

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"_id"`
	UserID    string     `bson:"user_id" json:"userId"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
}

type CartItem struct {
	ProductID string  `bson:"product_id" json:"productId" validate:"required"`
	Name      string  `bson:"name" json:"name"`
	Quantity  int     `bson:"quantity" json:"quantity" validate:"gte=1"`
	Price     float64 `bson:"price" json:"price" validate:"gte=0"`
}
