package models

import (
	"time"
)

type OrderStatus string

// Orders are written once as pending; nothing transitions them server-side.
const OrderStatusPending OrderStatus = "pending"

type Order struct {
	ID             string      `bson:"_id" json:"_id"`
	UserID         string      `bson:"user_id" json:"userId"`
	CustomerName   string      `bson:"customer_name" json:"customerName"`
	CustomerPhone  string      `bson:"customer_phone" json:"customerPhone"`
	Items          []OrderItem `bson:"items" json:"items"`
	Subtotal       float64     `bson:"subtotal" json:"subtotal"`
	Shipping       float64     `bson:"shipping" json:"shipping"`
	Total          float64     `bson:"total" json:"total"`
	Address        string      `bson:"address" json:"address"`
	Status         OrderStatus `bson:"status" json:"status"`
	IdempotencyKey string      `bson:"idempotency_key,omitempty" json:"-"`
	CreatedAt      time.Time   `bson:"created_at" json:"createdAt"`
}

type OrderItem struct {
	ProductID     string  `bson:"product_id" json:"productId" validate:"required"`
	Name          string  `bson:"name" json:"name"`
	Quantity      int     `bson:"quantity" json:"quantity" validate:"gte=1"`
	Price         float64 `bson:"price" json:"price" validate:"gte=0"`
	Image         string  `bson:"image,omitempty" json:"image,omitempty"`
	SelectedSize  string  `bson:"selected_size,omitempty" json:"selectedSize,omitempty"`
	SelectedColor string  `bson:"selected_color,omitempty" json:"selectedColor,omitempty"`
}
