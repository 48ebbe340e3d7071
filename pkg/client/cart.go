package client

import (
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pricing"
)

// Line is one entry of the local cart. Lines are identified by product,
// size and color together.
type Line struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Image         string  `json:"image,omitempty"`
	Quantity      int     `json:"quantity"`
	SelectedSize  string  `json:"selectedSize,omitempty"`
	SelectedColor string  `json:"selectedColor,omitempty"`
}

type LineKey struct {
	ID    string
	Size  string
	Color string
}

func (l Line) Key() LineKey {
	return LineKey{ID: l.ID, Size: l.SelectedSize, Color: l.SelectedColor}
}

type Cart []Line

// Add merges line into the cart: quantities accumulate on a matching key,
// otherwise the line is appended.
func (c Cart) Add(line Line) Cart {
	for i := range c {
		if c[i].Key() == line.Key() {
			c[i].Quantity += line.Quantity
			return c
		}
	}
	return append(c, line)
}

// SetQuantity changes the quantity of the matching line. Values below one are
// ignored; use Remove to drop a line.
func (c Cart) SetQuantity(key LineKey, quantity int) Cart {
	if quantity < 1 {
		return c
	}
	for i := range c {
		if c[i].Key() == key {
			c[i].Quantity = quantity
		}
	}
	return c
}

func (c Cart) Remove(key LineKey) Cart {
	out := c[:0]
	for _, line := range c {
		if line.Key() != key {
			out = append(out, line)
		}
	}
	return out
}

// Count is the number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, line := range c {
		n += line.Quantity
	}
	return n
}

func (c Cart) IsEmpty() bool {
	return len(c) == 0
}

func (c Cart) Summary() pricing.Summary {
	lines := make([]pricing.Line, 0, len(c))
	for _, line := range c {
		lines = append(lines, pricing.Line{Price: line.Price, Quantity: line.Quantity})
	}
	return pricing.Summarize(lines)
}

func (c Cart) cartItems() []models.CartItem {
	items := make([]models.CartItem, 0, len(c))
	for _, line := range c {
		items = append(items, models.CartItem{
			ProductID: line.ID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}
	return items
}

// orderItems converts the cart for checkout, normalizing image paths.
func (c Cart) orderItems() []models.OrderItem {
	items := make([]models.OrderItem, 0, len(c))
	for _, line := range c {
		items = append(items, models.OrderItem{
			ProductID:     line.ID,
			Name:          line.Name,
			Quantity:      line.Quantity,
			Price:         line.Price,
			Image:         pricing.NormalizeImage(line.Image),
			SelectedSize:  line.SelectedSize,
			SelectedColor: line.SelectedColor,
		})
	}
	return items
}
