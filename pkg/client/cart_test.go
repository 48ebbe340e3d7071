package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartAddMergesMatchingLines(t *testing.T) {
	var cart Cart
	cart = cart.Add(Line{ID: "p1", Name: "Shirt", Price: 20, Quantity: 1, SelectedSize: "M", SelectedColor: "Blue"})
	cart = cart.Add(Line{ID: "p1", Name: "Shirt", Price: 20, Quantity: 2, SelectedSize: "M", SelectedColor: "Blue"})

	assert.Len(t, cart, 1)
	assert.Equal(t, 3, cart[0].Quantity)
	assert.Equal(t, 3, cart.Count())

	summary := cart.Summary()
	assert.Equal(t, 60.0, summary.Subtotal)
	assert.Equal(t, 0.0, summary.Shipping)
	assert.Equal(t, 60.0, summary.Total)
}

func TestCartAddKeepsVariantsApart(t *testing.T) {
	var cart Cart
	cart = cart.Add(Line{ID: "p1", Price: 5, Quantity: 1, SelectedSize: "M", SelectedColor: "Blue"})
	cart = cart.Add(Line{ID: "p1", Price: 5, Quantity: 1, SelectedSize: "L", SelectedColor: "Blue"})
	cart = cart.Add(Line{ID: "p1", Price: 5, Quantity: 1, SelectedSize: "M", SelectedColor: "Red"})

	assert.Len(t, cart, 3)
	assert.Equal(t, 3, cart.Count())

	summary := cart.Summary()
	assert.Equal(t, 15.0, summary.Subtotal)
	assert.Equal(t, 5.99, summary.Shipping)
	assert.Equal(t, 20.99, summary.Total)
}

func TestCartMergeIsOrderIndependent(t *testing.T) {
	a := Line{ID: "a", Price: 10, Quantity: 1}
	b := Line{ID: "b", Price: 7.5, Quantity: 2}
	a2 := Line{ID: "a", Price: 10, Quantity: 4}

	var first, second Cart
	for _, l := range []Line{a, b, a2} {
		first = first.Add(l)
	}
	for _, l := range []Line{a2, b, a} {
		second = second.Add(l)
	}

	assert.Equal(t, first.Count(), second.Count())
	assert.Equal(t, first.Summary(), second.Summary())
	assert.ElementsMatch(t, first, second)
}

func TestCartSetQuantity(t *testing.T) {
	line := Line{ID: "p1", Price: 10, Quantity: 2, SelectedSize: "S"}
	cart := Cart{line}

	cart = cart.SetQuantity(line.Key(), 5)
	assert.Equal(t, 5, cart[0].Quantity)

	cart = cart.SetQuantity(line.Key(), 0)
	assert.Equal(t, 5, cart[0].Quantity, "quantities below one are ignored")

	cart = cart.SetQuantity(LineKey{ID: "p1", Size: "XL"}, 9)
	assert.Equal(t, 5, cart[0].Quantity)
}

func TestCartRemove(t *testing.T) {
	blue := Line{ID: "p1", Quantity: 1, SelectedColor: "Blue"}
	red := Line{ID: "p1", Quantity: 1, SelectedColor: "Red"}
	cart := Cart{blue, red}

	cart = cart.Remove(blue.Key())
	assert.Equal(t, Cart{red}, cart)

	cart = cart.Remove(red.Key())
	assert.True(t, cart.IsEmpty())
}

func TestCartOrderItemsNormalizeImages(t *testing.T) {
	cart := Cart{
		{ID: "p1", Name: "Shirt", Price: 20, Quantity: 1, Image: "./images/shirt.png", SelectedSize: "M"},
		{ID: "p2", Name: "Hat", Price: 5, Quantity: 2, Image: "public/images/hat.png"},
	}

	items := cart.orderItems()
	assert.Equal(t, "/images/shirt.png", items[0].Image)
	assert.Equal(t, "M", items[0].SelectedSize)
	assert.Equal(t, "/images/hat.png", items[1].Image)

	cartItems := cart.cartItems()
	assert.Equal(t, "p2", cartItems[1].ProductID)
	assert.Equal(t, 2, cartItems[1].Quantity)
}
