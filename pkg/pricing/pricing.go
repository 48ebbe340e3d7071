// Package pricing computes checkout totals. Amounts are summed as decimals and
// rounded to cents before being handed back as float64.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// FreeShippingThreshold is exclusive: a subtotal must exceed it.
	FreeShippingThreshold = decimal.NewFromInt(50)
	ShippingFee           = decimal.RequireFromString("5.99")
)

type Line struct {
	Price    float64
	Quantity int
}

type Summary struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum.Round(2)
}

func Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return ShippingFee
}

func Summarize(lines []Line) Summary {
	subtotal := Subtotal(lines)
	shipping := Shipping(subtotal)
	total := subtotal.Add(shipping).Round(2)

	return Summary{
		Subtotal: subtotal.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}
}

// NormalizeImage turns a product image reference into a root-relative path:
// a leading "./" or "public/" is dropped and a leading "/" is ensured.
func NormalizeImage(path string) string {
	if path == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(path, "./"):
		path = strings.TrimPrefix(path, "./")
	case strings.HasPrefix(path, "."):
		path = strings.TrimPrefix(path, ".")
	case strings.HasPrefix(path, "public/"):
		path = strings.TrimPrefix(path, "public/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
