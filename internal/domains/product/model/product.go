// Package model holds the product aggregate: the catalogue row a
// flash sale sells against.
package model

import (
	"time"

	"checkout-core/pkg/money"
)

// Product is a single sellable item. StockTotal never changes after
// creation; StockSold only ever increases, and only when an order
// backing it is marked paid.
type Product struct {
	ID         int64
	Name       string
	Price      money.Money
	StockTotal int
	StockSold  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// View is the read model returned to API callers: the stored fields
// plus the derived available_stock the spec defines as
// stock_total - stock_sold - unused_active_qty - pending_payment_qty.
type View struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Price          money.Money `json:"price"`
	StockTotal     int         `json:"stock_total"`
	StockSold      int         `json:"stock_sold"`
	AvailableStock int         `json:"available_stock"`
}
