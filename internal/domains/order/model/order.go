// Package model holds the order aggregate: the settlement record a
// hold turns into once checkout is submitted.
package model

import (
	"time"

	"checkout-core/pkg/money"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusCancelled      Status = "cancelled"
)

// Order is created 1:1 from a hold. Status only moves
// pending_payment -> paid or pending_payment -> cancelled; once paid
// or cancelled it is terminal.
type Order struct {
	ID        int64
	HoldID    int64
	Status    Status
	Amount    money.Money
	CreatedAt time.Time
	UpdatedAt time.Time
}
