// Package model holds the webhook log: the durable, idempotent record
// of every payment-gateway delivery the checkout core has accepted.
package model

import "time"

type Status string

const (
	// StatusProcessed means the order existed and was settled
	// (paid or cancelled) when the webhook was handled.
	StatusProcessed Status = "processed"
	// StatusPendingOrder means the webhook arrived before its order
	// existed (a create_order_from_hold race) and is waiting for
	// reconciliation.
	StatusPendingOrder Status = "pending_order"
)

// Outcome mirrors the gateway's payment_status vocabulary exactly
// (spec.md §6): "success" settles the order paid, "failed" cancels it.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

type WebhookLog struct {
	ID             int64
	IdempotencyKey string
	OrderID        int64
	Outcome        Outcome
	Payload        []byte
	Status         Status
	ProcessedAt    *time.Time
	ReceivedAt     time.Time
}
