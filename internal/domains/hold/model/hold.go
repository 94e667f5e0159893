// Package model holds the reservation a checkout attempt takes against
// a product's available stock while the shopper completes payment.
package model

import "time"

// Hold reserves qty units of a product for a bounded window. Used and
// Released each flip at most once and are mutually exclusive once
// set; a hold that is neither is "active".
type Hold struct {
	ID        int64
	ProductID int64
	Qty       int
	ExpiresAt time.Time
	Used      bool
	Released  bool
	CreatedAt time.Time
}

// IsActive reports whether the hold still reserves stock: not used,
// not released, and not past its expiry.
func (h *Hold) IsActive(now time.Time) bool {
	return !h.Used && !h.Released && h.ExpiresAt.After(now)
}
