// Package apperror defines the checkout core's error taxonomy: one
// Kind per failure mode the spec calls out, each carrying the HTTP
// status its handler should answer with.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidationFailed  Kind = "VALIDATION_FAILED"
	KindNotFound          Kind = "NOT_FOUND"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindHoldAlreadyUsed   Kind = "HOLD_ALREADY_USED"
	KindHoldReleased      Kind = "HOLD_RELEASED"
	KindHoldExpired       Kind = "HOLD_EXPIRED"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindHighContention    Kind = "HIGH_CONTENTION"
	KindAlreadyProcessed  Kind = "ALREADY_PROCESSED"
	KindPendingOrder      Kind = "PENDING_ORDER"
	KindMissingField      Kind = "MISSING_FIELD"
	KindInvalidPayment    Kind = "INVALID_PAYMENT_STATUS"
	KindInternal          Kind = "INTERNAL"
)

// httpStatus maps a Kind to the HTTP status spec.md §7 assigns it for
// hold/order/webhook operations. NotFound is the one kind whose status
// depends on which endpoint raised it (404 for GET /products/{id}, 400
// everywhere else); handlers that need the 404 behavior call
// ProductNotFoundStatus instead of HTTPStatus.
var httpStatus = map[Kind]int{
	KindValidationFailed:  http.StatusUnprocessableEntity,
	KindNotFound:          http.StatusBadRequest,
	KindInsufficientStock: http.StatusBadRequest,
	KindHoldAlreadyUsed:   http.StatusBadRequest,
	KindHoldReleased:      http.StatusBadRequest,
	KindHoldExpired:       http.StatusBadRequest,
	KindInvalidTransition: http.StatusBadRequest,
	KindHighContention:    http.StatusBadRequest,
	KindAlreadyProcessed:  http.StatusOK,
	KindPendingOrder:      http.StatusOK,
	KindMissingField:      http.StatusUnprocessableEntity,
	KindInvalidPayment:    http.StatusBadRequest,
	KindInternal:          http.StatusInternalServerError,
}

// Error is the sentinel error type every domain service returns for
// expected failure modes. Handlers type-assert via As to recover the
// Kind and map it to a response; anything that isn't an *Error is
// treated as KindInternal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// HTTPStatus resolves the status code for a Kind, defaulting to 500
// for anything unmapped (there shouldn't be any).
func HTTPStatus(kind Kind) int {
	if status, ok := httpStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ProductNotFoundStatus resolves the status for a Kind the way
// GET /products/{id} must: a 404 for NotFound instead of the 400 that
// every other endpoint uses for it (spec.md §7).
func ProductNotFoundStatus(kind Kind) int {
	if kind == KindNotFound {
		return http.StatusNotFound
	}
	return HTTPStatus(kind)
}

// As pulls an *Error out of err, surfacing KindInternal for anything
// else so callers always have a Kind to switch on.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}
