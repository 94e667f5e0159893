package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidationFailed:  http.StatusUnprocessableEntity,
		KindMissingField:      http.StatusUnprocessableEntity,
		KindNotFound:          http.StatusBadRequest,
		KindInsufficientStock: http.StatusBadRequest,
		KindHoldAlreadyUsed:   http.StatusBadRequest,
		KindHoldReleased:      http.StatusBadRequest,
		KindHoldExpired:       http.StatusBadRequest,
		KindInvalidTransition: http.StatusBadRequest,
		KindInvalidPayment:    http.StatusBadRequest,
		KindHighContention:    http.StatusBadRequest,
		KindAlreadyProcessed:  http.StatusOK,
		KindPendingOrder:      http.StatusOK,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), "kind %s", kind)
	}
}

func TestHTTPStatusUnmappedKindDefaultsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Kind("SOMETHING_NEW")))
}

func TestProductNotFoundStatusOverridesNotFoundTo404(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ProductNotFoundStatus(KindNotFound))
}

func TestProductNotFoundStatusLeavesOtherKindsAlone(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ProductNotFoundStatus(KindInsufficientStock))
	assert.Equal(t, http.StatusInternalServerError, ProductNotFoundStatus(KindInternal))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindInternal, "load order", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "load order")
}

func TestAsRecoversAppError(t *testing.T) {
	original := New(KindHoldExpired, "hold expired")
	wrapped := errors.Join(original)

	got := As(wrapped)
	assert.Equal(t, KindHoldExpired, got.Kind)
}

func TestAsDefaultsToInternalForPlainError(t *testing.T) {
	got := As(errors.New("boom"))
	assert.Equal(t, KindInternal, got.Kind)
}
