package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	holdmodel "checkout-core/internal/domains/hold/model"
	"checkout-core/internal/shared/apperror"
)

func TestValidateHoldForOrderActiveHoldPasses(t *testing.T) {
	h := &holdmodel.Hold{ExpiresAt: time.Now().Add(time.Minute)}
	assert.NoError(t, validateHoldForOrder(h))
}

func TestValidateHoldForOrderAlreadyUsed(t *testing.T) {
	h := &holdmodel.Hold{Used: true, ExpiresAt: time.Now().Add(time.Minute)}
	err := validateHoldForOrder(h)
	assert.Equal(t, apperror.KindHoldAlreadyUsed, apperror.As(err).Kind)
}

func TestValidateHoldForOrderReleased(t *testing.T) {
	h := &holdmodel.Hold{Released: true, ExpiresAt: time.Now().Add(time.Minute)}
	err := validateHoldForOrder(h)
	assert.Equal(t, apperror.KindHoldReleased, apperror.As(err).Kind)
}

func TestValidateHoldForOrderExpired(t *testing.T) {
	h := &holdmodel.Hold{ExpiresAt: time.Now().Add(-time.Minute)}
	err := validateHoldForOrder(h)
	assert.Equal(t, apperror.KindHoldExpired, apperror.As(err).Kind)
}

func TestValidateHoldForOrderUsedTakesPrecedenceOverExpired(t *testing.T) {
	h := &holdmodel.Hold{Used: true, ExpiresAt: time.Now().Add(-time.Minute)}
	err := validateHoldForOrder(h)
	assert.Equal(t, apperror.KindHoldAlreadyUsed, apperror.As(err).Kind)
}
