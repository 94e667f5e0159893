package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsActiveTrueForFreshHold(t *testing.T) {
	h := &Hold{ExpiresAt: time.Now().Add(5 * time.Minute)}
	assert.True(t, h.IsActive(time.Now()))
}

func TestIsActiveFalseWhenUsed(t *testing.T) {
	h := &Hold{Used: true, ExpiresAt: time.Now().Add(5 * time.Minute)}
	assert.False(t, h.IsActive(time.Now()))
}

func TestIsActiveFalseWhenReleased(t *testing.T) {
	h := &Hold{Released: true, ExpiresAt: time.Now().Add(5 * time.Minute)}
	assert.False(t, h.IsActive(time.Now()))
}

func TestIsActiveFalseWhenExpired(t *testing.T) {
	h := &Hold{ExpiresAt: time.Now().Add(-time.Second)}
	assert.False(t, h.IsActive(time.Now()))
}

func TestIsActiveFalseExactlyAtExpiry(t *testing.T) {
	now := time.Now()
	h := &Hold{ExpiresAt: now}
	assert.False(t, h.IsActive(now))
}
