package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStringInvalid(t *testing.T) {
	_, err := FromString("not-a-number")
	require.Error(t, err)
}

func TestAddAndMul(t *testing.T) {
	price, err := FromString("19.99")
	require.NoError(t, err)

	total := price.Mul(3)
	assert.Equal(t, "59.97", total.StringFixed(2))

	sum := total.Add(Zero())
	assert.True(t, sum.Equal(total.Decimal))
}

func TestIsNegative(t *testing.T) {
	pos, _ := FromString("0.01")
	neg, _ := FromString("-0.01")
	assert.False(t, pos.IsNegative())
	assert.True(t, neg.IsNegative())
}

func TestMarshalJSONAlwaysTwoDigits(t *testing.T) {
	m, err := FromString("5")
	require.NoError(t, err)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"5.00"`, string(b))
}

func TestUnmarshalJSONRoundTrip(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"49.90"`), &m))
	assert.Equal(t, "49.90", m.StringFixed(2))
}

func TestUnmarshalJSONInvalid(t *testing.T) {
	var m Money
	err := json.Unmarshal([]byte(`"abc"`), &m)
	assert.Error(t, err)
}
