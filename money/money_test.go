package money_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice-engine/money"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// PARSE / COERCION
// =============================================================================

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12.50", "12.5"},
		{"  7 ", "7"},
		{"-8", "-8"},
		{"12,5", "12.5"},
		{"", "0"},
		{"abc", "0"},
		{"NaN", "0"},
		{"1.234,56", "0"},
		{"12,5O", "0"},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			assert.True(t, dec(c.want).Equal(money.Parse(c.in)), "Parse(%q) = %s", c.in, money.Parse(c.in))
		})
	}
}

func TestFromFloat_NonFiniteIsZero(t *testing.T) {
	assert.True(t, money.FromFloat(math.NaN()).IsZero())
	assert.True(t, money.FromFloat(math.Inf(1)).IsZero())
	assert.True(t, money.FromFloat(math.Inf(-1)).IsZero())
	assert.True(t, dec("2.5").Equal(money.FromFloat(2.5)))
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestRoundAndClamp(t *testing.T) {
	assert.Equal(t, "10.13", money.Round(dec("10.125")).String())
	assert.Equal(t, "-10.13", money.Round(dec("-10.125")).String())
	assert.True(t, money.ClampZero(dec("-0.01")).IsZero())
	assert.True(t, dec("3").Equal(money.ClampZero(dec("3"))))
}

func TestSumAndPercent(t *testing.T) {
	assert.True(t, money.Sum().IsZero())
	assert.True(t, dec("72").Equal(money.Sum(dec("50"), dec("30"), dec("-8"))))
	assert.True(t, dec("20").Equal(money.Percent(dec("80"), dec("25"))))
	assert.True(t, money.ApproxEqual(dec("1.0000001"), dec("1"), dec("0.000001")))
	assert.False(t, money.ApproxEqual(dec("1.00001"), dec("1"), dec("0.000001")))
}

// =============================================================================
// LENIENT JSON
// =============================================================================

func TestLenient_Unmarshal(t *testing.T) {
	var v struct {
		A money.Lenient `json:"a"`
		B money.Lenient `json:"b"`
		C money.Lenient `json:"c"`
		D money.Lenient `json:"d"`
		E money.Lenient `json:"e"`
	}
	err := json.Unmarshal([]byte(`{"a": 12.5, "b": "7,25", "c": "oops", "d": null, "e": true}`), &v)
	require.NoError(t, err)

	assert.True(t, dec("12.5").Equal(v.A.Decimal))
	assert.True(t, dec("7.25").Equal(v.B.Decimal))
	assert.True(t, v.C.IsZero())
	assert.True(t, v.D.IsZero())
	assert.True(t, v.E.IsZero())
}

func TestLenient_Marshal(t *testing.T) {
	out, err := json.Marshal(money.L(dec("4.5")))
	require.NoError(t, err)
	assert.Equal(t, `"4.5"`, string(out))
}
