package values

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		wantErr bool
	}{
		{
			name:   "whole number",
			amount: decimal.NewFromInt(1000),
		},
		{
			name:   "zero",
			amount: decimal.Zero,
		},
		{
			name:    "negative",
			amount:  decimal.NewFromInt(-1),
			wantErr: true,
		},
		{
			name:    "fractional",
			amount:  decimal.RequireFromString("1.5"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAmount(tt.amount)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.True(t, a.Decimal().Equal(tt.amount))
		})
	}
}

func TestParseAmount(t *testing.T) {
	maxUint256 := "115792089237316195423570985008687907853269984665640564039457584007913129639935"

	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "wei", input: "1000000000000000000", expected: "1000000000000000000"},
		{name: "max uint256", input: maxUint256, expected: maxUint256},
		{name: "surrounding spaces", input: " 42 ", expected: "42"},
		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-5", wantErr: true},
		{name: "decimal point", input: "1.5", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, a.String())
		})
	}
}

func TestParseUnits(t *testing.T) {
	a, err := ParseUnits("0.75", 18)
	require.NoError(t, err)
	assert.Equal(t, "750000000000000000", a.String())
	assert.Equal(t, "0.75", a.Format(18))

	_, err = ParseUnits("0.0000000000000000001", 18)
	assert.Error(t, err, "more precision than the currency allows")
}

func TestAmountArithmetic(t *testing.T) {
	a := AmountFromUint64(100)
	b := AmountFromUint64(30)

	assert.Equal(t, "130", a.Add(b).String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "70", diff.String())

	_, err = b.Sub(a)
	assert.Error(t, err)

	assert.Equal(t, "3000", a.MulUint64(30).String())

	q, err := a.QuoUint64(30)
	require.NoError(t, err)
	assert.Equal(t, "3", q.String(), "division rounds toward zero")

	_, err = a.QuoUint64(0)
	assert.Error(t, err)

	assert.True(t, b.LessThan(a))
	assert.True(t, a.GreaterThan(b))
	assert.Equal(t, 0, a.Cmp(AmountFromUint64(100)))
	assert.True(t, ZeroAmount.IsZero())
}

func TestAmountJSON(t *testing.T) {
	a := MustParseAmount("750000000000000000")

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"750000000000000000"`, string(data))

	var fromString Amount
	require.NoError(t, json.Unmarshal([]byte(`"42"`), &fromString))
	assert.Equal(t, "42", fromString.String())

	var bad Amount
	assert.Error(t, json.Unmarshal([]byte(`"-1"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad), "numbers are rejected")
	assert.Error(t, json.Unmarshal([]byte(`null`), &bad))
	assert.True(t, bad.IsZero(), "failed decodes leave the target untouched")
}

func TestMaxAmount(t *testing.T) {
	assert.Equal(t,
		"115792089237316195423570985008687907853269984665640564039457584007913129639935",
		MaxAmount.String())
	assert.Len(t, MaxAmount.String(), 78)
	assert.True(t, MaxAmount.Add(AmountFromUint64(1)).GreaterThan(MaxAmount))
}

func TestAmountScan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan([]byte("12345")))
	assert.Equal(t, "12345", a.String())

	require.NoError(t, a.Scan("500"))
	assert.Equal(t, "500", a.String())

	require.NoError(t, a.Scan(int64(7)))
	assert.Equal(t, "7", a.String())

	assert.Error(t, a.Scan(3.14))

	v, err := AmountFromUint64(9).Value()
	require.NoError(t, err)
	assert.Equal(t, "9", v)
}
