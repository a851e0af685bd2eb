package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative integer quantity of the smallest currency unit
// (wei, satoshi, cents). Arithmetic is arbitrary precision; values stored or
// accepted as auction terms must not exceed MaxAmount.
type Amount struct {
	value decimal.Decimal
}

var (
	// ZeroAmount is the zero value of Amount.
	ZeroAmount = Amount{value: decimal.Zero}

	// MaxAmount is 2^256-1, the largest on-chain quantity. It fits the
	// NUMERIC(78,0) amount columns.
	MaxAmount = Amount{value: decimal.NewFromBigInt(
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)), 0)}
)

// NewAmount creates an Amount from a decimal, rejecting negative and
// fractional values.
func NewAmount(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("amount cannot be negative: %s", d.String())
	}
	if !d.IsInteger() {
		return Amount{}, fmt.Errorf("amount must be a whole number of the smallest unit: %s", d.String())
	}
	return Amount{value: d.Truncate(0)}, nil
}

// AmountFromUint64 creates an Amount from an unsigned integer.
func AmountFromUint64(u uint64) Amount {
	return Amount{value: decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)}
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("amount cannot be empty")
	}
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount: %q", s)
	}
	return NewAmount(decimal.NewFromBigInt(bi, 0))
}

// ParseUnits parses a human readable amount such as "0.75" given the number
// of decimals of the currency (18 for ether).
func ParseUnits(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount: %w", err)
	}
	return NewAmount(d.Shift(decimals))
}

// MustParseAmount parses an Amount and panics on error (for constants/tests)
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// MustParseUnits parses a unit string and panics on error (for constants/tests)
func MustParseUnits(s string, decimals int32) Amount {
	a, err := ParseUnits(s, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// Decimal returns the underlying decimal.
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// BigInt returns the amount as a big integer.
func (a Amount) BigInt() *big.Int {
	return a.value.BigInt()
}

func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

func (a Amount) Cmp(other Amount) int {
	return a.value.Cmp(other.value)
}

func (a Amount) Equal(other Amount) bool {
	return a.value.Equal(other.value)
}

func (a Amount) LessThan(other Amount) bool {
	return a.value.LessThan(other.value)
}

func (a Amount) GreaterThan(other Amount) bool {
	return a.value.GreaterThan(other.value)
}

func (a Amount) Add(other Amount) Amount {
	return Amount{value: a.value.Add(other.value)}
}

// Sub subtracts other, failing when the result would be negative.
func (a Amount) Sub(other Amount) (Amount, error) {
	if a.value.LessThan(other.value) {
		return Amount{}, fmt.Errorf("amount underflow: %s - %s", a.String(), other.String())
	}
	return Amount{value: a.value.Sub(other.value)}, nil
}

// MulUint64 multiplies by an unsigned integer.
func (a Amount) MulUint64(n uint64) Amount {
	return Amount{value: a.value.Mul(AmountFromUint64(n).value)}
}

// QuoUint64 divides by an unsigned integer, rounding toward zero.
func (a Amount) QuoUint64(n uint64) (Amount, error) {
	if n == 0 {
		return Amount{}, fmt.Errorf("division by zero")
	}
	q, _ := a.value.QuoRem(AmountFromUint64(n).value, 0)
	return Amount{value: q}, nil
}

// String returns the integer representation in the smallest unit.
func (a Amount) String() string {
	return a.value.String()
}

// Format renders the amount in whole units with the given number of decimals,
// trimming trailing zeros ("0.75" for 750000000000000000 wei at 18 decimals).
func (a Amount) Format(decimals int32) string {
	return a.value.Shift(-decimals).String()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a JSON string only. Numbers are rejected since
// decoders commonly round them to float64.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount must be a JSON string: %w", err)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns read as text.
func (a *Amount) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = ZeroAmount
		return nil
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount cannot be negative: %d", v)
		}
		*a = AmountFromUint64(uint64(v))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", value)
	}
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) scanString(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}
	parsed, err := NewAmount(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
