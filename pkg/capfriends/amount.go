package capfriends

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Precision used when comparing quantities to zero.
var (
	unitsEpsilon    = decimal.New(1, -4)
	currencyEpsilon = decimal.New(1, -2)
	hundred         = decimal.NewFromInt(100)
)

// Amount wraps decimal.Decimal for units, prices and monetary values.
// JSON marshaling outputs a number, while internal arithmetic stays exact.
type Amount struct {
	decimal.Decimal
}

// MarshalJSON outputs as a JSON number (not a string).
func (a Amount) MarshalJSON() ([]byte, error) {
	f, _ := a.Round(4).Float64()
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

// MarshalText lets Amount appear in TOML and other text encodings.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalText parses a decimal literal.
func (a *Amount) UnmarshalText(text []byte) error {
	d, err := decimal.NewFromString(string(text))
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

// Scan implements sql.Scanner. Ledger columns are stored as TEXT so values
// round-trip without float drift; REAL and INTEGER are accepted as well.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		a.Decimal = decimal.Zero
		return nil
	case float64:
		a.Decimal = decimal.NewFromFloat(v)
		return nil
	case int64:
		a.Decimal = decimal.NewFromInt(v)
		return nil
	case string:
		return a.parse(v)
	case []byte:
		return a.parse(string(v))
	}
	return fmt.Errorf("amount: unsupported scan type %T", src)
}

func (a *Amount) parse(s string) error {
	if s == "" {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

// Value implements driver.Valuer for database writes.
func (a Amount) Value() (driver.Value, error) {
	return a.Decimal.String(), nil
}

// NewAmount creates an Amount from a float64.
func NewAmount(f float64) Amount {
	return Amount{decimal.NewFromFloat(f)}
}

// NewAmountFromInt creates an Amount from an int64.
func NewAmountFromInt(i int64) Amount {
	return Amount{decimal.NewFromInt(i)}
}

// ParseAmount parses a decimal string such as "142.35".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{d}, nil
}

// Float returns the amount as float64, for display code only.
func (a Amount) Float() float64 {
	f, _ := a.Float64()
	return f
}

func amountOf(d decimal.Decimal) Amount {
	return Amount{d}
}

func amountPtr(v Amount) *Amount {
	return &v
}

// isZeroUnits reports whether d is zero within unit precision.
func isZeroUnits(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(unitsEpsilon)
}

// exceedsUnits reports whether requested is above held by more than the epsilon.
func exceedsUnits(requested, held decimal.Decimal) bool {
	return requested.Sub(held).GreaterThan(unitsEpsilon)
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func pct(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}
