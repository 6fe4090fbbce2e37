// Package amount converts textual balances into signed 128-bit-safe integers and
// computes balance deltas without leaving integer arithmetic.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmpty    = errors.New("amount: empty value")
	ErrInvalid  = errors.New("amount: not an integer")
	ErrOverflow = errors.New("amount: outside int128 range")
)

// int128 decimal width is 39 digits.
const maxDigits = 39

var (
	MaxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	MinInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

var separators = strings.NewReplacer(",", "", "_", "", " ", "")

// Parse reads a base-10 integer. Thousands separators are ignored, and decimal or
// scientific forms are accepted when they denote a whole number ("1.5e3", "20.00").
func Parse(s string) (*big.Int, error) {
	cleaned := separators.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return nil, ErrEmpty
	}

	value, ok := new(big.Int).SetString(cleaned, 10)
	if !ok {
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		if d.IsZero() {
			return new(big.Int), nil
		}
		if int64(d.NumDigits())+int64(d.Exponent()) > maxDigits {
			return nil, fmt.Errorf("%w: %q", ErrOverflow, s)
		}
		// A non-zero coefficient of n digits cannot cancel more than n-1 trailing zeros.
		if -int64(d.Exponent()) >= int64(d.NumDigits()) {
			return nil, fmt.Errorf("%w: %q has a fractional part", ErrInvalid, s)
		}
		if !d.IsInteger() {
			return nil, fmt.Errorf("%w: %q has a fractional part", ErrInvalid, s)
		}
		value = d.BigInt()
	}

	if !InRange(value) {
		return nil, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return value, nil
}

// ParseOrZero is the lenient form of Parse. It returns zero and false when the
// input cannot be parsed, so callers can tell a fallback from a real zero.
func ParseOrZero(s string) (*big.Int, bool) {
	value, err := Parse(s)
	if err != nil {
		return new(big.Int), false
	}
	return value, true
}

// InRange reports whether v fits in a signed 128-bit integer.
func InRange(v *big.Int) bool {
	if v == nil {
		return true
	}
	return v.Cmp(MaxInt128) <= 0 && v.Cmp(MinInt128) >= 0
}

// Delta returns post - pre. Nil operands count as zero.
func Delta(pre, post *big.Int) *big.Int {
	out := new(big.Int)
	if post != nil {
		out.Set(post)
	}
	if pre != nil {
		out.Sub(out, pre)
	}
	return out
}

// Neg returns -v.
func Neg(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Neg(v)
}

// String renders v in base 10, "0" for nil.
func String(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
