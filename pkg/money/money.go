// Package money converts between the decimal major-unit amounts used on the
// wire and the int64 minor-unit amounts the ledger stores. Balances never
// touch floating point.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPrecision is returned for amounts finer than one minor unit, e.g. 0.005.
var ErrPrecision = errors.New("amount has more than two decimal places")

// ErrRange is returned for amounts that do not fit in an int64 of minor units.
var ErrRange = errors.New("amount out of range")

// ToMinorUnits converts a decimal major-unit amount to minor units exactly.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, ErrPrecision
	}
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return 0, ErrRange
	}
	return bi.Int64(), nil
}

// FromMinorUnits converts minor units back to a decimal major-unit amount.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Shift(-2)
}
