// Package allocation turns a minimum balance into an airdrop amount.
package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Default allocation configuration constants.
const (
	defaultPercent  = "1.5"
	defaultDecimals = 18
	maxDecimals     = 36
)

// Option applies a configuration option to the Allocator.
type Option func(*Allocator)

// WithPercent sets the share of the minimum balance that is airdropped.
// Negative values are ignored.
func WithPercent(percent decimal.Decimal) Option {
	return func(a *Allocator) {
		if !percent.IsNegative() {
			a.percent = percent
		}
	}
}

// WithDecimals sets the token's smallest-unit precision.
func WithDecimals(decimals int32) Option {
	return func(a *Allocator) {
		if decimals >= 0 && decimals <= maxDecimals {
			a.decimals = decimals
		}
	}
}

// Allocator applies the percent rule.
type Allocator struct {
	percent  decimal.Decimal
	decimals int32
}

// New creates an Allocator with a 1.5% rule on an 18-decimal token.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		percent:  decimal.RequireFromString(defaultPercent),
		decimals: defaultDecimals,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Percent returns the configured percentage.
func (a *Allocator) Percent() decimal.Decimal { return a.percent }

// Decimals returns the configured token precision.
func (a *Allocator) Decimals() int32 { return a.decimals }

// Allocate returns minBalance * percent / 100. The division is an exact
// decimal shift; the result is truncated toward zero to the token precision.
func (a *Allocator) Allocate(minBalance decimal.Decimal) decimal.Decimal {
	return minBalance.Mul(a.percent).Shift(-2).Truncate(a.decimals)
}

// Eligible reports whether a holder enters the distribution arrays.
func Eligible(minBalance decimal.Decimal) bool {
	return minBalance.IsPositive()
}

// ToSmallestUnits renders amount as an integer count of the token's
// smallest unit, e.g. 1.05 with 18 decimals -> "1050000000000000000".
func (a *Allocator) ToSmallestUnits(amount decimal.Decimal) string {
	return amount.Shift(a.decimals).Truncate(0).String()
}

// ParsePercent parses a configured percentage such as "1.5".
func ParsePercent(s string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q: %v", ErrInvalidPercent, s, err)
	}
	if p.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is negative", ErrInvalidPercent, s)
	}
	return p, nil
}
