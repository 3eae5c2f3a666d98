// Package model contains domain models passed between layers.
package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Contributor is one entry of the holder list: an address and the token
// amount it held at the reference block.
type Contributor struct {
	Address       string
	InitialAmount decimal.Decimal
	// HasAmount is false when the source record carried no amount at all.
	HasAmount bool
	// Malformed holds the reason the source record could not be parsed.
	Malformed error
}

// NewContributor returns a well-formed Contributor.
func NewContributor(address string, amount decimal.Decimal) Contributor {
	return Contributor{Address: address, InitialAmount: amount, HasAmount: true}
}

// Validate reports whether the record carries the fields a run needs.
// A missing amount is never treated as zero.
func (c Contributor) Validate() error {
	if c.Malformed != nil {
		return c.Malformed
	}
	if strings.TrimSpace(c.Address) == "" {
		return ErrMissingAddress
	}
	if !c.HasAmount {
		return ErrMissingAmount
	}
	return nil
}
