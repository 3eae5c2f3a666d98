package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrInvalidAddress = errors.New("invalid holder address")
	ErrInvalidRange   = errors.New("invalid block range")
	ErrEndpoint       = errors.New("ledger endpoint required")
	ErrContractCall   = errors.New("contract call failed")
)
