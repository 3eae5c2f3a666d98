package allocation

import "errors"

// Sentinel kinds for allocation errors.
var (
	ErrInvalidPercent = errors.New("invalid airdrop percent")
)
