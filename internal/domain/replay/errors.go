package replay

import "errors"

// Sentinel kinds for replay errors.
var (
	ErrUnknownPolicy = errors.New("unknown collision policy")
)
