package checkpoint

import "errors"

// Sentinel kinds for checkpoint errors.
var (
	ErrCommit = errors.New("checkpoint commit failed")
	ErrLoad   = errors.New("checkpoint load failed")
)
