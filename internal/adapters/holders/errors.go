package holders

import "errors"

// Sentinel kinds for holder list errors.
var (
	ErrRead   = errors.New("read holder list failed")
	ErrDecode = errors.New("decode holder list failed")
	ErrWrite  = errors.New("write holder list failed")
)
