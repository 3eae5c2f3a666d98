package service

import "errors"

// Sentinel kinds for run errors.
var (
	ErrMalformedRecord = errors.New("malformed holder record")
)
