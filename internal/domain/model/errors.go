package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrMissingAddress = errors.New("missing address")
	ErrMissingAmount  = errors.New("missing amount")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidRecord  = errors.New("invalid holder record")
	ErrBadDirection   = errors.New("unknown transfer direction")
	ErrBadTimelineKey = errors.New("invalid timeline key")
)
