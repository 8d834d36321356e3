package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrLimitUndetermined      = errors.New("contribution limit undetermined")
	ErrLimitExceeded          = errors.New("contribution limit exceeded")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDuplicateOperation     = errors.New("duplicate operation")
)
