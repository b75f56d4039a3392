package lifecycle

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("order item not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyAccepted   = errors.New("order already accepted")
	ErrTableOutOfRange   = errors.New("table number out of range")
	ErrNoItems           = errors.New("order must have at least one item")
	ErrBadQuantity       = errors.New("item quantity must be positive")
)
