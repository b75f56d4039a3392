package billing

import "errors"

var (
	ErrBillNotFound            = errors.New("bill not found")
	ErrEmptySelection          = errors.New("no orders selected")
	ErrTableMismatch           = errors.New("order belongs to another table")
	ErrAlreadyPaid             = errors.New("bill already paid")
	ErrAlreadyBilled           = errors.New("order already covered by a paid bill")
	ErrNotBillable             = errors.New("order is not in a billable status")
	ErrDiscountExceedsSubtotal = errors.New("discount exceeds subtotal")
	ErrBadDiscount             = errors.New("discount must not be negative")
)
