package cart

import "errors"

var (
	ErrLoginRequired   = errors.New("please log in to use coupons")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrCouponRequired  = errors.New("coupon code is required")
	ErrPartialMerge    = errors.New("some guest cart items could not be merged")
)
