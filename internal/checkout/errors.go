package checkout

import "errors"

var (
	ErrEmptyCart           = errors.New("your cart is empty")
	ErrNoShippingMethod    = errors.New("please select a shipping method")
	ErrNoPaymentMethod     = errors.New("please select a payment method")
	ErrAddressIncomplete   = errors.New("please complete your shipping address")
	ErrUnknownShipping     = errors.New("shipping method is not available")
	ErrUnknownPayment      = errors.New("payment method is not available")
	ErrNoReference         = errors.New("payment reference is missing")
	ErrOrderInProgress     = errors.New("order is already being placed")
	IllegalTransitionError = errors.New("illegal transition of checkout step")
)
