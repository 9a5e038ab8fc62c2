package checkout

type Step string

const (
	StepShipping     Step = "shipping"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
	// StepVerifying is entered only when the payment gateway sends the buyer back.
	StepVerifying Step = "verifying"
)

// allowsEmptyCart: the cart is cleared once an order is paid, and the buyer must not be
// bounced off the page that tells them so.
func (s Step) allowsEmptyCart() bool {
	return s == StepConfirmation || s == StepVerifying
}

func (s Step) String() string {
	return string(s)
}
