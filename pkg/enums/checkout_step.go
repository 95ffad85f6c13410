package enums

import "fmt"

// CheckoutStep tracks which wizard screen the client last reported. It is
// advisory only; the server never enforces an ordering between steps.
type CheckoutStep string

const (
	CheckoutStepInsurance CheckoutStep = "insurance"
	CheckoutStepDelivery  CheckoutStep = "delivery"
	CheckoutStepAddons    CheckoutStep = "addons"
	CheckoutStepReview    CheckoutStep = "review"
	CheckoutStepPayment   CheckoutStep = "payment"
)

var validCheckoutSteps = []CheckoutStep{
	CheckoutStepInsurance,
	CheckoutStepDelivery,
	CheckoutStepAddons,
	CheckoutStepReview,
	CheckoutStepPayment,
}

// String implements fmt.Stringer.
func (c CheckoutStep) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutStep.
func (c CheckoutStep) IsValid() bool {
	for _, candidate := range validCheckoutSteps {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutStep converts raw input into a CheckoutStep.
func ParseCheckoutStep(value string) (CheckoutStep, error) {
	for _, candidate := range validCheckoutSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout step %q", value)
}
