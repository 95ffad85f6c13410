package enums

import "fmt"

// InsuranceTier identifies one of the four fixed protection plans.
type InsuranceTier string

const (
	InsuranceTierStateMinimum InsuranceTier = "state_minimum"
	InsuranceTierBasic        InsuranceTier = "basic"
	InsuranceTierStandard     InsuranceTier = "standard"
	InsuranceTierPremium      InsuranceTier = "premium"
)

var validInsuranceTiers = []InsuranceTier{
	InsuranceTierStateMinimum,
	InsuranceTierBasic,
	InsuranceTierStandard,
	InsuranceTierPremium,
}

// String implements fmt.Stringer.
func (i InsuranceTier) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InsuranceTier.
func (i InsuranceTier) IsValid() bool {
	for _, candidate := range validInsuranceTiers {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInsuranceTier converts raw input into an InsuranceTier.
func ParseInsuranceTier(value string) (InsuranceTier, error) {
	for _, candidate := range validInsuranceTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid insurance tier %q", value)
}
