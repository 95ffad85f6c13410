package pricing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/types"
)

// serviceFeeRate is the platform fee applied to the base rental price.
var serviceFeeRate = decimal.New(15, -2)

// QuoteInput carries everything the engine needs. All selections come from
// server state, never from the client.
type QuoteInput struct {
	Vehicle *models.Vehicle
	Days    int

	InsuranceTier *enums.InsuranceTier
	DeliveryType  *enums.DeliveryType
	AddOnIDs      []string

	CreditCents        int64
	BonusCents         int64
	PromoCents         int64
	DepositWalletCents int64
}

// DaysBetween returns the billable day count for a rental window, rounding
// partial days up. The window must be strictly positive.
func DaysBetween(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "end date must be after start date")
	}
	hours := end.Sub(start).Hours()
	days := int(math.Ceil(hours / 24))
	if days < 1 {
		days = 1
	}
	return days, nil
}

// Quote computes the deterministic itemized breakdown for the input. It is a
// pure function: same input, same cents, every time.
func Quote(in QuoteInput) (*types.PriceBreakdown, error) {
	if in.Vehicle == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle is required")
	}
	if in.Days < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "day count must be at least 1")
	}
	if in.CreditCents < 0 || in.BonusCents < 0 || in.PromoCents < 0 || in.DepositWalletCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount amounts cannot be negative")
	}

	vehicle := in.Vehicle
	days := int64(in.Days)
	bracket := BracketFor(vehicle.EstimatedValueCents)

	base := basePriceCents(vehicle, days)
	serviceFee := roundCents(decimal.NewFromInt(base).Mul(serviceFeeRate))

	var insurance int64
	if in.InsuranceTier != nil {
		insurance = DailyPremiumCents(*in.InsuranceTier, bracket) * days
	}

	delivery, err := deliveryFeeCents(vehicle, in.DeliveryType)
	if err != nil {
		return nil, err
	}

	addOnLines, addOnsTotal, err := addOnCents(in.AddOnIDs, days)
	if err != nil {
		return nil, err
	}

	taxable := base + serviceFee + insurance + delivery + addOnsTotal
	taxRate := decimal.New(TaxBasisPoints(vehicle.City), -4)
	tax := roundCents(decimal.NewFromInt(taxable).Mul(taxRate))
	rentalTotal := taxable + tax

	deposit := vehicle.DepositCents
	if in.InsuranceTier != nil && *in.InsuranceTier == enums.InsuranceTierStateMinimum {
		if floor := DepositFloorCents(bracket); floor > deposit {
			deposit = floor
		}
	}

	// Rental discounts never touch the deposit, and wallet funds never touch
	// the rental total.
	rentalDiscount := in.CreditCents + in.BonusCents + in.PromoCents
	if rentalDiscount > rentalTotal {
		rentalDiscount = rentalTotal
	}
	adjustedRental := rentalTotal - rentalDiscount

	walletApplied := in.DepositWalletCents
	if walletApplied > deposit {
		walletApplied = deposit
	}
	adjustedDeposit := deposit - walletApplied

	charge := adjustedRental + adjustedDeposit
	if charge < 100 {
		charge = 100
	}

	return &types.PriceBreakdown{
		Days:                      in.Days,
		BaseCents:                 base,
		ServiceFeeCents:           serviceFee,
		InsuranceCents:            insurance,
		DeliveryFeeCents:          delivery,
		AddOns:                    addOnLines,
		AddOnsCents:               addOnsTotal,
		TaxableCents:              taxable,
		TaxCents:                  tax,
		RentalTotalCents:          rentalTotal,
		RentalDiscountCents:       rentalDiscount,
		AdjustedRentalCents:       adjustedRental,
		DepositCents:              deposit,
		DepositWalletAppliedCents: walletApplied,
		AdjustedDepositCents:      adjustedDeposit,
		ChargeCents:               charge,
	}, nil
}

// basePriceCents applies the best available rate. Weekly and monthly rates
// only replace the daily total when they come out cheaper.
func basePriceCents(vehicle *models.Vehicle, days int64) int64 {
	base := vehicle.DailyRateCents * days
	if vehicle.WeeklyRateCents != nil && days >= 7 {
		weeks := (days + 6) / 7
		if weekly := *vehicle.WeeklyRateCents * weeks; weekly < base {
			base = weekly
		}
	}
	if vehicle.MonthlyRateCents != nil && days >= 28 {
		months := (days + 27) / 28
		if monthly := *vehicle.MonthlyRateCents * months; monthly < base {
			base = monthly
		}
	}
	return base
}

func deliveryFeeCents(vehicle *models.Vehicle, deliveryType *enums.DeliveryType) (int64, error) {
	if deliveryType == nil {
		return 0, nil
	}
	switch *deliveryType {
	case enums.DeliveryTypeHostPickup:
		return 0, nil
	case enums.DeliveryTypeAirport:
		if !vehicle.AirportDelivery {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "airport delivery is not available for this vehicle")
		}
		return vehicle.AirportFeeCents, nil
	case enums.DeliveryTypeHome:
		if !vehicle.HomeDelivery {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "home delivery is not available for this vehicle")
		}
		return vehicle.HomeFeeCents, nil
	case enums.DeliveryTypeHotel:
		if !vehicle.HotelDelivery {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "hotel delivery is not available for this vehicle")
		}
		return vehicle.HotelFeeCents, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery type")
	}
}

func addOnCents(ids []string, days int64) ([]types.PriceLine, int64, error) {
	if len(ids) == 0 {
		return nil, 0, nil
	}
	lines := make([]types.PriceLine, 0, len(ids))
	var total int64
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "duplicate add-on selection")
		}
		seen[id] = true
		addOn, ok := FindAddOn(id)
		if !ok {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown add-on "+id)
		}
		amount := addOn.FlatCents
		if addOn.PerDayCents > 0 {
			amount = addOn.PerDayCents * days
		}
		lines = append(lines, types.PriceLine{Label: addOn.Label, AmountCents: amount})
		total += amount
	}
	return lines, total, nil
}

// roundCents rounds a decimal cent amount half away from zero.
func roundCents(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
