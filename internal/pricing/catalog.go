package pricing

import (
	"strings"

	"github.com/calebreyes/driveshare-backend/pkg/db/models"
	"github.com/calebreyes/driveshare-backend/pkg/enums"
)

// ValueBracket groups vehicles by estimated value for premium and deposit
// lookups.
type ValueBracket string

const (
	BracketEconomy  ValueBracket = "economy"
	BracketStandard ValueBracket = "standard"
	BracketPremium  ValueBracket = "premium"
	BracketExotic   ValueBracket = "exotic"
)

const (
	economyCeilingCents  = 20_000_00
	standardCeilingCents = 50_000_00
	premiumCeilingCents  = 100_000_00
)

// BracketFor classifies a vehicle by its estimated value.
func BracketFor(estimatedValueCents int64) ValueBracket {
	switch {
	case estimatedValueCents < economyCeilingCents:
		return BracketEconomy
	case estimatedValueCents < standardCeilingCents:
		return BracketStandard
	case estimatedValueCents < premiumCeilingCents:
		return BracketPremium
	default:
		return BracketExotic
	}
}

// dailyPremiumCents holds the per-day insurance premium for each tier and
// bracket. The state-minimum tier carries no premium by definition.
var dailyPremiumCents = map[enums.InsuranceTier]map[ValueBracket]int64{
	enums.InsuranceTierBasic: {
		BracketEconomy:  800,
		BracketStandard: 1000,
		BracketPremium:  1500,
		BracketExotic:   2500,
	},
	enums.InsuranceTierStandard: {
		BracketEconomy:  1500,
		BracketStandard: 1800,
		BracketPremium:  2500,
		BracketExotic:   4000,
	},
	enums.InsuranceTierPremium: {
		BracketEconomy:  2200,
		BracketStandard: 2700,
		BracketPremium:  3800,
		BracketExotic:   6000,
	},
}

// DailyPremiumCents returns the per-day premium for a tier on a vehicle of
// the given bracket. State minimum is always zero.
func DailyPremiumCents(tier enums.InsuranceTier, bracket ValueBracket) int64 {
	byBracket, ok := dailyPremiumCents[tier]
	if !ok {
		return 0
	}
	return byBracket[bracket]
}

// depositFloorCents is the minimum security deposit applied when the guest
// declines platform coverage (state-minimum tier). The policy deposit is
// raised to this floor, never lowered.
var depositFloorCents = map[ValueBracket]int64{
	BracketEconomy:  250_00,
	BracketStandard: 500_00,
	BracketPremium:  1_000_00,
	BracketExotic:   2_500_00,
}

// DepositFloorCents returns the bracket floor for uninsured rentals.
func DepositFloorCents(bracket ValueBracket) int64 {
	return depositFloorCents[bracket]
}

// InsuranceOption is one row of the tier catalog returned at session init.
type InsuranceOption struct {
	Tier              enums.InsuranceTier `json:"tier"`
	Label             string              `json:"label"`
	DailyPremiumCents int64               `json:"daily_premium_cents"`
	TotalCents        int64               `json:"total_cents"`
}

var insuranceLabels = map[enums.InsuranceTier]string{
	enums.InsuranceTierStateMinimum: "State Minimum",
	enums.InsuranceTierBasic:        "Basic",
	enums.InsuranceTierStandard:     "Standard",
	enums.InsuranceTierPremium:      "Premium",
}

// InsuranceCatalog builds the four fixed tiers priced for the vehicle and
// day count.
func InsuranceCatalog(vehicle *models.Vehicle, days int) []InsuranceOption {
	bracket := BracketFor(vehicle.EstimatedValueCents)
	tiers := []enums.InsuranceTier{
		enums.InsuranceTierStateMinimum,
		enums.InsuranceTierBasic,
		enums.InsuranceTierStandard,
		enums.InsuranceTierPremium,
	}
	options := make([]InsuranceOption, 0, len(tiers))
	for _, tier := range tiers {
		daily := DailyPremiumCents(tier, bracket)
		options = append(options, InsuranceOption{
			Tier:              tier,
			Label:             insuranceLabels[tier],
			DailyPremiumCents: daily,
			TotalCents:        daily * int64(days),
		})
	}
	return options
}

// DeliveryOption is one row of the delivery catalog, filtered to the
// vehicle's enabled modes.
type DeliveryOption struct {
	Type     enums.DeliveryType `json:"type"`
	Label    string             `json:"label"`
	FeeCents int64              `json:"fee_cents"`
}

// DeliveryCatalog lists host pickup plus every delivery mode the vehicle
// enables.
func DeliveryCatalog(vehicle *models.Vehicle) []DeliveryOption {
	options := []DeliveryOption{
		{Type: enums.DeliveryTypeHostPickup, Label: "Pick up from host", FeeCents: 0},
	}
	if vehicle.AirportDelivery {
		options = append(options, DeliveryOption{
			Type:     enums.DeliveryTypeAirport,
			Label:    "Airport delivery",
			FeeCents: vehicle.AirportFeeCents,
		})
	}
	if vehicle.HomeDelivery {
		options = append(options, DeliveryOption{
			Type:     enums.DeliveryTypeHome,
			Label:    "Home delivery",
			FeeCents: vehicle.HomeFeeCents,
		})
	}
	if vehicle.HotelDelivery {
		options = append(options, DeliveryOption{
			Type:     enums.DeliveryTypeHotel,
			Label:    "Hotel delivery",
			FeeCents: vehicle.HotelFeeCents,
		})
	}
	return options
}

// AddOn is an entry of the fixed global add-on catalog. Exactly one of
// FlatCents or PerDayCents is non-zero.
type AddOn struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	FlatCents   int64  `json:"flat_cents,omitempty"`
	PerDayCents int64  `json:"per_day_cents,omitempty"`
}

var addOnCatalog = []AddOn{
	{ID: "child_seat", Label: "Child safety seat", PerDayCents: 500},
	{ID: "unlimited_miles", Label: "Unlimited miles", PerDayCents: 1500},
	{ID: "cooler", Label: "Cooler", FlatCents: 1500},
	{ID: "prepaid_refuel", Label: "Prepaid refuel", FlatCents: 4000},
	{ID: "toll_pass", Label: "Toll pass", PerDayCents: 800},
}

// AddOnCatalog returns the fixed global add-on list.
func AddOnCatalog() []AddOn {
	return append([]AddOn(nil), addOnCatalog...)
}

// FindAddOn looks up a catalog entry by id.
func FindAddOn(id string) (AddOn, bool) {
	for _, addOn := range addOnCatalog {
		if addOn.ID == id {
			return addOn, true
		}
	}
	return AddOn{}, false
}

// cityTaxBasisPoints maps a lowercase city name to its rental tax rate in
// basis points. Unknown cities fall back to the default rate.
var cityTaxBasisPoints = map[string]int64{
	"phoenix":    560,
	"scottsdale": 615,
	"tempe":      580,
	"mesa":       595,
	"tucson":     610,
}

const defaultTaxBasisPoints = 560

// TaxBasisPoints resolves the city tax rate in basis points.
func TaxBasisPoints(city string) int64 {
	if rate, ok := cityTaxBasisPoints[strings.ToLower(strings.TrimSpace(city))]; ok {
		return rate
	}
	return defaultTaxBasisPoints
}
