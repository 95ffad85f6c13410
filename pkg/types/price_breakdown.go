package types

// PriceLine is a single itemized charge inside a breakdown.
type PriceLine struct {
	Label       string `json:"label"`
	AmountCents int64  `json:"amount_cents"`
}

// PriceBreakdown is the itemized output of the pricing engine. All amounts
// are integer cents; line items always sum exactly to the stated totals.
// Bookings persist the breakdown as JSONB so the charge is frozen at commit.
type PriceBreakdown struct {
	Days int `json:"days"`

	BaseCents        int64       `json:"base_cents"`
	ServiceFeeCents  int64       `json:"service_fee_cents"`
	InsuranceCents   int64       `json:"insurance_cents"`
	DeliveryFeeCents int64       `json:"delivery_fee_cents"`
	AddOns           []PriceLine `json:"add_ons"`
	AddOnsCents      int64       `json:"add_ons_cents"`

	TaxableCents     int64 `json:"taxable_cents"`
	TaxCents         int64 `json:"tax_cents"`
	RentalTotalCents int64 `json:"rental_total_cents"`

	RentalDiscountCents int64 `json:"rental_discount_cents"`
	AdjustedRentalCents int64 `json:"adjusted_rental_cents"`

	DepositCents              int64 `json:"deposit_cents"`
	DepositWalletAppliedCents int64 `json:"deposit_wallet_applied_cents"`
	AdjustedDepositCents      int64 `json:"adjusted_deposit_cents"`

	// ChargeCents is the amount placed on the payment hold, floored at the
	// processor minimum of 100 cents.
	ChargeCents int64 `json:"charge_cents"`
}

// PriceDrift reports a mismatch between the rate snapshotted at session
// creation and the vehicle's current live rate.
type PriceDrift struct {
	OldDailyRateCents int64 `json:"old_daily_rate_cents"`
	NewDailyRateCents int64 `json:"new_daily_rate_cents"`
}
