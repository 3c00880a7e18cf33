package shipping

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DeliveryMode selects between home delivery and in-store pickup.
type DeliveryMode string

const (
	ModeDelivery DeliveryMode = "entrega"
	ModePickup   DeliveryMode = "retirada"
)

// Tier names the pricing branch a quote landed on.
type Tier string

const (
	TierPickup Tier = "pickup"
	TierFree   Tier = "free"
	TierPaid   Tier = "paid"
)

// Quote is the fee and lead-time estimate for one delivery.
type Quote struct {
	Fee          decimal.Decimal
	LeadTimeDays int
	Tier         Tier
}

// Rates maps a state code to its shipping fee and lead time in business days.
type Rates struct {
	Fee          decimal.Decimal
	LeadTimeDays int
}

// Config holds the immutable pricing tables for a Calculator.
type Config struct {
	// Regions maps uppercase state codes to their rates.
	Regions map[string]Rates
	// Default applies to states missing from Regions.
	Default Rates
	// FreeThreshold is the order value at or above which shipping is free.
	FreeThreshold decimal.Decimal
}

// DefaultConfig returns the store's standard shipping tables.
func DefaultConfig() Config {
	return Config{
		Regions: map[string]Rates{
			"RS": {Fee: decimal.NewFromInt(8), LeadTimeDays: 2},
			"SC": {Fee: decimal.NewFromInt(12), LeadTimeDays: 3},
			"PR": {Fee: decimal.NewFromInt(15), LeadTimeDays: 4},
			"SP": {Fee: decimal.NewFromInt(20), LeadTimeDays: 5},
			"RJ": {Fee: decimal.NewFromInt(22), LeadTimeDays: 5},
			"MG": {Fee: decimal.NewFromInt(25), LeadTimeDays: 6},
		},
		Default:       Rates{Fee: decimal.NewFromInt(30), LeadTimeDays: 10},
		FreeThreshold: decimal.NewFromInt(100),
	}
}

// Calculator quotes shipping fees from injected rate tables.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator. The Config is copied shallowly and must
// not be mutated afterwards.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Quote maps a state code, delivery mode, and order value to a fee and lead
// time. Pickup is always free with no lead time. Orders at or above the free
// threshold ship free at the region's normal lead time. State codes are
// uppercased before lookup; unmapped states use the default rates.
func (c *Calculator) Quote(state string, mode DeliveryMode, orderValue decimal.Decimal) Quote {
	if mode == ModePickup {
		return Quote{Fee: decimal.Zero, LeadTimeDays: 0, Tier: TierPickup}
	}

	rates := c.ratesFor(state)

	if orderValue.GreaterThanOrEqual(c.cfg.FreeThreshold) {
		return Quote{Fee: decimal.Zero, LeadTimeDays: rates.LeadTimeDays, Tier: TierFree}
	}

	return Quote{Fee: rates.Fee, LeadTimeDays: rates.LeadTimeDays, Tier: TierPaid}
}

func (c *Calculator) ratesFor(state string) Rates {
	if r, ok := c.cfg.Regions[strings.ToUpper(state)]; ok {
		return r
	}
	return c.cfg.Default
}

// WeightedFee is the alternative fee formula based on total weight and
// distance: base 5.00 + 2.00/kg + 0.10/km, rounded to 2 places.
func (c *Calculator) WeightedFee(weightKg, distanceKm decimal.Decimal) decimal.Decimal {
	base := decimal.NewFromInt(5)
	perKg := decimal.NewFromInt(2)
	perKm := decimal.NewFromFloat(0.1)

	return base.Add(weightKg.Mul(perKg)).Add(distanceKm.Mul(perKm)).Round(2)
}

// ValidCEP reports whether cep contains exactly 8 digits, ignoring
// formatting characters.
func ValidCEP(cep string) bool {
	return len(digitsOf(cep)) == 8
}

// FormatCEP normalizes a CEP to the XXXXX-XXX format. Inputs without exactly
// 8 digits are returned unchanged.
func FormatCEP(cep string) string {
	digits := digitsOf(cep)
	if len(digits) != 8 {
		return cep
	}
	return digits[:5] + "-" + digits[5:]
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
