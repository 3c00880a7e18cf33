package shipping

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculator_Quote(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	tests := []struct {
		name         string
		state        string
		mode         DeliveryMode
		orderValue   string
		wantFee      string
		wantLeadTime int
		wantTier     Tier
	}{
		{
			name:         "pickup is always free",
			state:        "SP",
			mode:         ModePickup,
			orderValue:   "10.00",
			wantFee:      "0.00",
			wantLeadTime: 0,
			wantTier:     TierPickup,
		},
		{
			name:         "local state",
			state:        "RS",
			mode:         ModeDelivery,
			orderValue:   "60.00",
			wantFee:      "8.00",
			wantLeadTime: 2,
			wantTier:     TierPaid,
		},
		{
			name:         "lowercase state code",
			state:        "rs",
			mode:         ModeDelivery,
			orderValue:   "60.00",
			wantFee:      "8.00",
			wantLeadTime: 2,
			wantTier:     TierPaid,
		},
		{
			name:         "free at threshold",
			state:        "SP",
			mode:         ModeDelivery,
			orderValue:   "100.00",
			wantFee:      "0.00",
			wantLeadTime: 5,
			wantTier:     TierFree,
		},
		{
			name:         "one cent below threshold pays full fee",
			state:        "SP",
			mode:         ModeDelivery,
			orderValue:   "99.99",
			wantFee:      "20.00",
			wantLeadTime: 5,
			wantTier:     TierPaid,
		},
		{
			name:         "free shipping keeps regional lead time",
			state:        "RS",
			mode:         ModeDelivery,
			orderValue:   "150.00",
			wantFee:      "0.00",
			wantLeadTime: 2,
			wantTier:     TierFree,
		},
		{
			name:         "unmapped state uses default rates",
			state:        "AM",
			mode:         ModeDelivery,
			orderValue:   "60.00",
			wantFee:      "30.00",
			wantLeadTime: 10,
			wantTier:     TierPaid,
		},
		{
			name:         "empty state uses default rates",
			state:        "",
			mode:         ModeDelivery,
			orderValue:   "60.00",
			wantFee:      "30.00",
			wantLeadTime: 10,
			wantTier:     TierPaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orderValue, err := decimal.NewFromString(tt.orderValue)
			assert.NoError(t, err)

			q := calc.Quote(tt.state, tt.mode, orderValue)

			assert.Equal(t, tt.wantFee, q.Fee.StringFixed(2))
			assert.Equal(t, tt.wantLeadTime, q.LeadTimeDays)
			assert.Equal(t, tt.wantTier, q.Tier)
		})
	}
}

func TestCalculator_WeightedFee(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	fee := calc.WeightedFee(decimal.NewFromInt(2), decimal.NewFromInt(10))
	// 5 + 2*2 + 0.1*10
	assert.Equal(t, "10.00", fee.StringFixed(2))
}

func TestValidCEP(t *testing.T) {
	tests := []struct {
		cep  string
		want bool
	}{
		{"90010000", true},
		{"90010-000", true},
		{"9001000", false},
		{"900100000", false},
		{"9001000a", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.cep, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCEP(tt.cep))
		})
	}
}

func TestFormatCEP(t *testing.T) {
	assert.Equal(t, "90010-000", FormatCEP("90010000"))
	assert.Equal(t, "90010-000", FormatCEP("90010-000"))
	assert.Equal(t, "bogus", FormatCEP("bogus"))
}
