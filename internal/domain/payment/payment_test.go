package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethod_Valid(t *testing.T) {
	for _, m := range []Method{MethodPix, MethodCredit, MethodDebit, MethodCash} {
		assert.True(t, m.Valid(), "method %s", m)
	}
	assert.False(t, Method("boleto").Valid())
	assert.False(t, Method("").Valid())
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{name: "pending to processing", from: StatusPending, to: StatusProcessing},
		{name: "pending to cancelled", from: StatusPending, to: StatusCancelled},
		{name: "processing to approved", from: StatusProcessing, to: StatusApproved},
		{name: "processing to declined", from: StatusProcessing, to: StatusDeclined},
		{name: "approved to cancelled", from: StatusApproved, to: StatusCancelled},

		{name: "pending cannot approve directly", from: StatusPending, to: StatusApproved, wantErr: true},
		{name: "declined is terminal", from: StatusDeclined, to: StatusProcessing, wantErr: true},
		{name: "cancelled is terminal", from: StatusCancelled, to: StatusPending, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(tt.from, tt.to)
			if tt.wantErr {
				var invalid *InvalidTransitionError
				require.ErrorAs(t, err, &invalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChangeFor(t *testing.T) {
	tests := []struct {
		name  string
		paid  string
		total string
		want  string
	}{
		{name: "overpayment", paid: "30.00", total: "23.50", want: "6.50"},
		{name: "exact payment", paid: "23.50", total: "23.50", want: "0.00"},
		{name: "underpayment clamps to zero", paid: "20.00", total: "23.50", want: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paid, err := decimal.NewFromString(tt.paid)
			require.NoError(t, err)
			total, err := decimal.NewFromString(tt.total)
			require.NoError(t, err)

			assert.Equal(t, tt.want, ChangeFor(paid, total).StringFixed(2))
		})
	}
}
