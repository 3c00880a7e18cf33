package payment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Method is the payment method chosen at checkout. Wire values match the
// original storefront contract.
type Method string

const (
	MethodPix    Method = "pix"
	MethodCredit Method = "credito"
	MethodDebit  Method = "debito"
	MethodCash   Method = "dinheiro"
)

// Valid reports whether m is a recognized payment method.
func (m Method) Valid() bool {
	switch m {
	case MethodPix, MethodCredit, MethodDebit, MethodCash:
		return true
	}
	return false
}

// Status is the payment lifecycle state.
type Status string

const (
	StatusPending    Status = "pendente"
	StatusProcessing Status = "processando"
	StatusApproved   Status = "aprovado"
	StatusDeclined   Status = "recusado"
	StatusCancelled  Status = "cancelado"
)

// transitions lists the permitted payment status moves.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusApproved, StatusDeclined, StatusCancelled},
	StatusApproved:   {StatusCancelled},
}

// InvalidTransitionError reports a rejected payment status move.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("payment cannot move from %s to %s", e.From, e.To)
}

// Transition validates a status move. Status changes happen only through
// this function; the entity carries no mutation methods of its own.
func Transition(from, to Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// Payment records how an order was (to be) paid. One per order.
type Payment struct {
	ID            string
	OrderID       string
	Method        Method
	Status        Status
	Amount        decimal.Decimal
	PaidAmount    *decimal.Decimal
	Change        *decimal.Decimal
	TransactionID string
	Metadata      map[string]string
}

// ChangeFor computes the change owed on a cash payment. Underpayment yields
// zero, never a negative amount.
func ChangeFor(paid, total decimal.Decimal) decimal.Decimal {
	change := paid.Sub(total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change.Round(2)
}
