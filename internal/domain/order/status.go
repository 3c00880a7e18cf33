package order

import "fmt"

// Status is the fulfillment state of an order. Wire values match the
// original storefront contract.
type Status string

const (
	StatusPending        Status = "pendente"
	StatusReceived       Status = "recebido"
	StatusPreparing      Status = "em_preparo"
	StatusReady          Status = "pronto"
	StatusOutForDelivery Status = "saiu_entrega"
	StatusDelivered      Status = "entregue"
	StatusCancelled      Status = "cancelado"
)

// transitions is the fulfillment state machine: a linear happy path with
// cancellation possible only before preparation starts. StatusDelivered and
// StatusCancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:        {StatusReceived, StatusCancelled},
	StatusReceived:       {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady},
	StatusReady:          {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
}

// Valid reports whether s is a recognized order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReceived, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusReceived
}

// InvalidTransitionError reports a rejected order status move.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	if !e.To.Valid() {
		return fmt.Sprintf("unknown order status %q", e.To)
	}
	return fmt.Sprintf("order cannot move from %s to %s", e.From, e.To)
}

// Transition validates a status move against the state machine. Unrecognized
// target statuses are rejected.
func Transition(from, to Status) error {
	if !to.Valid() {
		return &InvalidTransitionError{From: from, To: to}
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}
