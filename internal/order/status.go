package order

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusCreated        Status = "created"
	StatusPaymentPending Status = "payment_pending"
	StatusPaid           Status = "paid"
	StatusToPick         Status = "to_pick"
	StatusPacked         Status = "packed"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusFailed         Status = "failed"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

var ErrTransition = errors.New("invalid status transition")

// transitions is the authoritative edge table. Terminal states
// (delivered, cancelled, failed) have no entry.
var transitions = map[Status][]Status{
	StatusCreated:        {StatusToPick, StatusCancelled, StatusFailed},
	StatusPaymentPending: {StatusPaid, StatusFailed, StatusCancelled},
	StatusPaid:           {StatusToPick, StatusCancelled},
	StatusToPick:         {StatusPacked, StatusCancelled},
	StatusPacked:         {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusFailed},
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusCreated, StatusPaymentPending, StatusPaid, StatusToPick,
		StatusPacked, StatusOutForDelivery, StatusDelivered, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a descriptive ErrTransition when the edge is
// not in the table.
func CheckTransition(from, to Status) error {
	if !ValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransition, from, to)
	}
	return nil
}
