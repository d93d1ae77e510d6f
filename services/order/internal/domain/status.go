package domain

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusPaid      OrderStatus = "PAID"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

var AllStatuses = []OrderStatus{StatusPending, StatusConfirmed, StatusPaid, StatusDelivered, StatusCancelled}

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusPaid, StatusCancelled},
	StatusConfirmed: {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusDelivered},
	StatusDelivered: nil,
	StatusCancelled: nil,
}

func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q, must be one of %v", s, AllStatuses)
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether ChangeOrderStatus may move an order from -> to.
// Staying in the same status is not a transition. PAID is entered only by
// payment reconciliation, which records the reference and receipt with it.
func CanTransition(from, to OrderStatus) bool {
	return to != StatusPaid && follows(from, to)
}

// Payable is true for statuses a payment confirmation may move to PAID.
func (s OrderStatus) Payable() bool {
	return follows(s, StatusPaid)
}

func follows(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
