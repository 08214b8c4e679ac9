package model

import "fmt"

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every order status. The transition table below must
// have an entry for each of them.
var OrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
	OrderDelivered:  nil,
	OrderCancelled:  nil,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransition reports whether the fulfillment state machine allows s -> to.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts a stored or user-supplied string into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// PaymentStatus is the state of a payment transaction and, mirrored, of the
// order's payment_status column.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// PaymentStatuses lists every payment status.
var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentApproved, PaymentFailed, PaymentCancelled}

// Transactions never leave a resolved state; a reset creates a new transaction.
var transactionTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentApproved, PaymentFailed, PaymentCancelled},
	PaymentApproved:  nil,
	PaymentFailed:    nil,
	PaymentCancelled: nil,
}

// The order-level payment status follows its current transaction. A failed or
// cancelled attempt may be superseded by a new one (back to pending, or
// straight to a resolution for synchronous methods); approved is final.
var orderPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentApproved, PaymentFailed, PaymentCancelled},
	PaymentApproved:  nil,
	PaymentFailed:    {PaymentPending},
	PaymentCancelled: {PaymentPending},
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	_, ok := transactionTransitions[s]
	return ok
}

// Terminal reports whether a transaction in state s can no longer change.
func (s PaymentStatus) Terminal() bool {
	return len(transactionTransitions[s]) == 0
}

// CanTransition reports whether a transaction may move s -> to.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range transactionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderPaymentCanTransition reports whether an order's payment_status may move from -> to.
func OrderPaymentCanTransition(from, to PaymentStatus) bool {
	for _, next := range orderPaymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts a stored or user-supplied string into a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown payment status %q", s)
	}
	return st, nil
}

// InvoiceStatus is the state of an issued invoice.
type InvoiceStatus string

const (
	InvoiceIssued    InvoiceStatus = "ISSUED"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)
