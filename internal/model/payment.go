package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payload is the method-specific data of a transaction. Exactly one variant
// is populated, selected by the transaction's method.
type Payload interface {
	Method() PaymentMethod
	isPayload()
}

// PixPayload carries the generated PIX key and "copia e cola" QR payload.
type PixPayload struct {
	Key       string    `json:"pixKey"`
	QRCode    string    `json:"qrCode"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SlipPayload carries the bank slip document data.
type SlipPayload struct {
	Number  string    `json:"slipNumber"`
	Barcode string    `json:"barcode"`
	DueDate time.Time `json:"dueDate"`
}

// CardPayload carries the non-sensitive card data kept after a charge.
type CardPayload struct {
	Brand        string `json:"cardBrand"`
	LastFour     string `json:"cardLastFour"`
	Installments int    `json:"installments"`
	Debit        bool   `json:"debit"`
}

func (PixPayload) Method() PaymentMethod  { return MethodPix }
func (SlipPayload) Method() PaymentMethod { return MethodBankSlip }

func (p CardPayload) Method() PaymentMethod {
	if p.Debit {
		return MethodDebitCard
	}
	return MethodCreditCard
}

func (PixPayload) isPayload()  {}
func (SlipPayload) isPayload() {}
func (CardPayload) isPayload() {}

// Transaction is one payment attempt for an order. At most one transaction
// per order is pending at any time.
type Transaction struct {
	ID              string          `json:"transactionId"`
	OrderID         string          `json:"orderId"`
	Method          PaymentMethod   `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	Status          PaymentStatus   `json:"status"`
	Payload         Payload         `json:"payload"`
	GatewayResponse string          `json:"gatewayResponse,omitempty"`
	Supersedes      string          `json:"supersedes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NotificationType classifies a payment notification.
type NotificationType string

const (
	NotificationCreated   NotificationType = "payment_created"
	NotificationApproved  NotificationType = "payment_approved"
	NotificationFailed    NotificationType = "payment_failed"
	NotificationCancelled NotificationType = "payment_cancelled"
)

// NotificationTypeFor derives the notification type of a transaction entering status s.
func NotificationTypeFor(s PaymentStatus) NotificationType {
	switch s {
	case PaymentApproved:
		return NotificationApproved
	case PaymentFailed:
		return NotificationFailed
	case PaymentCancelled:
		return NotificationCancelled
	default:
		return NotificationCreated
	}
}

// Notification is an append-only record derived from a transaction status change.
type Notification struct {
	ID            string           `json:"id"`
	TransactionID string           `json:"transactionId"`
	Type          NotificationType `json:"type"`
	Status        PaymentStatus    `json:"status"`
	Message       string           `json:"message"`
	CreatedAt     time.Time        `json:"createdAt"`
}
