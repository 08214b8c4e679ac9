package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a tax document issued for a paid order. Everything except the
// cancellation flag is immutable once issued.
type Invoice struct {
	ID            string          `json:"id"`
	Number        string          `json:"invoiceNumber"`
	OrderID       string          `json:"orderId"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Status        InvoiceStatus   `json:"status"`
	Snapshot      InvoiceSnapshot `json:"snapshot"`
	IssuedAt      time.Time       `json:"issuedAt"`
	CancelledAt   *time.Time      `json:"cancelledAt,omitempty"`
}

// InvoiceSnapshot is the customer, issuer and line data frozen at issuance.
type InvoiceSnapshot struct {
	OrderNumber   string        `json:"orderNumber"`
	Customer      InvoiceParty  `json:"customer"`
	Company       InvoiceParty  `json:"company"`
	Items         []InvoiceLine `json:"items"`
	PaymentMethod string        `json:"paymentMethod"`
}

// InvoiceParty identifies either side of an invoice.
type InvoiceParty struct {
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// InvoiceLine is one item as printed on the invoice.
type InvoiceLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Total     decimal.Decimal `json:"total"`
}
