package model

import "fmt"

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	MethodPix        PaymentMethod = "pix"
	MethodCreditCard PaymentMethod = "credit_card"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodBankSlip   PaymentMethod = "bank_slip"
)

// PaymentMethods lists every supported method.
var PaymentMethods = []PaymentMethod{MethodPix, MethodCreditCard, MethodDebitCard, MethodBankSlip}

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodPix, MethodCreditCard, MethodDebitCard, MethodBankSlip:
		return true
	}
	return false
}

// Async reports whether the method resolves through a later external
// confirmation instead of the gateway response.
func (m PaymentMethod) Async() bool {
	return m == MethodPix || m == MethodBankSlip
}

// TransactionPrefix is the prefix of transaction ids issued for m.
// These prefixes are used for external reconciliation and must stay stable.
func (m PaymentMethod) TransactionPrefix() string {
	switch m {
	case MethodPix:
		return "PIX"
	case MethodCreditCard:
		return "CC"
	case MethodDebitCard:
		return "DC"
	case MethodBankSlip:
		return "BOL"
	}
	return "TXN"
}

// Label is the customer-facing name printed on invoices.
func (m PaymentMethod) Label() string {
	switch m {
	case MethodPix:
		return "PIX"
	case MethodCreditCard:
		return "Cartão de Crédito"
	case MethodDebitCard:
		return "Cartão de Débito"
	case MethodBankSlip:
		return "Boleto Bancário"
	}
	return string(m)
}

// ParsePaymentMethod validates a method name.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("método de pagamento inválido: %q", s)
	}
	return m, nil
}
