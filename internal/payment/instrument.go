// Package payment dispatches payment attempts over the supported methods and
// records every transaction status change.
package payment

import (
	"fmt"
	"strconv"
	"time"

	"estore/api/internal/config"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/model"
	"estore/api/internal/money"
	"estore/api/internal/validation"

	"github.com/shopspring/decimal"
)

// Instrument is the method-specific part of a payment request. Exactly one
// variant exists per payment method.
type Instrument interface {
	Method() model.PaymentMethod
	isInstrument()
}

type Pix struct{}

type BankSlip struct{}

// Card holds the raw card data. It is validated and then discarded; only the
// brand and last four digits are persisted.
type Card struct {
	Number string `json:"number"`
	Holder string `json:"holder"`
	Expiry string `json:"expiry"` // MM/YY
	CVV    string `json:"cvv"`
}

type CreditCard struct {
	Card
	Installments int
}

type DebitCard struct {
	Card
}

func (Pix) Method() model.PaymentMethod        { return model.MethodPix }
func (BankSlip) Method() model.PaymentMethod   { return model.MethodBankSlip }
func (CreditCard) Method() model.PaymentMethod { return model.MethodCreditCard }
func (DebitCard) Method() model.PaymentMethod  { return model.MethodDebitCard }

func (Pix) isInstrument()        {}
func (BankSlip) isInstrument()   {}
func (CreditCard) isInstrument() {}
func (DebitCard) isInstrument()  {}

// NewInstrument builds the instrument for method from request data. Card
// data and installments are ignored for PIX and bank slip.
func NewInstrument(method model.PaymentMethod, card Card, installments int) (Instrument, error) {
	switch method {
	case model.MethodPix:
		return Pix{}, nil
	case model.MethodBankSlip:
		return BankSlip{}, nil
	case model.MethodCreditCard:
		if installments == 0 {
			installments = 1
		}
		return CreditCard{Card: card, Installments: installments}, nil
	case model.MethodDebitCard:
		if installments > 1 {
			return nil, fieldError("installments", validation.OutOfRange, "débito aceita apenas pagamento à vista")
		}
		return DebitCard{Card: card}, nil
	}
	return nil, fieldError("method", validation.InvalidFormat, fmt.Sprintf("método de pagamento inválido: %q", method))
}

// Fee computes the informational processing fee of a method. It never
// changes the amount charged.
func Fee(cfg config.PaymentConfig, method model.PaymentMethod, amount decimal.Decimal) decimal.Decimal {
	switch method {
	case model.MethodCreditCard:
		return money.Round(amount.Mul(cfg.CreditFeeRate).Add(cfg.CreditFeeFixed))
	case model.MethodDebitCard:
		return money.Round(amount.Mul(cfg.DebitFeeRate).Add(cfg.DebitFeeFixed))
	}
	return decimal.Zero
}

// validate runs the field checks of in. PIX and bank slip carry no
// customer-supplied fields.
func validate(cfg config.PaymentConfig, in Instrument, now time.Time) error {
	switch v := in.(type) {
	case Pix, BankSlip:
		return nil
	case CreditCard:
		if v.Installments < 1 || v.Installments > cfg.MaxInstallments {
			return fieldError("installments", validation.OutOfRange,
				"parcelas devem estar entre 1 e "+strconv.Itoa(cfg.MaxInstallments))
		}
		return validateCard(v.Card, now)
	case DebitCard:
		return validateCard(v.Card, now)
	}
	return fieldError("method", validation.InvalidFormat, fmt.Sprintf("instrumento desconhecido %T", in))
}

func validateCard(c Card, now time.Time) error {
	if fe := validation.CardNumber(c.Number); fe != nil {
		return fromFieldError(fe, "número do cartão inválido")
	}
	if fe := validation.CVV(c.CVV); fe != nil {
		return fromFieldError(fe, "CVV inválido")
	}
	month, year, fe := validation.ParseExpiry(c.Expiry)
	if fe == nil {
		fe = validation.Expiry(month, year, now)
	}
	if fe != nil {
		return fromFieldError(fe, "validade do cartão inválida")
	}
	return nil
}

func fieldError(field string, reason validation.Reason, msg string) error {
	return apperrors.WithMetadata(apperrors.CodeValidation, msg,
		map[string]string{"field": field, "reason": string(reason)})
}

func fromFieldError(fe *validation.FieldError, msg string) error {
	return fieldError(fe.Field, fe.Reason, msg)
}
