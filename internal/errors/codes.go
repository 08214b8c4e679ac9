// Package errors provides the domain error kinds of the checkout engine.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeInternal represents an unexpected failure (storage, encoding).
	CodeInternal Code = "INTERNAL"

	// Input errors
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeEmptyCart          Code = "EMPTY_CART"
	CodeProductUnavailable Code = "PRODUCT_UNAVAILABLE"

	// Stock errors
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"

	// Payment errors
	CodePaymentDeclined Code = "PAYMENT_DECLINED"

	// State machine errors
	CodeConflict         Code = "CONFLICT"
	CodeDuplicateInvoice Code = "DUPLICATE_INVOICE"

	// Lookup and access errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation,
		CodeEmptyCart:
		return http.StatusBadRequest

	case CodeProductUnavailable,
		CodeInsufficientStock,
		CodeConflict,
		CodeDuplicateInvoice:
		return http.StatusConflict

	case CodePaymentDeclined:
		return http.StatusPaymentRequired

	case CodeNotFound:
		return http.StatusNotFound

	case CodeForbidden:
		return http.StatusForbidden

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}
