// Package validation holds the stateless field checks run before any payment
// reaches a gateway. Every check is a pure function of its input (and, for
// expiry, of the supplied clock reading).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Reason explains why a field was rejected.
type Reason string

const (
	InvalidFormat    Reason = "InvalidFormat"
	ChecksumMismatch Reason = "ChecksumMismatch"
	OutOfRange       Reason = "OutOfRange"
	Expired          Reason = "Expired"
)

// FieldError is a failed check. Validators return it as a value instead of
// panicking or erroring on malformed input.
type FieldError struct {
	Field  string
	Reason Reason
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func fail(field string, reason Reason) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}

var nonDigit = regexp.MustCompile(`[^\d]`)

// Digits remove caracteres não numéricos (pontuação de CPF, espaços de cartão).
func Digits(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Email accepts a conservative local@domain.tld shape.
func Email(addr string) *FieldError {
	if !emailPattern.MatchString(strings.TrimSpace(addr)) {
		return fail("email", InvalidFormat)
	}
	return nil
}

// First returns the first non-nil failure.
func First(errs ...*FieldError) *FieldError {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
