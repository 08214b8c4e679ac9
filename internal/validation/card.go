package validation

import (
	"strconv"
	"strings"
	"time"
)

// CardNumber checks length (13 to 19 digits after stripping) and the Luhn
// check digit.
func CardNumber(number string) *FieldError {
	digits := Digits(number)
	if len(digits) < 13 || len(digits) > 19 {
		return fail("card_number", InvalidFormat)
	}
	if !luhn(digits) {
		return fail("card_number", ChecksumMismatch)
	}
	return nil
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// CVV accepts 3 or 4 digits and nothing else.
func CVV(code string) *FieldError {
	if len(code) < 3 || len(code) > 4 {
		return fail("cvv", InvalidFormat)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fail("cvv", InvalidFormat)
		}
	}
	return nil
}

// Expiry accepts a month in 1..12 whose year/month is not before now's.
// Two-digit years are taken as 20YY.
func Expiry(month, year int, now time.Time) *FieldError {
	if month < 1 || month > 12 {
		return fail("expiry", OutOfRange)
	}
	if year < 100 {
		year += 2000
	}
	if year*12+month < now.Year()*12+int(now.Month()) {
		return fail("expiry", Expired)
	}
	return nil
}

// ParseExpiry reads "MM/YY" or "MM/YYYY" and returns the four-digit year.
// A four-digit year must not start with 0.
func ParseExpiry(s string) (month, year int, fe *FieldError) {
	mm, yy, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || mm == "" || Digits(mm) != mm || Digits(yy) != yy {
		return 0, 0, fail("expiry", InvalidFormat)
	}
	month, err := strconv.Atoi(mm)
	if err != nil {
		return 0, 0, fail("expiry", InvalidFormat)
	}
	year, err = strconv.Atoi(yy)
	switch {
	case err != nil:
		return 0, 0, fail("expiry", InvalidFormat)
	case len(yy) == 2:
		year += 2000
	case len(yy) != 4 || year < 1000:
		return 0, 0, fail("expiry", InvalidFormat)
	}
	return month, year, nil
}

// CardBrand identifica a bandeira pelo prefixo do número. Unknown prefixes
// fall back to Elo, the domestic network.
func CardBrand(number string) string {
	d := Digits(number)
	switch {
	case strings.HasPrefix(d, "4"):
		return "Visa"
	case hasPrefixRange(d, 51, 55):
		return "Mastercard"
	case strings.HasPrefix(d, "34"), strings.HasPrefix(d, "37"):
		return "American Express"
	case strings.HasPrefix(d, "30"), strings.HasPrefix(d, "36"), strings.HasPrefix(d, "38"):
		return "Diners Club"
	case strings.HasPrefix(d, "6011"):
		return "Discover"
	}
	return "Elo"
}

func hasPrefixRange(d string, lo, hi int) bool {
	if len(d) < 2 {
		return false
	}
	p, err := strconv.Atoi(d[:2])
	return err == nil && p >= lo && p <= hi
}

// LastFour returns the last four digits of a card number.
func LastFour(number string) string {
	d := Digits(number)
	if len(d) <= 4 {
		return d
	}
	return d[len(d)-4:]
}
