package validation

import "strconv"

// Phone valida telefone de cliente. Números brasileiros (55) exigem DDD entre
// 11 e 99 e 8 ou 9 dígitos; os demais só precisam de tamanho plausível.
func Phone(countryCode, areaCode, number string) *FieldError {
	cc := Digits(countryCode)
	ac := Digits(areaCode)
	num := Digits(number)

	if cc == "" {
		return fail("phone", InvalidFormat)
	}

	if cc == "55" {
		ddd, err := strconv.Atoi(ac)
		if len(ac) != 2 || err != nil || ddd < 11 {
			return fail("phone", OutOfRange)
		}
		if len(num) != 8 && len(num) != 9 {
			return fail("phone", InvalidFormat)
		}
		return nil
	}

	if len(cc) > 3 || ac == "" || len(num) < 6 {
		return fail("phone", InvalidFormat)
	}
	return nil
}

// SplitBRPhone splits a stored Brazilian phone ("11999990000" or
// "+55 (11) 99999-0000") into country code, DDD and number.
func SplitBRPhone(phone string) (cc, ddd, number string) {
	d := Digits(phone)
	if len(d) >= 12 && d[:2] == "55" {
		d = d[2:]
	}
	if len(d) < 10 {
		return "55", "", d
	}
	return "55", d[:2], d[2:]
}
