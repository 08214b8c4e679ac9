package validation

// TaxID valida um CPF: 11 dígitos, sem sequências repetidas, com os dois
// dígitos verificadores conferidos pelo módulo 11.
func TaxID(id string) *FieldError {
	d := Digits(id)
	if len(d) != 11 {
		return fail("cpf", InvalidFormat)
	}
	if allSame(d) {
		return fail("cpf", InvalidFormat)
	}
	if checkDigit(d[:9], 10) != d[9] || checkDigit(d[:10], 11) != d[10] {
		return fail("cpf", ChecksumMismatch)
	}
	return nil
}

func checkDigit(digits string, weight int) byte {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (weight - i)
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
