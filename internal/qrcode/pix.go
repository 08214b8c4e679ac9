// Package qrcode builds PIX "copia e cola" payloads in the EMV BR Code
// format published by the Banco Central do Brasil.
package qrcode

import (
	"fmt"
	"strings"

	"estore/api/internal/money"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Field ids of the BR Code.
const (
	idPayloadFormat    = "00"
	idInitiationMethod = "01"
	idMerchantAccount  = "26"
	idCategoryCode     = "52"
	idCurrency         = "53"
	idAmount           = "54"
	idCountry          = "58"
	idMerchantName     = "59"
	idMerchantCity     = "60"
	idAdditionalData   = "62"
	idCRC              = "63"

	pixGUI = "br.gov.bcb.pix"
)

// Pix describes a single-use PIX charge.
type Pix struct {
	Key          string
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	TxID         string
}

// Payload renders the BR Code string, terminated by its CRC16.
func (p Pix) Payload() (string, error) {
	if p.Key == "" {
		return "", fmt.Errorf("pix key is required")
	}
	if p.Amount.IsNegative() || p.Amount.IsZero() {
		return "", fmt.Errorf("pix amount must be positive")
	}

	var b strings.Builder
	b.WriteString(field(idPayloadFormat, "01"))
	b.WriteString(field(idInitiationMethod, "12"))
	b.WriteString(field(idMerchantAccount, field("00", pixGUI)+field("01", p.Key)))
	b.WriteString(field(idCategoryCode, "0000"))
	b.WriteString(field(idCurrency, "986"))
	b.WriteString(field(idAmount, money.Format(p.Amount)))
	b.WriteString(field(idCountry, "BR"))
	b.WriteString(field(idMerchantName, clean(p.MerchantName, 25)))
	b.WriteString(field(idMerchantCity, clean(p.MerchantCity, 15)))
	b.WriteString(field(idAdditionalData, field("05", txid(p.TxID))))
	b.WriteString(idCRC + "04")

	s := b.String()
	return s + fmt.Sprintf("%04X", CRC16(s)), nil
}

func field(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// clean strips accents and truncates, since BR Code text fields are ASCII.
func clean(s string, max int) string {
	var out []rune
	for _, r := range norm.NFD.String(s) {
		if r < 128 {
			out = append(out, r)
		}
	}
	res := strings.TrimSpace(string(out))
	if len(res) > max {
		res = res[:max]
	}
	return res
}

// txid keeps the alphanumerics of id, at most 25 of them. "***" means none.
func txid(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			b.WriteRune(r)
		}
		if b.Len() == 25 {
			break
		}
	}
	if b.Len() == 0 {
		return "***"
	}
	return b.String()
}

// CRC16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), the checksum used
// by BR Code payloads.
func CRC16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
