package payment

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"estore/api/internal/model"
	"estore/api/internal/money"

	"github.com/shopspring/decimal"
)

// lockedRand serializes access to a *rand.Rand, which is not safe for
// concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(src rand.Source) *lockedRand {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &lockedRand{r: rand.New(src)}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Uint32() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Uint32()
}

// TransactionID formats method prefix + unix seconds + 3-digit random
// suffix, e.g. "PIX1741617000042". The format is used for external
// reconciliation and must stay stable.
func TransactionID(method model.PaymentMethod, now time.Time, suffix int) string {
	return fmt.Sprintf("%s%d%03d", method.TransactionPrefix(), now.Unix(), suffix%1000)
}

// AddBusinessDays returns t advanced by n weekdays.
func AddBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return t
}

// SlipNumber formats the typeable line of a bank slip:
// "<bank>91.AAAA.BBBB.CCCCC.DDDDD".
func SlipNumber(bankCode string, rng *lockedRand) string {
	return fmt.Sprintf("%s91.%04d.%04d.%05d.%05d", bankCode,
		rng.IntN(10000), rng.IntN(10000), rng.IntN(100000), rng.IntN(100000))
}

// SlipBarcode is bank + "9" + due date (DDMMYYYY) + amount in centavos
// (10 digits) + a modulo-10 and a modulo-11 check digit.
func SlipBarcode(bankCode string, due time.Time, amount decimal.Decimal) string {
	base := fmt.Sprintf("%s9%s%010d", bankCode, due.Format("02012006"), money.Cents(amount))
	d1 := mod10(base)
	d2 := mod11(base + string(d1))
	return base + string(d1) + string(d2)
}

// mod10 is the Febraban modulo-10 digit: weights 2,1 from the right,
// summing the digits of each product.
func mod10(digits string) byte {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		p := int(digits[i]-'0') * weight
		sum += p/10 + p%10
		weight = 3 - weight
	}
	d := (10 - sum%10) % 10
	return byte('0' + d)
}

// mod11 is the modulo-11 digit with weights 2..9 from the right; results of
// 0, 10 and 11 map to 1.
func mod11(digits string) byte {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	d := 11 - sum%11
	if d == 0 || d >= 10 {
		d = 1
	}
	return byte('0' + d)
}

// authorizationCode is "AUTH" + 8 upper-case hex digits.
func authorizationCode(rng *lockedRand) string {
	return "AUTH" + strings.ToUpper(fmt.Sprintf("%08x", rng.Uint32()))
}
