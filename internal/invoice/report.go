package invoice

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "estore/api/internal/errors"
	"estore/api/internal/model"
	"estore/api/internal/money"
	"estore/api/internal/repository"

	"github.com/shopspring/decimal"
)

// SalesReport summarizes paid orders over a period.
type SalesReport struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Orders        int             `json:"orders"`
	Revenue       decimal.Decimal `json:"revenue"`
	AverageTicket decimal.Decimal `json:"averageTicket"`
	ByMethod      []MethodTotal   `json:"byMethod"`
	ByDay         []DayTotal      `json:"byDay"`
}

type MethodTotal struct {
	Method  model.PaymentMethod `json:"method"`
	Orders  int                 `json:"orders"`
	Revenue decimal.Decimal     `json:"revenue"`
}

type DayTotal struct {
	Date    string          `json:"date"` // 2006-01-02, UTC
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// SalesReport aggregates approved, non-cancelled orders created in
// [from, to). Zero bounds are open.
func (g *Generator) SalesReport(ctx context.Context, actor model.Actor, from, to time.Time) (*SalesReport, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.New(apperrors.CodeForbidden, "apenas administradores")
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, apperrors.WithMetadata(apperrors.CodeValidation, "período inválido",
			map[string]string{"field": "from", "reason": "OutOfRange"})
	}
	sales, err := repository.ApprovedSales(ctx, g.db, from, to)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	r := &SalesReport{From: from, To: to, Revenue: decimal.Zero, AverageTicket: decimal.Zero}
	methods := map[model.PaymentMethod]*MethodTotal{}
	days := map[string]*DayTotal{}
	for _, s := range sales {
		r.Orders++
		r.Revenue = r.Revenue.Add(s.Total)

		m, ok := methods[s.Method]
		if !ok {
			m = &MethodTotal{Method: s.Method, Revenue: decimal.Zero}
			methods[s.Method] = m
		}
		m.Orders++
		m.Revenue = m.Revenue.Add(s.Total)

		key := s.CreatedAt.UTC().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &DayTotal{Date: key, Revenue: decimal.Zero}
			days[key] = d
		}
		d.Orders++
		d.Revenue = d.Revenue.Add(s.Total)
	}
	if r.Orders > 0 {
		r.AverageTicket = money.Round(r.Revenue.Div(decimal.NewFromInt(int64(r.Orders))))
	}

	for _, m := range model.PaymentMethods {
		if t, ok := methods[m]; ok {
			r.ByMethod = append(r.ByMethod, *t)
		}
	}
	for _, d := range days {
		r.ByDay = append(r.ByDay, *d)
	}
	sort.Slice(r.ByDay, func(i, j int) bool { return r.ByDay[i].Date < r.ByDay[j].Date })
	return r, nil
}
