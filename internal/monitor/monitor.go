// Package monitor expires PIX charges and bank slips that were never paid.
package monitor

import (
	"context"
	"database/sql"
	"time"

	apperrors "estore/api/internal/errors"
	"estore/api/internal/logger"
	"estore/api/internal/model"
	"estore/api/internal/payment"
	"estore/api/internal/repository"
)

// Expirer cancels a pending asynchronous transaction.
type Expirer interface {
	ExpireTransaction(ctx context.Context, txID string, actor model.Actor) (*model.Transaction, error)
}

// Monitor periodically sweeps pending PIX and bank slip transactions.
type Monitor struct {
	db      *sql.DB
	expirer Expirer
	now     func() time.Time
}

func New(sqlite *sql.DB, expirer Expirer, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{db: sqlite, expirer: expirer, now: now}
}

// Sweep cancels every expired pending PIX or slip and returns how many were
// cancelled. A transaction resolved concurrently is skipped.
func (m *Monitor) Sweep(ctx context.Context) (int, error) {
	pending, err := repository.PendingAsyncTransactions(ctx, m.db)
	if err != nil {
		return 0, err
	}
	now := m.now()
	expired := 0
	for i := range pending {
		t := &pending[i]
		if !payment.Expired(t, now) {
			continue
		}
		if _, err := m.expirer.ExpireTransaction(ctx, t.ID, model.System); err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeConflict {
				continue
			}
			return expired, err
		}
		expired++
		logger.InfoContext(ctx, "payment expired", "transaction_id", t.ID, "order_id", t.OrderID, "method", t.Method)
	}
	return expired, nil
}

// Run sweeps every interval until ctx is done. Sweep errors are logged and
// the loop keeps going.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := m.Sweep(ctx); err != nil {
				logger.ErrorContext(ctx, "payment monitor sweep failed", "error", err)
			} else if n > 0 {
				logger.Infof("payment monitor: %d pagamento(s) expirado(s)", n)
			}
		}
	}
}
