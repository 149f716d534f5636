package service

import (
	"context"
	"time"

	"smartbank/internal/storage"
)

// LimitPolicy caps the cumulative amount an account may move out per UTC
// calendar day. Withdrawals and outbound transfers are tracked against the
// same limit value but in two independent windows, one per transaction kind.
type LimitPolicy struct {
	DailyLimit int64 // minor units
}

// WithinDailyLimit reports whether posting amount of the given kind would
// keep the account's total for the current UTC day at or under the cap.
// It must run inside the same atomic unit as the resulting insert, so that
// two concurrent operations cannot both pass the check before either commits.
func (p LimitPolicy) WithinDailyLimit(ctx context.Context, tx storage.Tx, accountID int64, kind string, amount int64, asOf time.Time) (bool, error) {
	total, err := tx.SumTransactionsSince(ctx, accountID, kind, startOfDayUTC(asOf))
	if err != nil {
		return false, err
	}
	return total+amount <= p.DailyLimit, nil
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
