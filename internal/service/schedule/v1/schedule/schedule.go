// Package schedule computes how much of a deposit lock is withdrawable at a given moment.
package schedule

import (
	"fmt"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/shopspring/decimal"
)

const (
	// HalfYear is the age at which the 6-month bucket unlocks.
	HalfYear = 180 * 24 * time.Hour
	// FullYear is the age at which the 1-year bucket unlocks.
	FullYear = 365 * 24 * time.Hour
)

// Age returns the elapsed time since the lock origin.
func Age(lock modelledger.DepositLock, now time.Time) time.Duration {
	return now.Sub(lock.CreatedAt)
}

// WithdrawableNow returns the amount of lock that can leave the asset position at now.
func WithdrawableNow(lock modelledger.DepositLock, now time.Time) decimal.Decimal {
	age := Age(lock, now)
	remaining6M := lock.Locked6M.Sub(lock.Unlocked6M)
	remaining1Y := lock.Locked1Y.Sub(lock.Unlocked1Y)
	if lock.IsFreeGrant {
		if age < FullYear {
			return decimal.Zero
		}
		return remaining1Y
	}
	switch {
	case age < HalfYear:
		return decimal.Zero
	case age < FullYear:
		return remaining6M
	default:
		return remaining6M.Add(remaining1Y)
	}
}

// TotalWithdrawable sums WithdrawableNow over locks.
func TotalWithdrawable(locks []modelledger.DepositLock, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, l := range locks {
		total = total.Add(WithdrawableNow(l, now))
	}
	return total
}

// AdvanceUnlock records amount as withdrawn from lock.
// Mature locks take the amount into the 1-year counter, half-mature ones into the 6-month counter.
// Locks younger than HalfYear accept only a zero amount.
// The caller guarantees amount does not exceed WithdrawableNow.
func AdvanceUnlock(lock *modelledger.DepositLock, amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return fmt.Errorf("negative unlock amount %s", amount)
	}
	if amount.GreaterThan(WithdrawableNow(*lock, now)) {
		return fmt.Errorf("unlock amount %s exceeds withdrawable %s of lock %d", amount, WithdrawableNow(*lock, now), lock.ID)
	}
	age := Age(*lock, now)
	switch {
	case age >= FullYear:
		// the 1-year counter fills first; overflow goes to the 6-month one so neither exceeds its bucket
		into1Y := decimal.Min(amount, lock.Locked1Y.Sub(lock.Unlocked1Y))
		lock.Unlocked1Y = lock.Unlocked1Y.Add(into1Y)
		lock.Unlocked6M = lock.Unlocked6M.Add(amount.Sub(into1Y))
	case age >= HalfYear:
		lock.Unlocked6M = lock.Unlocked6M.Add(amount)
	default:
		if !amount.IsZero() {
			return fmt.Errorf("lock %d is not unlocked yet", lock.ID)
		}
	}
	return nil
}

// Consume walks locks oldest first and deducts up to amount of withdrawable capacity.
// It returns the touched locks and the part of amount that could not be covered.
func Consume(locks []modelledger.DepositLock, amount decimal.Decimal, now time.Time) ([]modelledger.DepositLock, decimal.Decimal, error) {
	var touched []modelledger.DepositLock
	left := amount
	for i := range locks {
		if !left.IsPositive() {
			break
		}
		available := WithdrawableNow(locks[i], now)
		if !available.IsPositive() {
			continue
		}
		take := decimal.Min(available, left)
		lock := locks[i]
		if err := AdvanceUnlock(&lock, take, now); err != nil {
			return nil, left, err
		}
		touched = append(touched, lock)
		left = left.Sub(take)
	}
	return touched, left, nil
}
