package schedule

import (
	"testing"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var origin = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func days(n int) time.Time {
	return origin.Add(time.Duration(n) * 24 * time.Hour)
}

func placementLock(amount string) modelledger.DepositLock {
	a := decimal.RequireFromString(amount)
	half := modelledger.Round2(a.Div(decimal.NewFromInt(2)))
	return modelledger.DepositLock{
		ID:        1,
		Locked6M:  half,
		Locked1Y:  a.Sub(half),
		CreatedAt: origin,
	}
}

func TestWithdrawableNow(t *testing.T) {
	grant := modelledger.DepositLock{Locked1Y: decimal.NewFromInt(100), IsFreeGrant: true, CreatedAt: origin}
	tests := []struct {
		name string
		lock modelledger.DepositLock
		now  time.Time
		want string
	}{
		{name: "fresh placement", lock: placementLock("120"), now: days(10), want: "0"},
		{name: "one day before half year", lock: placementLock("120"), now: days(179), want: "0"},
		{name: "half year", lock: placementLock("120"), now: days(180), want: "60"},
		{name: "200 days", lock: placementLock("120"), now: days(200), want: "60"},
		{name: "full year", lock: placementLock("120"), now: days(365), want: "120"},
		{name: "grant at 200 days", lock: grant, now: days(200), want: "0"},
		{name: "grant at full year", lock: grant, now: days(365), want: "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WithdrawableNow(tt.lock, tt.now)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestAdvanceUnlock_HalfYearDrainsSixMonthBucket(t *testing.T) {
	lock := placementLock("120")
	assert.True(t, decimal.NewFromInt(60).Equal(lock.Locked6M))
	assert.True(t, decimal.NewFromInt(60).Equal(lock.Locked1Y))

	now := days(200)
	require.True(t, decimal.NewFromInt(60).Equal(WithdrawableNow(lock, now)))
	require.NoError(t, AdvanceUnlock(&lock, decimal.NewFromInt(60), now))
	assert.True(t, decimal.NewFromInt(60).Equal(lock.Unlocked6M))
	assert.True(t, lock.Unlocked1Y.IsZero())
	assert.True(t, WithdrawableNow(lock, now).IsZero())
	assert.True(t, WithdrawableNow(lock, days(364)).IsZero())
	assert.True(t, decimal.NewFromInt(60).Equal(WithdrawableNow(lock, days(365))))
}

func TestAdvanceUnlock_MatureLockKeepsBucketsBounded(t *testing.T) {
	lock := placementLock("120")
	now := days(400)
	require.NoError(t, AdvanceUnlock(&lock, decimal.NewFromInt(100), now))
	assert.True(t, lock.Unlocked1Y.Equal(lock.Locked1Y))
	assert.True(t, decimal.NewFromInt(40).Equal(lock.Unlocked6M))
	assert.True(t, decimal.NewFromInt(20).Equal(WithdrawableNow(lock, now)))
}

func TestAdvanceUnlock_Rejects(t *testing.T) {
	lock := placementLock("120")
	assert.Error(t, AdvanceUnlock(&lock, decimal.NewFromInt(10), days(30)))
	assert.Error(t, AdvanceUnlock(&lock, decimal.NewFromInt(70), days(200)))
	assert.Error(t, AdvanceUnlock(&lock, decimal.NewFromInt(-10), days(200)))
	assert.True(t, lock.Unlocked6M.IsZero())
}

func TestAdvanceUnlock_Monotonic(t *testing.T) {
	lock := placementLock("1000")
	prev6M, prev1Y := lock.Unlocked6M, lock.Unlocked1Y
	step := decimal.NewFromInt(50)
	for d := 180; d <= 500; d += 20 {
		now := days(d)
		before := WithdrawableNow(lock, now)
		if before.LessThan(step) {
			continue
		}
		require.NoError(t, AdvanceUnlock(&lock, step, now))
		assert.True(t, lock.Unlocked6M.GreaterThanOrEqual(prev6M))
		assert.True(t, lock.Unlocked1Y.GreaterThanOrEqual(prev1Y))
		assert.True(t, lock.Unlocked6M.LessThanOrEqual(lock.Locked6M))
		assert.True(t, lock.Unlocked1Y.LessThanOrEqual(lock.Locked1Y))
		assert.True(t, before.Sub(step).Equal(WithdrawableNow(lock, now)))
		prev6M, prev1Y = lock.Unlocked6M, lock.Unlocked1Y
	}
}

func TestConsume_OldestFirst(t *testing.T) {
	older := placementLock("100")
	older.ID = 1
	newer := placementLock("100")
	newer.ID = 2
	newer.CreatedAt = days(10)

	touched, left, err := Consume([]modelledger.DepositLock{older, newer}, decimal.NewFromInt(70), days(185))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(left), "newer lock is 175 days old and offers nothing")
	require.Len(t, touched, 1)
	assert.Equal(t, int64(1), touched[0].ID)
	assert.True(t, decimal.NewFromInt(50).Equal(touched[0].Unlocked6M))

	touched, left, err = Consume([]modelledger.DepositLock{older, newer}, decimal.NewFromInt(70), days(195))
	require.NoError(t, err)
	assert.True(t, left.IsZero())
	require.Len(t, touched, 2)
	assert.True(t, decimal.NewFromInt(50).Equal(touched[0].Unlocked6M))
	assert.True(t, decimal.NewFromInt(20).Equal(touched[1].Unlocked6M))
}
