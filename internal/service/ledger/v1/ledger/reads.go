package ledger

import (
	"context"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/schedule/v1/schedule"
	"github.com/shopspring/decimal"
)

var earningKinds = []modelledger.EntryKind{
	modelledger.KindDistribution,
	modelledger.KindAffiliateBonus,
	modelledger.KindIntroducerBonus,
}

var commissionKinds = []modelledger.EntryKind{
	modelledger.KindAffiliateBonus,
	modelledger.KindIntroducerBonus,
}

// GetWallet returns the wallet of userID; a user without one sees zero balances.
func (l *Ledger) GetWallet(ctx context.Context, userID string) (*modelledger.Account, error) {
	account, err := l.storage.GetAccount(ctx, userID)
	if isNotFound(err) {
		return &modelledger.Account{UserID: userID}, nil
	}
	return account, err
}

// GetAsset returns the asset position with each effective lock and its current withdrawable amount.
func (l *Ledger) GetAsset(ctx context.Context, userID string) (*modeldto.AssetResponse, error) {
	asset, err := l.storage.GetAsset(ctx, userID)
	switch {
	case isNotFound(err):
		asset = &modelledger.AssetPosition{UserID: userID}
	case err != nil:
		return nil, err
	}
	locks, err := l.storage.ListDepositLocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	resp := modeldto.AssetResponse{Asset: *asset, Locks: make([]modeldto.LockView, 0, len(locks))}
	for _, lock := range locks {
		resp.Locks = append(resp.Locks, modeldto.LockView{DepositLock: lock, WithdrawableNow: schedule.WithdrawableNow(lock, now)})
	}
	return &resp, nil
}

// ListStatements returns matching entries, newest first.
func (l *Ledger) ListStatements(ctx context.Context, filter modelledger.EntryFilter) ([]modelledger.Entry, error) {
	return l.storage.ListEntries(ctx, filter)
}

// EarningsSummary totals distribution and bonus earnings of userID in [from, to).
func (l *Ledger) EarningsSummary(ctx context.Context, userID string, from, to time.Time) ([]modeldto.KindTotal, error) {
	entries, err := l.storage.ListEntries(ctx, modelledger.EntryFilter{UserID: userID, Kinds: earningKinds, From: from, To: to})
	if err != nil {
		return nil, err
	}
	totals := make(map[modelledger.EntryKind]decimal.Decimal, len(earningKinds))
	for _, e := range entries {
		totals[e.Kind] = totals[e.Kind].Add(e.Amount)
	}
	out := make([]modeldto.KindTotal, 0, len(earningKinds))
	for _, kind := range earningKinds {
		out = append(out, modeldto.KindTotal{Kind: kind, Total: totals[kind]})
	}
	return out, nil
}

// DailyCommission returns commission earned per calendar day in the ledger timezone, oldest day first.
func (l *Ledger) DailyCommission(ctx context.Context, userID string, from, to time.Time) ([]modeldto.DayTotal, error) {
	entries, err := l.storage.ListEntries(ctx, modelledger.EntryFilter{UserID: userID, Kinds: commissionKinds, From: from, To: to})
	if err != nil {
		return nil, err
	}
	var out []modeldto.DayTotal
	index := make(map[string]int)
	// entries arrive newest first
	for i := len(entries) - 1; i >= 0; i-- {
		day := entries[i].CreatedAt.In(l.cfg.Location).Format("2006-01-02")
		pos, ok := index[day]
		if !ok {
			pos = len(out)
			index[day] = pos
			out = append(out, modeldto.DayTotal{Day: day, Total: decimal.Zero})
		}
		out[pos].Total = out[pos].Total.Add(entries[i].Amount)
	}
	return out, nil
}
