// Package distributor implements the daily profit distribution batch.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelqueue"
	distributorService "github.com/danilovkiri/dk-go-mmsledger/internal/service/distributor/v1"
	ledgerService "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
)

var (
	hundred = decimal.NewFromInt(100)
	// HighTierAsset is the asset amount from which holders keep the larger share.
	HighTierAsset = decimal.NewFromInt(10000)
	HighTierRatio = decimal.RequireFromString("0.80")
	BaseRatio     = decimal.RequireFromString("0.70")
	// L1Rate and L2Rate apply to the holder's raw profit.
	L1Rate = decimal.RequireFromString("0.05")
	L2Rate = decimal.RequireFromString("0.02")
)

// Distributor runs distribution batches one at a time.
type Distributor struct {
	storage   storage.Storage
	publisher ledgerService.Publisher
	cfg       *config.LedgerConfig
	log       *zerolog.Logger
	now       func() time.Time
	group     singleflight.Group
}

var _ distributorService.Distributor = (*Distributor)(nil)

// InitService builds a distributor; a nil publisher disables notifications.
func InitService(st storage.Storage, pub ledgerService.Publisher, cfg *config.LedgerConfig, log *zerolog.Logger) (*Distributor, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if cfg == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil ledger config was passed to service initializer"}
	}
	if log == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil logger was passed to service initializer"}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Distributor{
		storage:   st,
		publisher: pub,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}, nil
}

// SetClock replaces the time source.
func (d *Distributor) SetClock(now func() time.Time) {
	d.now = now
}

// SplitRatio returns the share of raw profit a holder keeps.
func SplitRatio(asset decimal.Decimal) decimal.Decimal {
	if asset.GreaterThanOrEqual(HighTierAsset) {
		return HighTierRatio
	}
	return BaseRatio
}

// RunDistribution resolves the rate of the current month and distributes it.
func (d *Distributor) RunDistribution(ctx context.Context, actor modelclaims.Actor) (*modeldto.DistributionReport, error) {
	if !actor.IsStaff {
		return nil, &serviceErrors.PermissionDeniedError{UserID: actor.UserID, Operation: "trigger distribution"}
	}
	local := d.now().In(d.cfg.Location)
	profit, err := d.storage.GetOperationalProfit(ctx, local.Year(), int(local.Month()))
	if err != nil {
		var notFound *storageErrors.NotFoundError
		if errors.As(err, &notFound) {
			err = &serviceErrors.ConfigurationMissingError{Msg: fmt.Sprintf("no daily profit rate configured for %d-%02d", local.Year(), local.Month())}
		}
		d.log.Error().Err(err).Str("operation", "distribution").Str("user", actor.UserID).Msg("distribution aborted")
		return nil, err
	}
	d.log.Info().Msg(fmt.Sprintf("distribution triggered by %s at %s%%", actor.UserID, profit.DailyProfitRate))
	return d.Distribute(ctx, profit.DailyProfitRate)
}

// Distribute credits rate percent of every eligible asset in one transaction.
// Concurrent callers share the result of the run in flight.
func (d *Distributor) Distribute(ctx context.Context, dailyProfitRate decimal.Decimal) (*modeldto.DistributionReport, error) {
	if !dailyProfitRate.IsPositive() {
		d.log.Info().Msg(fmt.Sprintf("distribution skipped, daily profit rate is %s", dailyProfitRate))
		return &modeldto.DistributionReport{Status: StatusSkipped, DailyProfitRate: dailyProfitRate}, nil
	}
	v, err, shared := d.group.Do("distribution", func() (interface{}, error) {
		return d.distribute(ctx, dailyProfitRate)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		d.log.Warn().Msg("distribution request joined a run already in progress")
	}
	report := *v.(*modeldto.DistributionReport)
	return &report, nil
}

// delta accumulates what one account receives in a run.
type delta struct {
	profit    decimal.Decimal
	affiliate decimal.Decimal
}

func (d *Distributor) distribute(ctx context.Context, rate decimal.Decimal) (*modeldto.DistributionReport, error) {
	runID := uuid.New().String()
	now := d.now()
	report := &modeldto.DistributionReport{
		RunID:            runID,
		Status:           StatusCompleted,
		DailyProfitRate:  rate,
		TotalRawProfit:   decimal.Zero,
		TotalDistributed: decimal.Zero,
		L1Total:          decimal.Zero,
		L2Total:          decimal.Zero,
	}
	err := d.storage.WithinTx(ctx, func(tx storage.Tx) error {
		if err := tx.AcquireDistributionLock(ctx); err != nil {
			return err
		}
		holders, err := tx.ListHolders(ctx)
		if err != nil {
			return err
		}
		byID := make(map[string]modelledger.Holder, len(holders))
		for _, h := range holders {
			byID[h.User.ID] = h
		}

		deltas := make(map[string]*delta)
		var entries []modelledger.Entry
		credit := func(userID string, kind modelledger.EntryKind, amount decimal.Decimal, description string) {
			dl, ok := deltas[userID]
			if !ok {
				dl = &delta{}
				deltas[userID] = dl
			}
			category := modelledger.CategoryProfit
			if kind == modelledger.KindAffiliateBonus {
				category = modelledger.CategoryCommission
				dl.affiliate = dl.affiliate.Add(amount)
			} else {
				dl.profit = dl.profit.Add(amount)
			}
			entries = append(entries, modelledger.Entry{
				UserID:      userID,
				Kind:        kind,
				Category:    category,
				Amount:      amount,
				Description: description,
				Reference:   runID,
				CreatedAt:   now,
			})
		}
		skip := func(userID, reason string) {
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons, modeldto.SkipReason{UserID: userID, Reason: reason})
		}
		// eligible reports whether id can receive an affiliate bonus
		eligible := func(id string) bool {
			h, ok := byID[id]
			return ok && h.Account != nil
		}

		for _, h := range holders {
			user := h.User
			if h.Account == nil {
				skip(user.ID, "wallet missing")
				continue
			}
			raw := modelledger.Round2(h.Asset.Amount.Mul(rate).Div(hundred))
			if !raw.IsPositive() {
				skip(user.ID, "profit rounds to zero")
				continue
			}
			share := modelledger.Round2(raw.Mul(SplitRatio(h.Asset.Amount)))
			credit(user.ID, modelledger.KindDistribution, share, fmt.Sprintf("daily profit %s%% on %s", rate, h.Asset.Amount.StringFixed(2)))
			report.UsersCredited++
			report.TotalRawProfit = report.TotalRawProfit.Add(raw)
			report.TotalDistributed = report.TotalDistributed.Add(share)

			l1 := user.Sponsor()
			if l1 == "" || l1 == user.ID || !eligible(l1) {
				continue
			}
			bonus := modelledger.Round2(raw.Mul(L1Rate))
			if !bonus.IsPositive() {
				continue
			}
			credit(l1, modelledger.KindAffiliateBonus, bonus, fmt.Sprintf("level 1 affiliate bonus from %s", user.ID))
			report.L1Bonuses++
			report.L1Total = report.L1Total.Add(bonus)

			// level 2 is paid only through a level 1 upline that was paid itself
			l2 := byID[l1].User.Sponsor()
			if l2 == "" || l2 == user.ID || l2 == l1 || !eligible(l2) {
				continue
			}
			if bonus = modelledger.Round2(raw.Mul(L2Rate)); bonus.IsPositive() {
				credit(l2, modelledger.KindAffiliateBonus, bonus, fmt.Sprintf("level 2 affiliate bonus from %s", user.ID))
				report.L2Bonuses++
				report.L2Total = report.L2Total.Add(bonus)
			}
		}

		ids := make([]string, 0, len(deltas))
		for id := range deltas {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			account, err := tx.LockAccount(ctx, id)
			if err != nil {
				return err
			}
			account.ProfitBalance = account.ProfitBalance.Add(deltas[id].profit)
			account.AffiliateBalance = account.AffiliateBalance.Add(deltas[id].affiliate)
			if err = tx.SaveAccount(ctx, account); err != nil {
				return err
			}
		}
		for i := range entries {
			if err = tx.AddEntry(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		d.log.Error().Err(err).Str("operation", "distribution").Str("run", runID).Str("rate", rate.String()).Msg("distribution failed")
		return nil, err
	}
	d.log.Info().Msg(fmt.Sprintf("distribution %s done: %d users credited with %s, %d L1 and %d L2 bonuses, %d skipped",
		runID, report.UsersCredited, report.TotalDistributed.StringFixed(2), report.L1Bonuses, report.L2Bonuses, report.Skipped))
	if d.publisher != nil {
		d.publisher.Publish(modelqueue.LedgerEvent{
			ID:          uuid.New().String(),
			Operation:   "distribution",
			Amount:      report.TotalDistributed,
			Status:      runID,
			CommittedAt: now,
		})
	}
	return report, nil
}
