// Package performance manages profit rate configuration and monthly reports.
package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	performanceService "github.com/danilovkiri/dk-go-mmsledger/internal/service/performance/v1"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Performance implements performanceService.Performance on top of the report store.
type Performance struct {
	storage storage.Reports
	log     *zerolog.Logger
	now     func() time.Time
}

var _ performanceService.Performance = (*Performance)(nil)

// InitService builds the performance service.
func InitService(st storage.Reports, log *zerolog.Logger) (*Performance, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if log == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil logger was passed to service initializer"}
	}
	return &Performance{storage: st, log: log, now: time.Now}, nil
}

func validatePeriod(year, month int) error {
	if year < 2000 || year > 9999 {
		return &serviceErrors.InvalidArgumentError{Msg: fmt.Sprintf("year %d is out of range", year)}
	}
	if month < 1 || month > 12 {
		return &serviceErrors.InvalidArgumentError{Msg: fmt.Sprintf("month %d is out of range", month)}
	}
	return nil
}

func validateRate(rate decimal.Decimal) error {
	if !rate.Equal(modelledger.Round2(rate)) {
		return &serviceErrors.InvalidAmountError{Amount: rate, Reason: "rate has more than two decimal places"}
	}
	return nil
}

func requireTrader(actor modelclaims.Actor, operation string) error {
	if !actor.IsTrader {
		return &serviceErrors.PermissionDeniedError{UserID: actor.UserID, Operation: operation}
	}
	return nil
}

// SetOperationalProfit creates or replaces the daily profit rate of a month.
func (p *Performance) SetOperationalProfit(ctx context.Context, actor modelclaims.Actor, year, month int, rate decimal.Decimal) (*modelledger.OperationalProfit, error) {
	if !actor.IsStaff {
		return nil, &serviceErrors.PermissionDeniedError{UserID: actor.UserID, Operation: "set operational profit"}
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	if rate.IsNegative() {
		return nil, &serviceErrors.InvalidAmountError{Amount: rate, Reason: "daily profit rate cannot be negative"}
	}
	profit := modelledger.OperationalProfit{Year: year, Month: month, DailyProfitRate: rate, UpdatedAt: p.now()}
	if err := p.storage.UpsertOperationalProfit(ctx, profit); err != nil {
		p.log.Error().Err(err).Str("operation", "set operational profit").Str("user", actor.UserID).Str("amount", rate.String()).Msg("update failed")
		return nil, err
	}
	p.log.Info().Msg(fmt.Sprintf("daily profit rate for %d-%02d set to %s%% by %s", year, month, rate, actor.UserID))
	return &profit, nil
}

// GetOperationalProfit returns the rate of a month or a storage NotFoundError.
func (p *Performance) GetOperationalProfit(ctx context.Context, year, month int) (*modelledger.OperationalProfit, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	return p.storage.GetOperationalProfit(ctx, year, month)
}

func (p *Performance) CreateMonthlyProfit(ctx context.Context, actor modelclaims.Actor, year, month int, rate decimal.Decimal) (*modelledger.MonthlyProfit, error) {
	if err := requireTrader(actor, "create monthly profit"); err != nil {
		return nil, err
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	profit := modelledger.MonthlyProfit{Year: year, Month: month, ProfitRate: rate, UpdatedAt: p.now()}
	if err := p.storage.AddMonthlyProfit(ctx, profit); err != nil {
		p.log.Error().Err(err).Str("operation", "create monthly profit").Str("user", actor.UserID).Str("amount", rate.String()).Msg("insert failed")
		return nil, err
	}
	p.log.Info().Msg(fmt.Sprintf("monthly profit %d-%02d recorded as %s%%", year, month, rate))
	return &profit, nil
}

func (p *Performance) UpdateMonthlyProfit(ctx context.Context, actor modelclaims.Actor, year, month int, rate decimal.Decimal) (*modelledger.MonthlyProfit, error) {
	if err := requireTrader(actor, "update monthly profit"); err != nil {
		return nil, err
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	profit := modelledger.MonthlyProfit{Year: year, Month: month, ProfitRate: rate, UpdatedAt: p.now()}
	if err := p.storage.UpdateMonthlyProfit(ctx, profit); err != nil {
		p.log.Error().Err(err).Str("operation", "update monthly profit").Str("user", actor.UserID).Str("amount", rate.String()).Msg("update failed")
		return nil, err
	}
	return &profit, nil
}

func (p *Performance) DeleteMonthlyProfit(ctx context.Context, actor modelclaims.Actor, year, month int) error {
	if err := requireTrader(actor, "delete monthly profit"); err != nil {
		return err
	}
	if err := validatePeriod(year, month); err != nil {
		return err
	}
	if err := p.storage.DeleteMonthlyProfit(ctx, year, month); err != nil {
		p.log.Error().Err(err).Str("operation", "delete monthly profit").Str("user", actor.UserID).Msg("delete failed")
		return err
	}
	p.log.Info().Msg(fmt.Sprintf("monthly profit %d-%02d deleted by %s", year, month, actor.UserID))
	return nil
}

// ListMonthlyProfits returns the figures of a year ordered by month; year 0 lists everything.
func (p *Performance) ListMonthlyProfits(ctx context.Context, year int) ([]modelledger.MonthlyProfit, error) {
	return p.storage.ListMonthlyProfits(ctx, year)
}

// YearlyTotal sums the monthly rates of a year.
func (p *Performance) YearlyTotal(ctx context.Context, year int) (*modeldto.YearlyTotal, error) {
	if year == 0 {
		return nil, &serviceErrors.InvalidArgumentError{Msg: "year is required"}
	}
	profits, err := p.storage.ListMonthlyProfits(ctx, year)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, profit := range profits {
		total = total.Add(profit.ProfitRate)
	}
	return &modeldto.YearlyTotal{Year: year, TotalProfitRate: total}, nil
}
