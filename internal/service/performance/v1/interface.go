package performance

import (
	"context"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/shopspring/decimal"
)

// Performance keeps the daily profit rates and finalized monthly figures.
type Performance interface {
	SetOperationalProfit(ctx context.Context, actor modelclaims.Actor, year, month int, rate decimal.Decimal) (*modelledger.OperationalProfit, error)
	GetOperationalProfit(ctx context.Context, year, month int) (*modelledger.OperationalProfit, error)
	CreateMonthlyProfit(ctx context.Context, actor modelclaims.Actor, year, month int, rate decimal.Decimal) (*modelledger.MonthlyProfit, error)
	UpdateMonthlyProfit(ctx context.Context, actor modelclaims.Actor, year, month int, rate decimal.Decimal) (*modelledger.MonthlyProfit, error)
	DeleteMonthlyProfit(ctx context.Context, actor modelclaims.Actor, year, month int) error
	ListMonthlyProfits(ctx context.Context, year int) ([]modelledger.MonthlyProfit, error)
	YearlyTotal(ctx context.Context, year int) (*modeldto.YearlyTotal, error)
}
