package distributor

import (
	"context"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/shopspring/decimal"
)

// Distributor credits daily profit to asset holders and cascades affiliate bonuses.
type Distributor interface {
	Distribute(ctx context.Context, dailyProfitRate decimal.Decimal) (*modeldto.DistributionReport, error)
	RunDistribution(ctx context.Context, actor modelclaims.Actor) (*modeldto.DistributionReport, error)
}
