package referral

import (
	"context"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
)

// Referral reads the sponsor tree.
type Referral interface {
	DirectDownline(ctx context.Context, userID string) ([]modelledger.User, error)
	IndirectDownline(ctx context.Context, userID string, maxDepth int) ([][]modelledger.User, error)
	Network(ctx context.Context, userID string, maxDepth int) (*modeldto.Network, error)
}
