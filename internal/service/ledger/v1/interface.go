package ledger

import (
	"context"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelqueue"
	"github.com/shopspring/decimal"
)

// Publisher receives ledger events after their transaction has committed.
type Publisher interface {
	Publish(event modelqueue.LedgerEvent)
}

// Ledger defines the balance operations and their read side.
type Ledger interface {
	Transfer(ctx context.Context, actor modelclaims.Actor, receiverID string, amount decimal.Decimal, description, reference string) (*modeldto.TransferResponse, error)
	PlaceAsset(ctx context.Context, actor modelclaims.Actor, amount decimal.Decimal) (*modelledger.Entry, error)
	ProcessPlaceAsset(ctx context.Context, actor modelclaims.Actor, entryID int64, action modelledger.Action) (*modelledger.Entry, error)
	WithdrawAsset(ctx context.Context, actor modelclaims.Actor, amount decimal.Decimal) (*modelledger.Entry, error)
	ProcessWithdrawalAsset(ctx context.Context, actor modelclaims.Actor, entryID int64, action modelledger.Action) (*modelledger.Entry, error)
	RequestWithdrawal(ctx context.Context, actor modelclaims.Actor, category modelledger.PointCategory, amount decimal.Decimal) (*modeldto.WithdrawalResponse, error)
	ProcessWithdrawalRequest(ctx context.Context, actor modelclaims.Actor, requestID int64, action modelledger.Action) (*modelledger.WithdrawalRequest, error)
	Convert(ctx context.Context, actor modelclaims.Actor, category modelledger.PointCategory, amount decimal.Decimal) (*modelledger.Account, error)
	GrantWelcomeBonus(ctx context.Context, actor modelclaims.Actor, userID string) (*modelledger.AssetPosition, error)

	RegisterUser(ctx context.Context, actor modelclaims.Actor, req modeldto.UserRequest) (*modelledger.User, error)
	ProcessVerification(ctx context.Context, actor modelclaims.Actor, userID string, action modelledger.Action, rejectReason string) (*modelledger.User, error)

	ResetAllBalances(ctx context.Context, actor modelclaims.Actor) (int64, error)
	SetupWallet(ctx context.Context, actor modelclaims.Actor, setup modeldto.SetupWalletRequest) (*modelledger.Account, error)
	ShareProfit(ctx context.Context, actor modelclaims.Actor, amount decimal.Decimal) (*modelledger.Account, error)

	GetWallet(ctx context.Context, userID string) (*modelledger.Account, error)
	GetAsset(ctx context.Context, userID string) (*modeldto.AssetResponse, error)
	ListStatements(ctx context.Context, filter modelledger.EntryFilter) ([]modelledger.Entry, error)
	EarningsSummary(ctx context.Context, userID string, from, to time.Time) ([]modeldto.KindTotal, error)
	DailyCommission(ctx context.Context, userID string, from, to time.Time) ([]modeldto.DayTotal, error)
}
