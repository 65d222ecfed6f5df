// Package storage defines the ledger store contract.
package storage

import (
	"context"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/shopspring/decimal"
)

// Tx is the view of the store inside one all-or-nothing transaction.
// Lock* methods take a row lock that is held until the transaction ends.
type Tx interface {
	GetUser(ctx context.Context, userID string) (*modelledger.User, error)
	GetSuperuser(ctx context.Context) (*modelledger.User, error)
	MarkWelcomeBonusGranted(ctx context.Context, userID string) error
	// UpsertUser inserts user as given or refreshes the identity fields of an existing
	// record; verification state, the welcome flag and the creation time are kept.
	UpsertUser(ctx context.Context, user *modelledger.User) error
	LockUser(ctx context.Context, userID string) (*modelledger.User, error)
	SaveVerification(ctx context.Context, user *modelledger.User) error

	EnsureAccount(ctx context.Context, userID string) error
	LockAccount(ctx context.Context, userID string) (*modelledger.Account, error)
	SaveAccount(ctx context.Context, account *modelledger.Account) error
	// ResetAllAccounts zeroes every account and returns the accounts as they were, ordered by user id.
	ResetAllAccounts(ctx context.Context) ([]modelledger.Account, error)

	EnsureAsset(ctx context.Context, userID string) error
	LockAsset(ctx context.Context, userID string) (*modelledger.AssetPosition, error)
	SaveAsset(ctx context.Context, asset *modelledger.AssetPosition) error

	AddEntry(ctx context.Context, entry *modelledger.Entry) error
	LockEntry(ctx context.Context, entryID int64) (*modelledger.Entry, error)
	SaveEntry(ctx context.Context, entry *modelledger.Entry) error
	SumEntries(ctx context.Context, filter modelledger.EntryFilter) (decimal.Decimal, error)

	AddDepositLock(ctx context.Context, lock *modelledger.DepositLock) error
	// LockDepositLocks returns the user's effective locks oldest first: those whose
	// entry is approved or needs no approval.
	LockDepositLocks(ctx context.Context, userID string) ([]modelledger.DepositLock, error)
	SaveDepositLock(ctx context.Context, lock *modelledger.DepositLock) error

	AddWithdrawalRequest(ctx context.Context, request *modelledger.WithdrawalRequest) error
	LockWithdrawalRequest(ctx context.Context, requestID int64) (*modelledger.WithdrawalRequest, error)
	SaveWithdrawalRequest(ctx context.Context, request *modelledger.WithdrawalRequest) error

	// AcquireDistributionLock serializes distribution runs across processes.
	AcquireDistributionLock(ctx context.Context) error
	ListHolders(ctx context.Context) ([]modelledger.Holder, error)
}

// Reader serves the read side outside of transactions.
type Reader interface {
	GetUser(ctx context.Context, userID string) (*modelledger.User, error)
	ListDownline(ctx context.Context, sponsorIDs []string) ([]modelledger.User, error)
	GetAccount(ctx context.Context, userID string) (*modelledger.Account, error)
	GetAsset(ctx context.Context, userID string) (*modelledger.AssetPosition, error)
	SumAssets(ctx context.Context, userIDs []string) (decimal.Decimal, error)
	ListDepositLocks(ctx context.Context, userID string) ([]modelledger.DepositLock, error)
	ListEntries(ctx context.Context, filter modelledger.EntryFilter) ([]modelledger.Entry, error)
	GetWithdrawalRequest(ctx context.Context, requestID int64) (*modelledger.WithdrawalRequest, error)
}

// Reports keeps profit rate configuration and monthly performance figures.
type Reports interface {
	GetOperationalProfit(ctx context.Context, year, month int) (*modelledger.OperationalProfit, error)
	UpsertOperationalProfit(ctx context.Context, profit modelledger.OperationalProfit) error
	AddMonthlyProfit(ctx context.Context, profit modelledger.MonthlyProfit) error
	UpdateMonthlyProfit(ctx context.Context, profit modelledger.MonthlyProfit) error
	DeleteMonthlyProfit(ctx context.Context, year, month int) error
	ListMonthlyProfits(ctx context.Context, year int) ([]modelledger.MonthlyProfit, error)
}

// Storage is the full ledger store.
type Storage interface {
	Reader
	Reports
	// WithinTx runs fn in one transaction; fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
