// Package ledger implements balance operations on top of the ledger store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelqueue"
	ledgerService "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// MinimumAmount applies to placements, asset withdrawals and payout requests.
	MinimumAmount = decimal.NewFromInt(50)
	// WithdrawalFeeRate is charged on profit and commission payouts.
	WithdrawalFeeRate = decimal.RequireFromString("0.03")
	// DailyCommissionConversionLimit caps commission-to-master conversions per calendar day.
	DailyCommissionConversionLimit = decimal.NewFromInt(50)
)

// Ledger runs every balance mutation inside one store transaction.
type Ledger struct {
	storage   storage.Storage
	publisher ledgerService.Publisher
	cfg       *config.LedgerConfig
	log       *zerolog.Logger
	now       func() time.Time
}

var _ ledgerService.Ledger = (*Ledger)(nil)

type nopPublisher struct{}

func (nopPublisher) Publish(modelqueue.LedgerEvent) {}

// InitService builds a ledger; a nil publisher disables notifications.
func InitService(st storage.Storage, pub ledgerService.Publisher, cfg *config.LedgerConfig, log *zerolog.Logger) (*Ledger, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if cfg == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil ledger config was passed to service initializer"}
	}
	if log == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil logger was passed to service initializer"}
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Ledger{
		storage:   st,
		publisher: pub,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}, nil
}

// SetClock replaces the time source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Ledger) logFailure(operation, userID string, amount decimal.Decimal, err error) {
	l.log.Error().Err(err).
		Str("operation", operation).
		Str("user", userID).
		Str("amount", amount.StringFixed(2)).
		Msg(fmt.Sprintf("%s failed for %s", operation, userID))
}

func (l *Ledger) publish(operation, userID string, amount decimal.Decimal, entryID int64, status string, at time.Time) {
	l.publisher.Publish(modelqueue.LedgerEvent{
		ID:          uuid.New().String(),
		Operation:   operation,
		UserID:      userID,
		Amount:      amount,
		EntryID:     entryID,
		Status:      status,
		CommittedAt: at,
	})
}

func requireStaff(actor modelclaims.Actor, operation string) error {
	if !actor.IsStaff {
		return &serviceErrors.PermissionDeniedError{UserID: actor.UserID, Operation: operation}
	}
	return nil
}

func validateAction(action modelledger.Action) error {
	if action != modelledger.ActionApprove && action != modelledger.ActionReject {
		return &serviceErrors.InvalidArgumentError{Msg: fmt.Sprintf("unknown action %q", action)}
	}
	return nil
}

// validatePositive rejects non-positive amounts and sub-cent precision.
func validatePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &serviceErrors.InvalidAmountError{Amount: amount, Reason: "must be positive"}
	}
	if !amount.Equal(modelledger.Round2(amount)) {
		return &serviceErrors.InvalidAmountError{Amount: amount, Reason: "more than two decimal places"}
	}
	return nil
}

// validateStep enforces the minimum and the multiple-of-10 rule.
func validateStep(amount decimal.Decimal) error {
	if err := validatePositive(amount); err != nil {
		return err
	}
	if amount.LessThan(MinimumAmount) {
		return &serviceErrors.InvalidAmountError{Amount: amount, Reason: fmt.Sprintf("minimum is %s", MinimumAmount)}
	}
	if !modelledger.IsMultipleOfTen(amount) {
		return &serviceErrors.InvalidAmountError{Amount: amount, Reason: "must be a multiple of 10"}
	}
	return nil
}

func validatePayoutCategory(category modelledger.PointCategory) error {
	if category != modelledger.CategoryProfit && category != modelledger.CategoryCommission {
		return &serviceErrors.InvalidArgumentError{Msg: fmt.Sprintf("category %s is not allowed here", category)}
	}
	return nil
}

// lockAccounts ensures and locks the accounts of userIDs in ascending id order.
func lockAccounts(ctx context.Context, tx storage.Tx, userIDs ...string) (map[string]*modelledger.Account, error) {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	accounts := make(map[string]*modelledger.Account, len(ids))
	for _, id := range ids {
		if _, ok := accounts[id]; ok {
			continue
		}
		if err := tx.EnsureAccount(ctx, id); err != nil {
			return nil, err
		}
		account, err := tx.LockAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = account
	}
	return accounts, nil
}

func lockAccount(ctx context.Context, tx storage.Tx, userID string) (*modelledger.Account, error) {
	accounts, err := lockAccounts(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return accounts[userID], nil
}

func lockAsset(ctx context.Context, tx storage.Tx, userID string) (*modelledger.AssetPosition, error) {
	if err := tx.EnsureAsset(ctx, userID); err != nil {
		return nil, err
	}
	return tx.LockAsset(ctx, userID)
}

// dayBounds returns the calendar day containing t in the ledger timezone.
func (l *Ledger) dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(l.cfg.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.cfg.Location)
	return start, start.AddDate(0, 0, 1)
}

func statusPtr(s modelledger.RequestStatus) *modelledger.RequestStatus {
	return &s
}

func entryRef(id int64) string {
	return strconv.FormatInt(id, 10)
}

func isNotFound(err error) bool {
	var notFound *storageErrors.NotFoundError
	return errors.As(err, &notFound)
}
