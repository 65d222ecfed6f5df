package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/schedule/v1/schedule"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	"github.com/shopspring/decimal"
)

var introducerTiers = []struct {
	below decimal.Decimal
	rate  decimal.Decimal
}{
	{below: decimal.NewFromInt(1000), rate: decimal.RequireFromString("0.02")},
	{below: decimal.NewFromInt(10000), rate: decimal.RequireFromString("0.025")},
}

var topIntroducerRate = decimal.RequireFromString("0.03")

// IntroducerRate returns the introducer bonus rate earned by a sponsor holding sponsorAsset.
func IntroducerRate(sponsorAsset decimal.Decimal) decimal.Decimal {
	if !sponsorAsset.IsPositive() {
		return decimal.Zero
	}
	for _, tier := range introducerTiers {
		if sponsorAsset.LessThan(tier.below) {
			return tier.rate
		}
	}
	return topIntroducerRate
}

// lockPendingEntry locks entryID and checks it is a pending entry of kind.
func lockPendingEntry(ctx context.Context, tx storage.Tx, entryID int64, kind modelledger.EntryKind) (*modelledger.Entry, error) {
	entry, err := tx.LockEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Kind != kind {
		return nil, &serviceErrors.InvalidArgumentError{Msg: fmt.Sprintf("entry %d is %s, not %s", entryID, entry.Kind, kind)}
	}
	if !entry.IsPending() {
		status := "no status"
		if entry.Status != nil {
			status = string(*entry.Status)
		}
		return nil, &serviceErrors.AlreadyProcessedError{Entity: "entry", ID: entryRef(entryID), Status: status}
	}
	return entry, nil
}

// ProcessPlaceAsset approves or rejects a pending placement.
// Approval credits the asset position and pays the sponsor's introducer bonus.
func (l *Ledger) ProcessPlaceAsset(ctx context.Context, actor modelclaims.Actor, entryID int64, action modelledger.Action) (*modelledger.Entry, error) {
	const op = "process asset placement"
	if err := requireStaff(actor, op); err != nil {
		return nil, err
	}
	if err := validateAction(action); err != nil {
		return nil, err
	}
	now := l.now()
	var entry *modelledger.Entry
	var bonus decimal.Decimal
	var sponsorID string
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		entry, err = lockPendingEntry(ctx, tx, entryID, modelledger.KindAssetPlacement)
		if err != nil {
			return err
		}
		if action == modelledger.ActionReject {
			account, err := lockAccount(ctx, tx, entry.UserID)
			if err != nil {
				return err
			}
			account.MasterBalance = account.MasterBalance.Add(entry.Amount)
			if err = tx.SaveAccount(ctx, account); err != nil {
				return err
			}
			entry.Status = statusPtr(modelledger.StatusRejected)
			return tx.SaveEntry(ctx, entry)
		}

		user, err := tx.GetUser(ctx, entry.UserID)
		if err != nil {
			return err
		}
		sponsorID = user.Sponsor()
		if sponsorID == user.ID {
			sponsorID = ""
		}
		if sponsorID != "" {
			if _, err = tx.GetUser(ctx, sponsorID); err != nil {
				if !isNotFound(err) {
					return err
				}
				l.log.Warn().Msg(fmt.Sprintf("sponsor %s of %s not found, introducer bonus skipped", sponsorID, user.ID))
				sponsorID = ""
			}
		}

		// assets are locked in ascending user id order
		assets := make(map[string]*modelledger.AssetPosition, 2)
		ids := []string{user.ID}
		if sponsorID != "" {
			ids = append(ids, sponsorID)
			sort.Strings(ids)
		}
		for _, id := range ids {
			if id == user.ID {
				if assets[id], err = lockAsset(ctx, tx, id); err != nil {
					return err
				}
				continue
			}
			asset, err := tx.LockAsset(ctx, id)
			switch {
			case isNotFound(err):
				asset = &modelledger.AssetPosition{UserID: id}
			case err != nil:
				return err
			}
			assets[id] = asset
		}

		var sponsorAsset decimal.Decimal
		if sponsorID != "" {
			sponsorAsset = assets[sponsorID].Amount
		}
		asset := assets[user.ID]
		asset.Amount = asset.Amount.Add(entry.Amount)
		if err = tx.SaveAsset(ctx, asset); err != nil {
			return err
		}
		entry.Status = statusPtr(modelledger.StatusApproved)
		if err = tx.SaveEntry(ctx, entry); err != nil {
			return err
		}

		if sponsorID == "" {
			return nil
		}
		bonus = modelledger.Round2(entry.Amount.Mul(IntroducerRate(sponsorAsset)))
		if !bonus.IsPositive() {
			return nil
		}
		sponsorAccount, err := lockAccount(ctx, tx, sponsorID)
		if err != nil {
			return err
		}
		sponsorAccount.IntroducerBalance = sponsorAccount.IntroducerBalance.Add(bonus)
		if err = tx.SaveAccount(ctx, sponsorAccount); err != nil {
			return err
		}
		return tx.AddEntry(ctx, &modelledger.Entry{
			UserID:      sponsorID,
			Kind:        modelledger.KindIntroducerBonus,
			Category:    modelledger.CategoryCommission,
			Amount:      bonus,
			Description: fmt.Sprintf("introducer bonus for placement of %s", user.ID),
			Reference:   entryRef(entry.ID),
			CreatedAt:   now,
		})
	})
	if err != nil {
		l.logFailure(op, actor.UserID, decimal.Zero, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("asset placement %d %s by %s", entryID, *entry.Status, actor.UserID))
	l.publish(op, entry.UserID, entry.Amount, entry.ID, string(*entry.Status), now)
	if bonus.IsPositive() {
		l.publish("introducer bonus", sponsorID, bonus, entry.ID, "", now)
	}
	return entry, nil
}

// ProcessWithdrawalAsset approves or rejects a pending asset withdrawal.
// Approval consumes unlocked capacity oldest lock first and credits profit balance.
func (l *Ledger) ProcessWithdrawalAsset(ctx context.Context, actor modelclaims.Actor, entryID int64, action modelledger.Action) (*modelledger.Entry, error) {
	const op = "process asset withdrawal"
	if err := requireStaff(actor, op); err != nil {
		return nil, err
	}
	if err := validateAction(action); err != nil {
		return nil, err
	}
	now := l.now()
	var entry *modelledger.Entry
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		entry, err = lockPendingEntry(ctx, tx, entryID, modelledger.KindAssetWithdrawal)
		if err != nil {
			return err
		}
		if action == modelledger.ActionReject {
			entry.Status = statusPtr(modelledger.StatusRejected)
			return tx.SaveEntry(ctx, entry)
		}
		asset, err := lockAsset(ctx, tx, entry.UserID)
		if err != nil {
			return err
		}
		if asset.Amount.LessThan(entry.Amount) {
			return &serviceErrors.InsufficientBalanceError{Category: string(modelledger.CategoryAsset), Available: asset.Amount, Requested: entry.Amount}
		}
		locks, err := tx.LockDepositLocks(ctx, entry.UserID)
		if err != nil {
			return err
		}
		touched, left, err := schedule.Consume(locks, entry.Amount, now)
		if err != nil {
			return err
		}
		if left.IsPositive() {
			return &serviceErrors.InsufficientUnlockedFundsError{Available: entry.Amount.Sub(left), Requested: entry.Amount}
		}
		for i := range touched {
			if err = tx.SaveDepositLock(ctx, &touched[i]); err != nil {
				return err
			}
		}
		asset.Amount = asset.Amount.Sub(entry.Amount)
		if err = tx.SaveAsset(ctx, asset); err != nil {
			return err
		}
		account, err := lockAccount(ctx, tx, entry.UserID)
		if err != nil {
			return err
		}
		account.ProfitBalance = account.ProfitBalance.Add(entry.Amount)
		if err = tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		entry.Status = statusPtr(modelledger.StatusApproved)
		return tx.SaveEntry(ctx, entry)
	})
	if err != nil {
		l.logFailure(op, actor.UserID, decimal.Zero, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("asset withdrawal %d %s by %s", entryID, *entry.Status, actor.UserID))
	l.publish(op, entry.UserID, entry.Amount, entry.ID, string(*entry.Status), now)
	return entry, nil
}

// ProcessWithdrawalRequest approves or rejects a pending payout request.
// Rejection restores the exact balances drawn at request time.
func (l *Ledger) ProcessWithdrawalRequest(ctx context.Context, actor modelclaims.Actor, requestID int64, action modelledger.Action) (*modelledger.WithdrawalRequest, error) {
	const op = "process withdrawal request"
	if err := requireStaff(actor, op); err != nil {
		return nil, err
	}
	if err := validateAction(action); err != nil {
		return nil, err
	}
	now := l.now()
	var request *modelledger.WithdrawalRequest
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		request, err = tx.LockWithdrawalRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != modelledger.StatusPending {
			return &serviceErrors.AlreadyProcessedError{Entity: "withdrawal request", ID: strconv.FormatInt(requestID, 10), Status: string(request.Status)}
		}
		entry, err := tx.LockEntry(ctx, request.EntryID)
		if err != nil {
			return err
		}
		status := modelledger.StatusApproved
		if action == modelledger.ActionReject {
			status = modelledger.StatusRejected
			account, err := lockAccount(ctx, tx, request.UserID)
			if err != nil {
				return err
			}
			if request.Category == modelledger.CategoryCommission {
				account.RestoreCommission(request.AffiliateDrawn, request.IntroducerDrawn)
			} else if err = account.Credit(request.Category, request.RequestedAmount); err != nil {
				return err
			}
			if err = tx.SaveAccount(ctx, account); err != nil {
				return err
			}
		}
		processedAt := now
		request.Status = status
		request.ProcessedAt = &processedAt
		if err = tx.SaveWithdrawalRequest(ctx, request); err != nil {
			return err
		}
		entry.Status = statusPtr(status)
		return tx.SaveEntry(ctx, entry)
	})
	if err != nil {
		l.logFailure(op, actor.UserID, decimal.Zero, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("withdrawal request %d %s by %s", requestID, request.Status, actor.UserID))
	l.publish(op, request.UserID, request.RequestedAmount, request.EntryID, string(request.Status), now)
	return request, nil
}

// GrantWelcomeBonus credits the one-time welcome grant to userID's asset position.
// The grant is locked for a full year.
func (l *Ledger) GrantWelcomeBonus(ctx context.Context, actor modelclaims.Actor, userID string) (*modelledger.AssetPosition, error) {
	const op = "grant welcome bonus"
	if err := requireStaff(actor, op); err != nil {
		return nil, err
	}
	amount := modelledger.Round2(l.cfg.WelcomeBonus)
	now := l.now()
	var asset *modelledger.AssetPosition
	var entry modelledger.Entry
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user.WelcomeBonusGranted {
			return &serviceErrors.AlreadyProcessedError{Entity: "welcome bonus of user", ID: userID, Status: "granted"}
		}
		// the grant earns daily profit, which needs a wallet to land in
		if _, err = lockAccount(ctx, tx, userID); err != nil {
			return err
		}
		asset, err = lockAsset(ctx, tx, userID)
		if err != nil {
			return err
		}
		asset.Amount = asset.Amount.Add(amount)
		asset.IsFreeGrant = true
		if err = tx.SaveAsset(ctx, asset); err != nil {
			return err
		}
		entry = modelledger.Entry{
			UserID:      userID,
			Kind:        modelledger.KindWelcomeBonus,
			Category:    modelledger.CategoryAsset,
			Amount:      amount,
			Description: "welcome bonus",
			CreatedAt:   now,
		}
		if err = tx.AddEntry(ctx, &entry); err != nil {
			return err
		}
		lock := modelledger.DepositLock{
			EntryID:     entry.ID,
			UserID:      userID,
			Locked6M:    decimal.Zero,
			Locked1Y:    amount,
			IsFreeGrant: true,
			CreatedAt:   now,
		}
		if err = tx.AddDepositLock(ctx, &lock); err != nil {
			return err
		}
		return tx.MarkWelcomeBonusGranted(ctx, userID)
	})
	if err != nil {
		l.logFailure(op, userID, amount, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("welcome bonus of %s granted to %s", amount.StringFixed(2), userID))
	l.publish(op, userID, amount, entry.ID, "", now)
	return asset, nil
}
