package ledger

import (
	"context"
	"fmt"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/schedule/v1/schedule"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	"github.com/shopspring/decimal"
)

// Transfer moves master balance from the actor to receiverID.
func (l *Ledger) Transfer(ctx context.Context, actor modelclaims.Actor, receiverID string, amount decimal.Decimal, description, reference string) (*modeldto.TransferResponse, error) {
	const op = "transfer"
	if err := validatePositive(amount); err != nil {
		return nil, err
	}
	if receiverID == "" || receiverID == actor.UserID {
		return nil, &serviceErrors.InvalidArgumentError{Msg: "receiver must be another user"}
	}
	now := l.now()
	var resp modeldto.TransferResponse
	var senderEntry modelledger.Entry
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUser(ctx, receiverID); err != nil {
			return err
		}
		accounts, err := lockAccounts(ctx, tx, actor.UserID, receiverID)
		if err != nil {
			return err
		}
		sender, receiver := accounts[actor.UserID], accounts[receiverID]
		if sender.MasterBalance.LessThan(amount) {
			return &serviceErrors.InsufficientBalanceError{Category: string(modelledger.CategoryMaster), Available: sender.MasterBalance, Requested: amount}
		}
		sender.MasterBalance = sender.MasterBalance.Sub(amount)
		receiver.MasterBalance = receiver.MasterBalance.Add(amount)
		if err = tx.SaveAccount(ctx, sender); err != nil {
			return err
		}
		if err = tx.SaveAccount(ctx, receiver); err != nil {
			return err
		}
		if description == "" {
			description = fmt.Sprintf("transfer to %s", receiverID)
		}
		senderEntry = modelledger.Entry{
			UserID:      actor.UserID,
			Kind:        modelledger.KindTransfer,
			Category:    modelledger.CategoryMaster,
			Amount:      amount.Neg(),
			Description: description,
			Reference:   reference,
			CreatedAt:   now,
		}
		if err = tx.AddEntry(ctx, &senderEntry); err != nil {
			return err
		}
		receiverEntry := modelledger.Entry{
			UserID:      receiverID,
			Kind:        modelledger.KindTransfer,
			Category:    modelledger.CategoryMaster,
			Amount:      amount,
			Description: fmt.Sprintf("transfer from %s", actor.UserID),
			Reference:   reference,
			CreatedAt:   now,
		}
		if err = tx.AddEntry(ctx, &receiverEntry); err != nil {
			return err
		}
		resp = modeldto.TransferResponse{Sender: *sender, Receiver: *receiver}
		return nil
	})
	if err != nil {
		l.logFailure(op, actor.UserID, amount, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("transfer of %s done from %s to %s", amount.StringFixed(2), actor.UserID, receiverID))
	l.publish(op, actor.UserID, amount, senderEntry.ID, "", now)
	return &resp, nil
}

// PlaceAsset debits master balance into a pending placement with its deposit lock.
func (l *Ledger) PlaceAsset(ctx context.Context, actor modelclaims.Actor, amount decimal.Decimal) (*modelledger.Entry, error) {
	const op = "place asset"
	if err := validateStep(amount); err != nil {
		return nil, err
	}
	now := l.now()
	var entry modelledger.Entry
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		user, err := tx.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if !user.IsVerified() {
			return &serviceErrors.UserNotVerifiedError{UserID: user.ID}
		}
		if err = tx.EnsureAsset(ctx, user.ID); err != nil {
			return err
		}
		account, err := lockAccount(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		if account.MasterBalance.LessThan(amount) {
			return &serviceErrors.InsufficientBalanceError{Category: string(modelledger.CategoryMaster), Available: account.MasterBalance, Requested: amount}
		}
		account.MasterBalance = account.MasterBalance.Sub(amount)
		if err = tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		entry = modelledger.Entry{
			UserID:      user.ID,
			Kind:        modelledger.KindAssetPlacement,
			Category:    modelledger.CategoryAsset,
			Amount:      amount,
			Status:      statusPtr(modelledger.StatusPending),
			Description: "asset placement",
			CreatedAt:   now,
		}
		if err = tx.AddEntry(ctx, &entry); err != nil {
			return err
		}
		half := modelledger.Round2(amount.Div(decimal.NewFromInt(2)))
		lock := modelledger.DepositLock{
			EntryID:   entry.ID,
			UserID:    user.ID,
			Locked6M:  half,
			Locked1Y:  amount.Sub(half),
			CreatedAt: now,
		}
		return tx.AddDepositLock(ctx, &lock)
	})
	if err != nil {
		l.logFailure(op, actor.UserID, amount, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("asset placement %d of %s requested by %s", entry.ID, amount.StringFixed(2), actor.UserID))
	l.publish(op, actor.UserID, amount, entry.ID, string(modelledger.StatusPending), now)
	return &entry, nil
}

// WithdrawAsset files a pending asset withdrawal; balances move on approval.
func (l *Ledger) WithdrawAsset(ctx context.Context, actor modelclaims.Actor, amount decimal.Decimal) (*modelledger.Entry, error) {
	const op = "withdraw asset"
	if !amount.IsPositive() {
		return nil, &serviceErrors.InvalidAmountError{Amount: amount, Reason: "must be positive"}
	}
	now := l.now()
	var entry modelledger.Entry
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		user, err := tx.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if !user.IsVerified() {
			return &serviceErrors.UserNotVerifiedError{UserID: user.ID}
		}
		asset, err := lockAsset(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		locks, err := tx.LockDepositLocks(ctx, user.ID)
		if err != nil {
			return err
		}
		withdrawable := schedule.TotalWithdrawable(locks, now)
		if withdrawable.LessThan(amount) {
			return &serviceErrors.InsufficientUnlockedFundsError{Available: withdrawable, Requested: amount}
		}
		if asset.Amount.LessThan(amount) {
			return &serviceErrors.InsufficientBalanceError{Category: string(modelledger.CategoryAsset), Available: asset.Amount, Requested: amount}
		}
		if err = validateStep(amount); err != nil {
			return err
		}
		entry = modelledger.Entry{
			UserID:      user.ID,
			Kind:        modelledger.KindAssetWithdrawal,
			Category:    modelledger.CategoryAsset,
			Amount:      amount,
			Status:      statusPtr(modelledger.StatusPending),
			Description: "asset withdrawal",
			CreatedAt:   now,
		}
		return tx.AddEntry(ctx, &entry)
	})
	if err != nil {
		l.logFailure(op, actor.UserID, amount, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("asset withdrawal %d of %s requested by %s", entry.ID, amount.StringFixed(2), actor.UserID))
	l.publish(op, actor.UserID, amount, entry.ID, string(modelledger.StatusPending), now)
	return &entry, nil
}

// RequestWithdrawal debits a payout balance and files a pending withdrawal request.
func (l *Ledger) RequestWithdrawal(ctx context.Context, actor modelclaims.Actor, category modelledger.PointCategory, amount decimal.Decimal) (*modeldto.WithdrawalResponse, error) {
	op := fmt.Sprintf("request %s withdrawal", category)
	if err := validatePayoutCategory(category); err != nil {
		return nil, err
	}
	if err := validateStep(amount); err != nil {
		return nil, err
	}
	now := l.now()
	fee := modelledger.Round2(amount.Mul(WithdrawalFeeRate))
	var resp modeldto.WithdrawalResponse
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		user, err := tx.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if !user.IsVerified() {
			return &serviceErrors.UserNotVerifiedError{UserID: user.ID}
		}
		if category == modelledger.CategoryProfit && !user.HasPayoutAddress() {
			return &serviceErrors.UserNotVerifiedError{UserID: user.ID, Reason: "payout address is not registered"}
		}
		account, err := lockAccount(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		balance, err := account.Balance(category)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return &serviceErrors.InsufficientBalanceError{Category: string(category), Available: balance, Requested: amount}
		}
		request := modelledger.WithdrawalRequest{
			UserID:          user.ID,
			Category:        category,
			RequestedAmount: amount,
			FeeRate:         WithdrawalFeeRate,
			Fee:             fee,
			NetAmount:       amount.Sub(fee),
			AffiliateDrawn:  decimal.Zero,
			IntroducerDrawn: decimal.Zero,
			Status:          modelledger.StatusPending,
			CreatedAt:       now,
		}
		if category == modelledger.CategoryCommission {
			request.AffiliateDrawn, request.IntroducerDrawn = account.DrawCommission(amount)
		} else if err = account.Debit(category, amount); err != nil {
			return err
		}
		if err = tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		entry := modelledger.Entry{
			UserID:      user.ID,
			Kind:        modelledger.KindWithdrawal,
			Category:    category,
			Amount:      amount,
			Status:      statusPtr(modelledger.StatusPending),
			Description: fmt.Sprintf("%s withdrawal, fee %s", category, fee.StringFixed(2)),
			CreatedAt:   now,
		}
		if err = tx.AddEntry(ctx, &entry); err != nil {
			return err
		}
		request.EntryID = entry.ID
		if err = tx.AddWithdrawalRequest(ctx, &request); err != nil {
			return err
		}
		resp = modeldto.WithdrawalResponse{Wallet: *account, Request: request}
		return nil
	})
	if err != nil {
		l.logFailure(op, actor.UserID, amount, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("withdrawal request %d of %s %s filed by %s", resp.Request.ID, amount.StringFixed(2), category, actor.UserID))
	l.publish(op, actor.UserID, amount, resp.Request.EntryID, string(modelledger.StatusPending), now)
	return &resp, nil
}

// Convert moves profit or commission into master balance.
func (l *Ledger) Convert(ctx context.Context, actor modelclaims.Actor, category modelledger.PointCategory, amount decimal.Decimal) (*modelledger.Account, error) {
	op := fmt.Sprintf("convert %s", category)
	if err := validatePayoutCategory(category); err != nil {
		return nil, err
	}
	if err := validatePositive(amount); err != nil {
		return nil, err
	}
	if !modelledger.IsMultipleOfTen(amount) {
		return nil, &serviceErrors.InvalidAmountError{Amount: amount, Reason: "must be a multiple of 10"}
	}
	now := l.now()
	var account *modelledger.Account
	var entry modelledger.Entry
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		account, err = lockAccount(ctx, tx, actor.UserID)
		if err != nil {
			return err
		}
		if category == modelledger.CategoryCommission {
			from, to := l.dayBounds(now)
			converted, err := tx.SumEntries(ctx, modelledger.EntryFilter{
				UserID:   actor.UserID,
				Kinds:    []modelledger.EntryKind{modelledger.KindConvert},
				Category: modelledger.CategoryCommission,
				From:     from,
				To:       to,
			})
			if err != nil {
				return err
			}
			if converted.Add(amount).GreaterThan(DailyCommissionConversionLimit) {
				remaining := decimal.Max(decimal.Zero, DailyCommissionConversionLimit.Sub(converted))
				return &serviceErrors.DailyLimitExceededError{Limit: DailyCommissionConversionLimit, Remaining: remaining}
			}
		}
		balance, err := account.Balance(category)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return &serviceErrors.InsufficientBalanceError{Category: string(category), Available: balance, Requested: amount}
		}
		if category == modelledger.CategoryCommission {
			account.DrawCommission(amount)
		} else if err = account.Debit(category, amount); err != nil {
			return err
		}
		account.MasterBalance = account.MasterBalance.Add(amount)
		if err = tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		target := modelledger.CategoryMaster
		converted := amount
		entry = modelledger.Entry{
			UserID:          actor.UserID,
			Kind:            modelledger.KindConvert,
			Category:        category,
			Amount:          amount,
			TargetCategory:  &target,
			ConvertedAmount: &converted,
			Description:     fmt.Sprintf("%s to %s", category, target),
			CreatedAt:       now,
		}
		return tx.AddEntry(ctx, &entry)
	})
	if err != nil {
		l.logFailure(op, actor.UserID, amount, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("conversion of %s %s done for %s", amount.StringFixed(2), category, actor.UserID))
	l.publish(op, actor.UserID, amount, entry.ID, "", now)
	return account, nil
}
