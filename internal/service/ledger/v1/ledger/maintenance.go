package ledger

import (
	"context"
	"fmt"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	"github.com/shopspring/decimal"
)

// ResetAllBalances zeroes every wallet. Each cleared balance is recorded as a
// negative MIGRATION entry so the log still explains the wallet.
func (l *Ledger) ResetAllBalances(ctx context.Context, actor modelclaims.Actor) (int64, error) {
	const op = "reset all balances"
	if err := requireStaff(actor, op); err != nil {
		return 0, err
	}
	now := l.now()
	var n int64
	total := decimal.Zero
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		accounts, err := tx.ResetAllAccounts(ctx)
		if err != nil {
			return err
		}
		n = int64(len(accounts))
		for _, a := range accounts {
			cleared := []struct {
				category modelledger.PointCategory
				amount   decimal.Decimal
			}{
				{modelledger.CategoryMaster, a.MasterBalance},
				{modelledger.CategoryProfit, a.ProfitBalance},
				{modelledger.CategoryCommission, a.AffiliateBalance.Add(a.IntroducerBalance)},
			}
			for _, c := range cleared {
				if c.amount.IsZero() {
					continue
				}
				entry := modelledger.Entry{
					UserID:      a.UserID,
					Kind:        modelledger.KindMigration,
					Category:    c.category,
					Amount:      c.amount.Neg(),
					Description: fmt.Sprintf("%s balance reset", c.category),
					Reference:   actor.UserID,
					CreatedAt:   now,
				}
				if err = tx.AddEntry(ctx, &entry); err != nil {
					return err
				}
				total = total.Add(c.amount)
			}
		}
		return nil
	})
	if err != nil {
		l.logFailure(op, actor.UserID, decimal.Zero, err)
		return 0, err
	}
	l.log.Warn().Msg(fmt.Sprintf("%d wallets holding %s were reset by %s", n, total.StringFixed(2), actor.UserID))
	l.publish(op, actor.UserID, total, 0, "", now)
	return n, nil
}

// SetupWallet credits migrated balances and records one MIGRATION entry per category.
func (l *Ledger) SetupWallet(ctx context.Context, actor modelclaims.Actor, setup modeldto.SetupWalletRequest) (*modelledger.Account, error) {
	const op = "setup wallet"
	if err := requireStaff(actor, op); err != nil {
		return nil, err
	}
	if setup.UserID == "" {
		return nil, &serviceErrors.InvalidArgumentError{Msg: "user id is required"}
	}
	credits := []struct {
		category modelledger.PointCategory
		amount   decimal.Decimal
	}{
		{modelledger.CategoryMaster, setup.MasterAmount},
		{modelledger.CategoryProfit, setup.ProfitAmount},
		{modelledger.CategoryCommission, setup.CommissionAmount},
	}
	total := decimal.Zero
	for _, c := range credits {
		if c.amount.IsNegative() || !c.amount.Equal(modelledger.Round2(c.amount)) {
			return nil, &serviceErrors.InvalidAmountError{Amount: c.amount, Reason: fmt.Sprintf("%s migration amount must be a non-negative cent amount", c.category)}
		}
		total = total.Add(c.amount)
	}
	if total.IsZero() {
		return nil, &serviceErrors.InvalidAmountError{Amount: total, Reason: "nothing to migrate"}
	}
	now := l.now()
	var account *modelledger.Account
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUser(ctx, setup.UserID); err != nil {
			return err
		}
		var err error
		account, err = lockAccount(ctx, tx, setup.UserID)
		if err != nil {
			return err
		}
		for _, c := range credits {
			if c.category == modelledger.CategoryCommission {
				account.AffiliateBalance = account.AffiliateBalance.Add(c.amount)
			} else if err = account.Credit(c.category, c.amount); err != nil {
				return err
			}
			entry := modelledger.Entry{
				UserID:      setup.UserID,
				Kind:        modelledger.KindMigration,
				Category:    c.category,
				Amount:      c.amount,
				Description: fmt.Sprintf("%s migration", c.category),
				Reference:   actor.UserID,
				CreatedAt:   now,
			}
			if err = tx.AddEntry(ctx, &entry); err != nil {
				return err
			}
		}
		return tx.SaveAccount(ctx, account)
	})
	if err != nil {
		l.logFailure(op, setup.UserID, total, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("wallet of %s set up with %s by %s", setup.UserID, total.StringFixed(2), actor.UserID))
	l.publish(op, setup.UserID, total, 0, "", now)
	return account, nil
}

// ShareProfit credits amount to the superuser's profit balance.
func (l *Ledger) ShareProfit(ctx context.Context, actor modelclaims.Actor, amount decimal.Decimal) (*modelledger.Account, error) {
	const op = "share profit"
	if err := requireStaff(actor, op); err != nil {
		return nil, err
	}
	if err := validatePositive(amount); err != nil {
		return nil, err
	}
	now := l.now()
	var account *modelledger.Account
	var entry modelledger.Entry
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		superuser, err := tx.GetSuperuser(ctx)
		if err != nil {
			if isNotFound(err) {
				return &serviceErrors.ConfigurationMissingError{Msg: "no superuser is registered to receive shared profit"}
			}
			return err
		}
		account, err = lockAccount(ctx, tx, superuser.ID)
		if err != nil {
			return err
		}
		account.ProfitBalance = account.ProfitBalance.Add(amount)
		if err = tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		entry = modelledger.Entry{
			UserID:      superuser.ID,
			Kind:        modelledger.KindSharingProfit,
			Category:    modelledger.CategoryProfit,
			Amount:      amount,
			Description: "sharing profit",
			Reference:   actor.UserID,
			CreatedAt:   now,
		}
		return tx.AddEntry(ctx, &entry)
	})
	if err != nil {
		l.logFailure(op, actor.UserID, amount, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("sharing profit of %s credited to %s", amount.StringFixed(2), account.UserID))
	l.publish(op, account.UserID, amount, entry.ID, "", now)
	return account, nil
}
