package inpsql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// distributionLockKey identifies the advisory lock held by a distribution run.
const distributionLockKey = 7_431_002

type tx struct {
	tx *sqlx.Tx
}

func (t *tx) GetUser(ctx context.Context, userID string) (*modelledger.User, error) {
	var user modelledger.User
	err := t.tx.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", userID)
	if err != nil {
		return nil, wrapErr(ctx, err, "user", userID)
	}
	return &user, nil
}

func (t *tx) UpsertUser(ctx context.Context, user *modelledger.User) error {
	query := `INSERT INTO users (id, username, sponsor_id, is_active, is_staff, is_superuser, verification_status, payout_address, welcome_bonus_granted, created_at)
		VALUES (:id, :username, :sponsor_id, :is_active, :is_staff, :is_superuser, :verification_status, :payout_address, :welcome_bonus_granted, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			sponsor_id = EXCLUDED.sponsor_id,
			is_active = EXCLUDED.is_active,
			is_staff = EXCLUDED.is_staff,
			is_superuser = EXCLUDED.is_superuser,
			payout_address = EXCLUDED.payout_address`
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if _, err := t.tx.NamedExecContext(ctx, query, user); err != nil {
		return wrapErr(ctx, err, "user", user.ID)
	}
	return nil
}

func (t *tx) LockUser(ctx context.Context, userID string) (*modelledger.User, error) {
	var user modelledger.User
	err := t.tx.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1 FOR UPDATE", userID)
	if err != nil {
		return nil, wrapErr(ctx, err, "user", userID)
	}
	return &user, nil
}

func (t *tx) SaveVerification(ctx context.Context, user *modelledger.User) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE users SET verification_status = $1, reject_reason = $2 WHERE id = $3",
		string(user.VerificationStatus), user.RejectReason, user.ID)
	if err != nil {
		return wrapErr(ctx, err, "user", user.ID)
	}
	return requireAffected(res, "user", user.ID)
}

func (t *tx) GetSuperuser(ctx context.Context) (*modelledger.User, error) {
	var user modelledger.User
	err := t.tx.GetContext(ctx, &user, "SELECT * FROM users WHERE is_superuser ORDER BY id LIMIT 1")
	if err != nil {
		return nil, wrapErr(ctx, err, "user", "superuser")
	}
	return &user, nil
}

func (t *tx) MarkWelcomeBonusGranted(ctx context.Context, userID string) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE users SET welcome_bonus_granted = TRUE WHERE id = $1", userID)
	if err != nil {
		return wrapErr(ctx, err, "user", userID)
	}
	return requireAffected(res, "user", userID)
}

func (t *tx) EnsureAccount(ctx context.Context, userID string) error {
	_, err := t.tx.ExecContext(ctx, "INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	if err != nil {
		return wrapErr(ctx, err, "account", userID)
	}
	return nil
}

func (t *tx) LockAccount(ctx context.Context, userID string) (*modelledger.Account, error) {
	var account modelledger.Account
	err := t.tx.GetContext(ctx, &account, "SELECT * FROM accounts WHERE user_id = $1 FOR UPDATE", userID)
	if err != nil {
		return nil, wrapErr(ctx, err, "account", userID)
	}
	return &account, nil
}

func (t *tx) SaveAccount(ctx context.Context, account *modelledger.Account) error {
	query := `UPDATE accounts SET master_balance = :master_balance, profit_balance = :profit_balance,
		affiliate_balance = :affiliate_balance, introducer_balance = :introducer_balance, updated_at = NOW()
		WHERE user_id = :user_id`
	res, err := t.tx.NamedExecContext(ctx, query, account)
	if err != nil {
		return wrapErr(ctx, err, "account", account.UserID)
	}
	return requireAffected(res, "account", account.UserID)
}

func (t *tx) ResetAllAccounts(ctx context.Context) ([]modelledger.Account, error) {
	var before []modelledger.Account
	err := t.tx.SelectContext(ctx, &before, "SELECT * FROM accounts ORDER BY user_id FOR UPDATE")
	if err != nil {
		return nil, wrapErr(ctx, err, "", "")
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE accounts SET master_balance = 0, profit_balance = 0,
		affiliate_balance = 0, introducer_balance = 0, updated_at = NOW()`)
	if err != nil {
		return nil, wrapErr(ctx, err, "", "")
	}
	return before, nil
}

func (t *tx) EnsureAsset(ctx context.Context, userID string) error {
	_, err := t.tx.ExecContext(ctx, "INSERT INTO assets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	if err != nil {
		return wrapErr(ctx, err, "asset", userID)
	}
	return nil
}

func (t *tx) LockAsset(ctx context.Context, userID string) (*modelledger.AssetPosition, error) {
	var asset modelledger.AssetPosition
	err := t.tx.GetContext(ctx, &asset, "SELECT * FROM assets WHERE user_id = $1 FOR UPDATE", userID)
	if err != nil {
		return nil, wrapErr(ctx, err, "asset", userID)
	}
	return &asset, nil
}

func (t *tx) SaveAsset(ctx context.Context, asset *modelledger.AssetPosition) error {
	query := "UPDATE assets SET amount = :amount, is_free_grant = :is_free_grant, updated_at = NOW() WHERE user_id = :user_id"
	res, err := t.tx.NamedExecContext(ctx, query, asset)
	if err != nil {
		return wrapErr(ctx, err, "asset", asset.UserID)
	}
	return requireAffected(res, "asset", asset.UserID)
}

func (t *tx) AddEntry(ctx context.Context, entry *modelledger.Entry) error {
	query := `INSERT INTO entries (user_id, kind, point_category, amount, status, target_point_category, converted_amount, description, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	var status, target sql.NullString
	if entry.Status != nil {
		status = sql.NullString{String: string(*entry.Status), Valid: true}
	}
	if entry.TargetCategory != nil {
		target = sql.NullString{String: string(*entry.TargetCategory), Valid: true}
	}
	var converted decimal.NullDecimal
	if entry.ConvertedAmount != nil {
		converted = decimal.NullDecimal{Decimal: *entry.ConvertedAmount, Valid: true}
	}
	err := t.tx.QueryRowxContext(ctx, query,
		entry.UserID, string(entry.Kind), string(entry.Category), entry.Amount,
		status, target, converted, entry.Description, entry.Reference, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return wrapErr(ctx, err, "entry", "")
	}
	return nil
}

func (t *tx) LockEntry(ctx context.Context, entryID int64) (*modelledger.Entry, error) {
	var entry modelledger.Entry
	err := t.tx.GetContext(ctx, &entry, "SELECT * FROM entries WHERE id = $1 FOR UPDATE", entryID)
	if err != nil {
		return nil, wrapErr(ctx, err, "entry", fmt.Sprint(entryID))
	}
	return &entry, nil
}

func (t *tx) SaveEntry(ctx context.Context, entry *modelledger.Entry) error {
	var status sql.NullString
	if entry.Status != nil {
		status = sql.NullString{String: string(*entry.Status), Valid: true}
	}
	res, err := t.tx.ExecContext(ctx, "UPDATE entries SET status = $1, description = $2, reference = $3 WHERE id = $4",
		status, entry.Description, entry.Reference, entry.ID)
	if err != nil {
		return wrapErr(ctx, err, "entry", fmt.Sprint(entry.ID))
	}
	return requireAffected(res, "entry", fmt.Sprint(entry.ID))
}

func (t *tx) SumEntries(ctx context.Context, filter modelledger.EntryFilter) (decimal.Decimal, error) {
	where, args, err := entryFilterClause(filter)
	if err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	query := t.tx.Rebind("SELECT COALESCE(SUM(amount), 0) FROM entries" + where)
	if err = t.tx.GetContext(ctx, &total, query, args...); err != nil {
		return decimal.Zero, wrapErr(ctx, err, "", "")
	}
	return total, nil
}

func (t *tx) AddDepositLock(ctx context.Context, lock *modelledger.DepositLock) error {
	query := `INSERT INTO deposit_locks (entry_id, user_id, locked_6m, locked_1y, unlocked_6m, unlocked_1y, is_free_grant, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := t.tx.QueryRowxContext(ctx, query,
		lock.EntryID, lock.UserID, lock.Locked6M, lock.Locked1Y, lock.Unlocked6M, lock.Unlocked1Y, lock.IsFreeGrant, lock.CreatedAt,
	).Scan(&lock.ID)
	if err != nil {
		return wrapErr(ctx, err, "deposit lock", fmt.Sprintf("entry %d", lock.EntryID))
	}
	return nil
}

func (t *tx) LockDepositLocks(ctx context.Context, userID string) ([]modelledger.DepositLock, error) {
	var locks []modelledger.DepositLock
	if err := t.tx.SelectContext(ctx, &locks, effectiveLocksQuery+" FOR UPDATE OF l", userID); err != nil {
		return nil, wrapErr(ctx, err, "", "")
	}
	return locks, nil
}

func (t *tx) SaveDepositLock(ctx context.Context, lock *modelledger.DepositLock) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE deposit_locks SET unlocked_6m = $1, unlocked_1y = $2 WHERE id = $3",
		lock.Unlocked6M, lock.Unlocked1Y, lock.ID)
	if err != nil {
		return wrapErr(ctx, err, "deposit lock", fmt.Sprint(lock.ID))
	}
	return requireAffected(res, "deposit lock", fmt.Sprint(lock.ID))
}

func (t *tx) AddWithdrawalRequest(ctx context.Context, request *modelledger.WithdrawalRequest) error {
	query := `INSERT INTO withdrawal_requests (user_id, entry_id, point_category, requested_amount, fee_rate, fee, net_amount,
		affiliate_drawn, introducer_drawn, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	err := t.tx.QueryRowxContext(ctx, query,
		request.UserID, request.EntryID, string(request.Category), request.RequestedAmount, request.FeeRate, request.Fee,
		request.NetAmount, request.AffiliateDrawn, request.IntroducerDrawn, string(request.Status), request.CreatedAt,
	).Scan(&request.ID)
	if err != nil {
		return wrapErr(ctx, err, "withdrawal request", fmt.Sprintf("entry %d", request.EntryID))
	}
	return nil
}

func (t *tx) LockWithdrawalRequest(ctx context.Context, requestID int64) (*modelledger.WithdrawalRequest, error) {
	var request modelledger.WithdrawalRequest
	err := t.tx.GetContext(ctx, &request, "SELECT * FROM withdrawal_requests WHERE id = $1 FOR UPDATE", requestID)
	if err != nil {
		return nil, wrapErr(ctx, err, "withdrawal request", fmt.Sprint(requestID))
	}
	return &request, nil
}

func (t *tx) SaveWithdrawalRequest(ctx context.Context, request *modelledger.WithdrawalRequest) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE withdrawal_requests SET status = $1, processed_at = $2 WHERE id = $3",
		string(request.Status), request.ProcessedAt, request.ID)
	if err != nil {
		return wrapErr(ctx, err, "withdrawal request", fmt.Sprint(request.ID))
	}
	return requireAffected(res, "withdrawal request", fmt.Sprint(request.ID))
}

func (t *tx) AcquireDistributionLock(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", distributionLockKey); err != nil {
		return wrapErr(ctx, err, "", "")
	}
	return nil
}

// holderRow is a users/assets row left-joined with the optional account.
type holderRow struct {
	modelledger.User
	AssetAmount       decimal.Decimal     `db:"asset_amount"`
	AssetFreeGrant    bool                `db:"asset_is_free_grant"`
	AssetUpdatedAt    sql.NullTime        `db:"asset_updated_at"`
	AccountUserID     sql.NullString      `db:"account_user_id"`
	MasterBalance     decimal.NullDecimal `db:"master_balance"`
	ProfitBalance     decimal.NullDecimal `db:"profit_balance"`
	AffiliateBalance  decimal.NullDecimal `db:"affiliate_balance"`
	IntroducerBalance decimal.NullDecimal `db:"introducer_balance"`
	AccountUpdatedAt  sql.NullTime        `db:"account_updated_at"`
}

func (t *tx) ListHolders(ctx context.Context) ([]modelledger.Holder, error) {
	query := `SELECT u.*, s.amount AS asset_amount, s.is_free_grant AS asset_is_free_grant, s.updated_at AS asset_updated_at,
			a.user_id AS account_user_id, a.master_balance, a.profit_balance, a.affiliate_balance, a.introducer_balance,
			a.updated_at AS account_updated_at
		FROM users u
		JOIN assets s ON s.user_id = u.id
		LEFT JOIN accounts a ON a.user_id = u.id
		WHERE u.is_active AND s.amount > 0
		ORDER BY u.id`
	var rows []holderRow
	if err := t.tx.SelectContext(ctx, &rows, query); err != nil {
		return nil, wrapErr(ctx, err, "", "")
	}
	holders := make([]modelledger.Holder, 0, len(rows))
	for _, row := range rows {
		h := modelledger.Holder{
			User: row.User,
			Asset: modelledger.AssetPosition{
				UserID:      row.User.ID,
				Amount:      row.AssetAmount,
				IsFreeGrant: row.AssetFreeGrant,
				UpdatedAt:   row.AssetUpdatedAt.Time,
			},
		}
		if row.AccountUserID.Valid {
			h.Account = &modelledger.Account{
				UserID:            row.AccountUserID.String,
				MasterBalance:     row.MasterBalance.Decimal,
				ProfitBalance:     row.ProfitBalance.Decimal,
				AffiliateBalance:  row.AffiliateBalance.Decimal,
				IntroducerBalance: row.IntroducerBalance.Decimal,
				UpdatedAt:         row.AccountUpdatedAt.Time,
			}
		}
		holders = append(holders, h)
	}
	return holders, nil
}
