package inpsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Storage struct {
	Cfg *config.StorageConfig
	DB  *sqlx.DB
	log *zerolog.Logger
}

var _ storage.Storage = (*Storage)(nil)

// InitStorage opens the pool and brings the schema up to date.
func InitStorage(ctx context.Context, cfg *config.StorageConfig, log *zerolog.Logger) (*Storage, error) {
	db, err := sqlx.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.StatementTimout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		return nil, err
	}
	if err = MigrateUp(db.DB, log); err != nil {
		return nil, err
	}
	st := Storage{
		Cfg: cfg,
		DB:  db,
		log: log,
	}
	log.Info().Msg("PSQL DB connection was established")
	return &st, nil
}

// Close releases the pool.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// WithinTx runs fn in a read-committed transaction and commits when fn succeeds.
func (s *Storage) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	sqlTx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr(ctx, err, "", "")
	}
	if err = fn(&tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		s.log.Error().Err(err).Msg("transaction commit failed")
		return wrapErr(ctx, err, "", "")
	}
	return nil
}

// wrapErr maps driver errors onto storage error types.
func wrapErr(ctx context.Context, err error, entity, id string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &storageErrors.ContextTimeoutExceededError{Err: ctxErr}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &storageErrors.NotFoundError{Err: err, Entity: entity, ID: id}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return &storageErrors.AlreadyExistsError{Err: err, ID: id}
	}
	return &storageErrors.ExecutionPSQLError{Err: err}
}

func (s *Storage) GetUser(ctx context.Context, userID string) (*modelledger.User, error) {
	var user modelledger.User
	err := s.DB.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", userID)
	if err != nil {
		return nil, wrapErr(ctx, err, "user", userID)
	}
	return &user, nil
}

func (s *Storage) ListDownline(ctx context.Context, sponsorIDs []string) ([]modelledger.User, error) {
	if len(sponsorIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM users WHERE sponsor_id IN (?) ORDER BY id", sponsorIDs)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	var users []modelledger.User
	if err = s.DB.SelectContext(ctx, &users, s.DB.Rebind(query), args...); err != nil {
		return nil, wrapErr(ctx, err, "", "")
	}
	return users, nil
}

func (s *Storage) GetAccount(ctx context.Context, userID string) (*modelledger.Account, error) {
	var account modelledger.Account
	err := s.DB.GetContext(ctx, &account, "SELECT * FROM accounts WHERE user_id = $1", userID)
	if err != nil {
		return nil, wrapErr(ctx, err, "account", userID)
	}
	return &account, nil
}

func (s *Storage) GetAsset(ctx context.Context, userID string) (*modelledger.AssetPosition, error) {
	var asset modelledger.AssetPosition
	err := s.DB.GetContext(ctx, &asset, "SELECT * FROM assets WHERE user_id = $1", userID)
	if err != nil {
		return nil, wrapErr(ctx, err, "asset", userID)
	}
	return &asset, nil
}

func (s *Storage) SumAssets(ctx context.Context, userIDs []string) (decimal.Decimal, error) {
	if len(userIDs) == 0 {
		return decimal.Zero, nil
	}
	query, args, err := sqlx.In("SELECT COALESCE(SUM(amount), 0) FROM assets WHERE user_id IN (?)", userIDs)
	if err != nil {
		return decimal.Zero, &storageErrors.StatementPSQLError{Err: err}
	}
	var total decimal.Decimal
	if err = s.DB.GetContext(ctx, &total, s.DB.Rebind(query), args...); err != nil {
		return decimal.Zero, wrapErr(ctx, err, "", "")
	}
	return total, nil
}

func (s *Storage) ListDepositLocks(ctx context.Context, userID string) ([]modelledger.DepositLock, error) {
	var locks []modelledger.DepositLock
	if err := s.DB.SelectContext(ctx, &locks, effectiveLocksQuery, userID); err != nil {
		return nil, wrapErr(ctx, err, "", "")
	}
	return locks, nil
}

func (s *Storage) ListEntries(ctx context.Context, filter modelledger.EntryFilter) ([]modelledger.Entry, error) {
	where, args, err := entryFilterClause(filter)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	query := s.DB.Rebind("SELECT * FROM entries" + where + " ORDER BY created_at DESC, id DESC")
	var entries []modelledger.Entry
	if err = s.DB.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, wrapErr(ctx, err, "", "")
	}
	return entries, nil
}

func (s *Storage) GetWithdrawalRequest(ctx context.Context, requestID int64) (*modelledger.WithdrawalRequest, error) {
	var request modelledger.WithdrawalRequest
	err := s.DB.GetContext(ctx, &request, "SELECT * FROM withdrawal_requests WHERE id = $1", requestID)
	if err != nil {
		return nil, wrapErr(ctx, err, "withdrawal request", fmt.Sprint(requestID))
	}
	return &request, nil
}

func (s *Storage) GetOperationalProfit(ctx context.Context, year, month int) (*modelledger.OperationalProfit, error) {
	var profit modelledger.OperationalProfit
	err := s.DB.GetContext(ctx, &profit, "SELECT * FROM operational_profits WHERE year = $1 AND month = $2", year, month)
	if err != nil {
		return nil, wrapErr(ctx, err, "operational profit", fmt.Sprintf("%d-%02d", year, month))
	}
	return &profit, nil
}

func (s *Storage) UpsertOperationalProfit(ctx context.Context, profit modelledger.OperationalProfit) error {
	query := `INSERT INTO operational_profits (year, month, daily_profit_rate, updated_at) VALUES (:year, :month, :daily_profit_rate, NOW())
		ON CONFLICT (year, month) DO UPDATE SET daily_profit_rate = EXCLUDED.daily_profit_rate, updated_at = NOW()`
	if _, err := s.DB.NamedExecContext(ctx, query, profit); err != nil {
		return wrapErr(ctx, err, "operational profit", fmt.Sprintf("%d-%02d", profit.Year, profit.Month))
	}
	return nil
}

func (s *Storage) AddMonthlyProfit(ctx context.Context, profit modelledger.MonthlyProfit) error {
	query := "INSERT INTO monthly_profits (year, month, profit_rate, updated_at) VALUES (:year, :month, :profit_rate, NOW())"
	if _, err := s.DB.NamedExecContext(ctx, query, profit); err != nil {
		return wrapErr(ctx, err, "monthly profit", fmt.Sprintf("%d-%02d", profit.Year, profit.Month))
	}
	return nil
}

func (s *Storage) UpdateMonthlyProfit(ctx context.Context, profit modelledger.MonthlyProfit) error {
	query := "UPDATE monthly_profits SET profit_rate = :profit_rate, updated_at = NOW() WHERE year = :year AND month = :month"
	res, err := s.DB.NamedExecContext(ctx, query, profit)
	if err != nil {
		return wrapErr(ctx, err, "monthly profit", fmt.Sprintf("%d-%02d", profit.Year, profit.Month))
	}
	return requireAffected(res, "monthly profit", fmt.Sprintf("%d-%02d", profit.Year, profit.Month))
}

func (s *Storage) DeleteMonthlyProfit(ctx context.Context, year, month int) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM monthly_profits WHERE year = $1 AND month = $2", year, month)
	if err != nil {
		return wrapErr(ctx, err, "monthly profit", fmt.Sprintf("%d-%02d", year, month))
	}
	return requireAffected(res, "monthly profit", fmt.Sprintf("%d-%02d", year, month))
}

func (s *Storage) ListMonthlyProfits(ctx context.Context, year int) ([]modelledger.MonthlyProfit, error) {
	var profits []modelledger.MonthlyProfit
	var err error
	if year == 0 {
		err = s.DB.SelectContext(ctx, &profits, "SELECT * FROM monthly_profits ORDER BY year, month")
	} else {
		err = s.DB.SelectContext(ctx, &profits, "SELECT * FROM monthly_profits WHERE year = $1 ORDER BY month", year)
	}
	if err != nil {
		return nil, wrapErr(ctx, err, "", "")
	}
	return profits, nil
}

func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &storageErrors.ExecutionPSQLError{Err: err}
	}
	if n == 0 {
		return &storageErrors.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// effectiveLocksQuery selects locks whose entry is approved or needs no approval.
const effectiveLocksQuery = `SELECT l.* FROM deposit_locks l
	JOIN entries e ON e.id = l.entry_id
	WHERE l.user_id = $1 AND (e.status IS NULL OR e.status = 'APPROVED')
	ORDER BY l.created_at, l.id`

// entryFilterClause renders filter as a WHERE clause with bindvar placeholders.
func entryFilterClause(filter modelledger.EntryFilter) (string, []interface{}, error) {
	var conds []string
	var args []interface{}
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Category != "" {
		conds = append(conds, "point_category = ?")
		args = append(args, string(filter.Category))
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		in, inArgs, err := sqlx.In("kind IN (?)", kinds)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, in)
		args = append(args, inArgs...)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, filter.To)
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}
