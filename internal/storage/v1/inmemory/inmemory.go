// Package inmemory implements the ledger store in process memory.
//
// Transactions are serialized behind one mutex and run against a staged copy of
// the state that replaces the live state only on commit.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type state struct {
	users    map[string]modelledger.User
	accounts map[string]modelledger.Account
	assets   map[string]modelledger.AssetPosition
	entries  []modelledger.Entry
	locks    []modelledger.DepositLock
	requests []modelledger.WithdrawalRequest
}

func (st *state) clone() *state {
	c := &state{
		users:    make(map[string]modelledger.User, len(st.users)),
		accounts: make(map[string]modelledger.Account, len(st.accounts)),
		assets:   make(map[string]modelledger.AssetPosition, len(st.assets)),
		entries:  make([]modelledger.Entry, len(st.entries)),
		locks:    make([]modelledger.DepositLock, len(st.locks)),
		requests: make([]modelledger.WithdrawalRequest, len(st.requests)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.assets {
		c.assets[k] = v
	}
	for i, e := range st.entries {
		c.entries[i] = cloneEntry(e)
	}
	copy(c.locks, st.locks)
	copy(c.requests, st.requests)
	return c
}

func cloneEntry(e modelledger.Entry) modelledger.Entry {
	if e.Status != nil {
		s := *e.Status
		e.Status = &s
	}
	if e.TargetCategory != nil {
		t := *e.TargetCategory
		e.TargetCategory = &t
	}
	if e.ConvertedAmount != nil {
		a := *e.ConvertedAmount
		e.ConvertedAmount = &a
	}
	return e
}

type monthKey struct {
	year, month int
}

// Storage is an in-memory ledger store.
type Storage struct {
	mu          sync.Mutex
	st          *state
	operational map[monthKey]modelledger.OperationalProfit
	monthly     map[monthKey]modelledger.MonthlyProfit
	log         *zerolog.Logger
}

var _ storage.Storage = (*Storage)(nil)

// InitStorage returns an empty store.
func InitStorage(log *zerolog.Logger) *Storage {
	return &Storage{
		st: &state{
			users:    make(map[string]modelledger.User),
			accounts: make(map[string]modelledger.Account),
			assets:   make(map[string]modelledger.AssetPosition),
		},
		operational: make(map[monthKey]modelledger.OperationalProfit),
		monthly:     make(map[monthKey]modelledger.MonthlyProfit),
		log:         log,
	}
}

// WithinTx runs fn against a staged copy and commits it when fn succeeds.
func (s *Storage) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	staged := s.st.clone()
	if err := fn(&tx{st: staged}); err != nil {
		s.log.Debug().Err(err).Msg("in-memory transaction rolled back")
		return err
	}
	if err := ctx.Err(); err != nil {
		return &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	s.st = staged
	return nil
}

// UpsertUser stores user as given, outside of any transaction. It seeds
// development and test stores.
func (s *Storage) UpsertUser(_ context.Context, user modelledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	s.st.users[user.ID] = user
	return nil
}

func (s *Storage) GetUser(_ context.Context, userID string) (*modelledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "user", ID: userID}
	}
	return &u, nil
}

func (s *Storage) ListDownline(_ context.Context, sponsorIDs []string) ([]modelledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(sponsorIDs))
	for _, id := range sponsorIDs {
		want[id] = true
	}
	var out []modelledger.User
	for _, u := range s.st.users {
		if u.SponsorID != nil && want[*u.SponsorID] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) GetAccount(_ context.Context, userID string) (*modelledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[userID]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "account", ID: userID}
	}
	return &a, nil
}

func (s *Storage) GetAsset(_ context.Context, userID string) (*modelledger.AssetPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.assets[userID]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "asset", ID: userID}
	}
	return &a, nil
}

func (s *Storage) SumAssets(_ context.Context, userIDs []string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, id := range userIDs {
		if a, ok := s.st.assets[id]; ok {
			total = total.Add(a.Amount)
		}
	}
	return total, nil
}

func (s *Storage) ListDepositLocks(_ context.Context, userID string) ([]modelledger.DepositLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return effectiveLocks(s.st, userID), nil
}

func (s *Storage) ListEntries(_ context.Context, filter modelledger.EntryFilter) ([]modelledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []modelledger.Entry
	for i := len(s.st.entries) - 1; i >= 0; i-- {
		if filter.Matches(s.st.entries[i]) {
			out = append(out, cloneEntry(s.st.entries[i]))
		}
	}
	return out, nil
}

func (s *Storage) GetWithdrawalRequest(_ context.Context, requestID int64) (*modelledger.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requestID < 1 || int(requestID) > len(s.st.requests) {
		return nil, &storageErrors.NotFoundError{Entity: "withdrawal request", ID: strconv.FormatInt(requestID, 10)}
	}
	r := s.st.requests[requestID-1]
	return &r, nil
}

func (s *Storage) GetOperationalProfit(_ context.Context, year, month int) (*modelledger.OperationalProfit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.operational[monthKey{year, month}]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "operational profit", ID: fmt.Sprintf("%d-%02d", year, month)}
	}
	return &p, nil
}

func (s *Storage) UpsertOperationalProfit(_ context.Context, profit modelledger.OperationalProfit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operational[monthKey{profit.Year, profit.Month}] = profit
	return nil
}

func (s *Storage) AddMonthlyProfit(_ context.Context, profit modelledger.MonthlyProfit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := monthKey{profit.Year, profit.Month}
	if _, ok := s.monthly[key]; ok {
		return &storageErrors.AlreadyExistsError{ID: fmt.Sprintf("%d-%02d", profit.Year, profit.Month)}
	}
	s.monthly[key] = profit
	return nil
}

func (s *Storage) UpdateMonthlyProfit(_ context.Context, profit modelledger.MonthlyProfit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := monthKey{profit.Year, profit.Month}
	if _, ok := s.monthly[key]; !ok {
		return &storageErrors.NotFoundError{Entity: "monthly profit", ID: fmt.Sprintf("%d-%02d", profit.Year, profit.Month)}
	}
	s.monthly[key] = profit
	return nil
}

func (s *Storage) DeleteMonthlyProfit(_ context.Context, year, month int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := monthKey{year, month}
	if _, ok := s.monthly[key]; !ok {
		return &storageErrors.NotFoundError{Entity: "monthly profit", ID: fmt.Sprintf("%d-%02d", year, month)}
	}
	delete(s.monthly, key)
	return nil
}

func (s *Storage) ListMonthlyProfits(_ context.Context, year int) ([]modelledger.MonthlyProfit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []modelledger.MonthlyProfit
	for _, p := range s.monthly {
		if year == 0 || p.Year == year {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func effectiveLocks(st *state, userID string) []modelledger.DepositLock {
	var out []modelledger.DepositLock
	for _, l := range st.locks {
		if l.UserID != userID {
			continue
		}
		e := st.entries[l.EntryID-1]
		if e.Status != nil && *e.Status != modelledger.StatusApproved {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
