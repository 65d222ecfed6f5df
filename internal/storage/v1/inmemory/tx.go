package inmemory

import (
	"context"
	"sort"
	"strconv"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	storageErrors "github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/errors"
	"github.com/shopspring/decimal"
)

// tx operates on a staged state; the Storage mutex already serializes it.
type tx struct {
	st *state
}

func (t *tx) GetUser(_ context.Context, userID string) (*modelledger.User, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "user", ID: userID}
	}
	return &u, nil
}

func (t *tx) GetSuperuser(_ context.Context) (*modelledger.User, error) {
	ids := make([]string, 0, len(t.st.users))
	for id, u := range t.st.users {
		if u.IsSuperuser {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, &storageErrors.NotFoundError{Entity: "user", ID: "superuser"}
	}
	sort.Strings(ids)
	u := t.st.users[ids[0]]
	return &u, nil
}

func (t *tx) MarkWelcomeBonusGranted(_ context.Context, userID string) error {
	u, ok := t.st.users[userID]
	if !ok {
		return &storageErrors.NotFoundError{Entity: "user", ID: userID}
	}
	u.WelcomeBonusGranted = true
	t.st.users[userID] = u
	return nil
}

func (t *tx) UpsertUser(_ context.Context, user *modelledger.User) error {
	if old, ok := t.st.users[user.ID]; ok {
		user.VerificationStatus = old.VerificationStatus
		user.RejectReason = old.RejectReason
		user.WelcomeBonusGranted = old.WelcomeBonusGranted
		user.CreatedAt = old.CreatedAt
	}
	t.st.users[user.ID] = *user
	return nil
}

func (t *tx) LockUser(ctx context.Context, userID string) (*modelledger.User, error) {
	return t.GetUser(ctx, userID)
}

func (t *tx) SaveVerification(_ context.Context, user *modelledger.User) error {
	u, ok := t.st.users[user.ID]
	if !ok {
		return &storageErrors.NotFoundError{Entity: "user", ID: user.ID}
	}
	u.VerificationStatus = user.VerificationStatus
	u.RejectReason = user.RejectReason
	t.st.users[user.ID] = u
	return nil
}

func (t *tx) EnsureAccount(_ context.Context, userID string) error {
	if _, ok := t.st.accounts[userID]; !ok {
		t.st.accounts[userID] = modelledger.Account{UserID: userID}
	}
	return nil
}

func (t *tx) LockAccount(_ context.Context, userID string) (*modelledger.Account, error) {
	a, ok := t.st.accounts[userID]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "account", ID: userID}
	}
	return &a, nil
}

func (t *tx) SaveAccount(_ context.Context, account *modelledger.Account) error {
	if _, ok := t.st.accounts[account.UserID]; !ok {
		return &storageErrors.NotFoundError{Entity: "account", ID: account.UserID}
	}
	t.st.accounts[account.UserID] = *account
	return nil
}

func (t *tx) ResetAllAccounts(_ context.Context) ([]modelledger.Account, error) {
	before := make([]modelledger.Account, 0, len(t.st.accounts))
	for id, a := range t.st.accounts {
		before = append(before, a)
		a.Zero()
		t.st.accounts[id] = a
	}
	sort.Slice(before, func(i, j int) bool { return before[i].UserID < before[j].UserID })
	return before, nil
}

func (t *tx) EnsureAsset(_ context.Context, userID string) error {
	if _, ok := t.st.assets[userID]; !ok {
		t.st.assets[userID] = modelledger.AssetPosition{UserID: userID}
	}
	return nil
}

func (t *tx) LockAsset(_ context.Context, userID string) (*modelledger.AssetPosition, error) {
	a, ok := t.st.assets[userID]
	if !ok {
		return nil, &storageErrors.NotFoundError{Entity: "asset", ID: userID}
	}
	return &a, nil
}

func (t *tx) SaveAsset(_ context.Context, asset *modelledger.AssetPosition) error {
	if _, ok := t.st.assets[asset.UserID]; !ok {
		return &storageErrors.NotFoundError{Entity: "asset", ID: asset.UserID}
	}
	t.st.assets[asset.UserID] = *asset
	return nil
}

func (t *tx) AddEntry(_ context.Context, entry *modelledger.Entry) error {
	entry.ID = int64(len(t.st.entries) + 1)
	t.st.entries = append(t.st.entries, cloneEntry(*entry))
	return nil
}

func (t *tx) LockEntry(_ context.Context, entryID int64) (*modelledger.Entry, error) {
	if entryID < 1 || int(entryID) > len(t.st.entries) {
		return nil, &storageErrors.NotFoundError{Entity: "entry", ID: strconv.FormatInt(entryID, 10)}
	}
	e := cloneEntry(t.st.entries[entryID-1])
	return &e, nil
}

func (t *tx) SaveEntry(_ context.Context, entry *modelledger.Entry) error {
	if entry.ID < 1 || int(entry.ID) > len(t.st.entries) {
		return &storageErrors.NotFoundError{Entity: "entry", ID: strconv.FormatInt(entry.ID, 10)}
	}
	stored := &t.st.entries[entry.ID-1]
	updated := cloneEntry(*entry)
	stored.Status = updated.Status
	stored.Description = updated.Description
	stored.Reference = updated.Reference
	return nil
}

func (t *tx) SumEntries(_ context.Context, filter modelledger.EntryFilter) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range t.st.entries {
		if filter.Matches(e) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (t *tx) AddDepositLock(_ context.Context, lock *modelledger.DepositLock) error {
	if lock.EntryID < 1 || int(lock.EntryID) > len(t.st.entries) {
		return &storageErrors.NotFoundError{Entity: "entry", ID: strconv.FormatInt(lock.EntryID, 10)}
	}
	for _, l := range t.st.locks {
		if l.EntryID == lock.EntryID {
			return &storageErrors.AlreadyExistsError{ID: "deposit lock for entry " + strconv.FormatInt(lock.EntryID, 10)}
		}
	}
	lock.ID = int64(len(t.st.locks) + 1)
	t.st.locks = append(t.st.locks, *lock)
	return nil
}

func (t *tx) LockDepositLocks(_ context.Context, userID string) ([]modelledger.DepositLock, error) {
	return effectiveLocks(t.st, userID), nil
}

func (t *tx) SaveDepositLock(_ context.Context, lock *modelledger.DepositLock) error {
	if lock.ID < 1 || int(lock.ID) > len(t.st.locks) {
		return &storageErrors.NotFoundError{Entity: "deposit lock", ID: strconv.FormatInt(lock.ID, 10)}
	}
	t.st.locks[lock.ID-1] = *lock
	return nil
}

func (t *tx) AddWithdrawalRequest(_ context.Context, request *modelledger.WithdrawalRequest) error {
	request.ID = int64(len(t.st.requests) + 1)
	t.st.requests = append(t.st.requests, *request)
	return nil
}

func (t *tx) LockWithdrawalRequest(_ context.Context, requestID int64) (*modelledger.WithdrawalRequest, error) {
	if requestID < 1 || int(requestID) > len(t.st.requests) {
		return nil, &storageErrors.NotFoundError{Entity: "withdrawal request", ID: strconv.FormatInt(requestID, 10)}
	}
	r := t.st.requests[requestID-1]
	return &r, nil
}

func (t *tx) SaveWithdrawalRequest(_ context.Context, request *modelledger.WithdrawalRequest) error {
	if request.ID < 1 || int(request.ID) > len(t.st.requests) {
		return &storageErrors.NotFoundError{Entity: "withdrawal request", ID: strconv.FormatInt(request.ID, 10)}
	}
	t.st.requests[request.ID-1] = *request
	return nil
}

// AcquireDistributionLock is a no-op: transactions are already exclusive.
func (t *tx) AcquireDistributionLock(_ context.Context) error {
	return nil
}

func (t *tx) ListHolders(_ context.Context) ([]modelledger.Holder, error) {
	var out []modelledger.Holder
	for id, asset := range t.st.assets {
		u, ok := t.st.users[id]
		if !ok || !u.IsActive || !asset.Amount.IsPositive() {
			continue
		}
		h := modelledger.Holder{User: u, Asset: asset}
		if a, ok := t.st.accounts[id]; ok {
			h.Account = &a
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out, nil
}
