package ledger

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelqueue"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/inmemory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var admin = modelclaims.Actor{UserID: "admin", IsStaff: true}

type recorder struct {
	mu     sync.Mutex
	events []modelqueue.LedgerEvent
}

func (r *recorder) Publish(event modelqueue.LedgerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) operations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, len(r.events))
	for i, e := range r.events {
		ops[i] = e.Operation
	}
	return ops
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	ledger *Ledger
	store  *inmemory.Storage
	events *recorder
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	loc, err := time.LoadLocation("Asia/Kuala_Lumpur")
	require.NoError(t, err)
	cfg := &config.LedgerConfig{Timezone: loc.String(), WelcomeBonus: decimal.NewFromInt(100), Location: loc}
	store := inmemory.InitStorage(&log)
	events := &recorder{}
	l, err := InitService(store, events, cfg, &log)
	require.NoError(t, err)
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		ledger: l,
		store:  store,
		events: events,
		// noon in Kuala Lumpur
		now: time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC),
	}
	l.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) addUser(id, sponsor string, verified bool) modelclaims.Actor {
	f.t.Helper()
	user := modelledger.User{
		ID:                 id,
		Username:           id,
		IsActive:           true,
		VerificationStatus: modelledger.VerificationRequiresAction,
		CreatedAt:          f.now,
	}
	if sponsor != "" {
		user.SponsorID = &sponsor
	}
	if verified {
		user.VerificationStatus = modelledger.VerificationApproved
		address := "TXyz" + id
		user.PayoutAddress = &address
	}
	require.NoError(f.t, f.store.UpsertUser(f.ctx, user))
	return modelclaims.Actor{UserID: id}
}

func (f *fixture) fund(userID, master, profit, affiliate string) {
	f.t.Helper()
	_, err := f.ledger.SetupWallet(f.ctx, admin, modeldto.SetupWalletRequest{
		UserID:           userID,
		MasterAmount:     dec(master),
		ProfitAmount:     dec(profit),
		CommissionAmount: dec(affiliate),
	})
	require.NoError(f.t, err)
}

// mutate edits stored state directly for setups no operation can produce.
func (f *fixture) mutate(fn func(tx storage.Tx) error) {
	f.t.Helper()
	require.NoError(f.t, f.store.WithinTx(f.ctx, fn))
}

func (f *fixture) setIntroducer(userID, amount string) {
	f.mutate(func(tx storage.Tx) error {
		if err := tx.EnsureAccount(f.ctx, userID); err != nil {
			return err
		}
		a, err := tx.LockAccount(f.ctx, userID)
		if err != nil {
			return err
		}
		a.IntroducerBalance = dec(amount)
		return tx.SaveAccount(f.ctx, a)
	})
}

func (f *fixture) setAsset(userID, amount string) {
	f.mutate(func(tx storage.Tx) error {
		if err := tx.EnsureAsset(f.ctx, userID); err != nil {
			return err
		}
		a, err := tx.LockAsset(f.ctx, userID)
		if err != nil {
			return err
		}
		a.Amount = dec(amount)
		return tx.SaveAsset(f.ctx, a)
	})
}

func (f *fixture) wallet(userID string) *modelledger.Account {
	f.t.Helper()
	a, err := f.ledger.GetWallet(f.ctx, userID)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) asset(userID string) *modeldto.AssetResponse {
	f.t.Helper()
	a, err := f.ledger.GetAsset(f.ctx, userID)
	require.NoError(f.t, err)
	return a
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}
