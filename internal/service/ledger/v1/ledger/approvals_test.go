package ledger

import (
	"errors"
	"testing"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntroducerRate(t *testing.T) {
	tests := []struct {
		asset string
		want  string
	}{
		{asset: "0", want: "0"},
		{asset: "0.01", want: "0.02"},
		{asset: "999.99", want: "0.02"},
		{asset: "1000", want: "0.025"},
		{asset: "9999.99", want: "0.025"},
		{asset: "10000", want: "0.03"},
		{asset: "250000", want: "0.03"},
	}
	for _, tt := range tests {
		t.Run(tt.asset, func(t *testing.T) {
			requireDec(t, tt.want, IntroducerRate(dec(tt.asset)))
		})
	}
}

func TestProcessPlaceAsset_PaysIntroducerBonus(t *testing.T) {
	f := newFixture(t)
	f.addUser("bob", "", true)
	alice := f.addUser("alice", "bob", true)
	f.setAsset("bob", "5000")
	f.fund("alice", "2000", "0", "0")

	placement, err := f.ledger.PlaceAsset(f.ctx, alice, dec("1000"))
	require.NoError(t, err)
	_, err = f.ledger.ProcessPlaceAsset(f.ctx, admin, placement.ID, modelledger.ActionApprove)
	require.NoError(t, err)

	requireDec(t, "1000", f.asset("alice").Asset.Amount)
	requireDec(t, "25", f.wallet("bob").IntroducerBalance)
	requireDec(t, "5000", f.asset("bob").Asset.Amount)

	bonuses, err := f.ledger.ListStatements(f.ctx, modelledger.EntryFilter{UserID: "bob", Kinds: []modelledger.EntryKind{modelledger.KindIntroducerBonus}})
	require.NoError(t, err)
	require.Len(t, bonuses, 1)
	assert.Equal(t, modelledger.CategoryCommission, bonuses[0].Category)
	assert.Equal(t, entryRef(placement.ID), bonuses[0].Reference)
	assert.Contains(t, f.events.operations(), "introducer bonus")
}

func TestProcessPlaceAsset_NoBonusCases(t *testing.T) {
	f := newFixture(t)
	f.addUser("bob", "", true)
	alice := f.addUser("alice", "bob", true)
	self := f.addUser("self", "self", true)
	orphan := f.addUser("orphan", "ghost", true)
	f.fund("alice", "100", "0", "0")
	f.fund("self", "100", "0", "0")
	f.fund("orphan", "100", "0", "0")
	f.setAsset("self", "20000")

	for _, actor := range []modelclaims.Actor{alice, self, orphan} {
		placement, err := f.ledger.PlaceAsset(f.ctx, actor, dec("100"))
		require.NoError(t, err)
		_, err = f.ledger.ProcessPlaceAsset(f.ctx, admin, placement.ID, modelledger.ActionApprove)
		require.NoError(t, err, actor.UserID)
	}

	bonuses, err := f.ledger.ListStatements(f.ctx, modelledger.EntryFilter{Kinds: []modelledger.EntryKind{modelledger.KindIntroducerBonus}})
	require.NoError(t, err)
	assert.Empty(t, bonuses, "sponsor without asset, self sponsor and missing sponsor earn nothing")
	requireDec(t, "20100", f.asset("self").Asset.Amount)
	requireDec(t, "100", f.asset("orphan").Asset.Amount)
}

func TestProcessPlaceAsset_RejectRefunds(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.fund("alice", "300", "0", "0")

	placement, err := f.ledger.PlaceAsset(f.ctx, alice, dec("300"))
	require.NoError(t, err)
	requireDec(t, "0", f.wallet("alice").MasterBalance)

	rejected, err := f.ledger.ProcessPlaceAsset(f.ctx, admin, placement.ID, modelledger.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, modelledger.StatusRejected, *rejected.Status)
	requireDec(t, "300", f.wallet("alice").MasterBalance)
	requireDec(t, "0", f.asset("alice").Asset.Amount)
	assert.Empty(t, f.asset("alice").Locks)

	_, err = f.ledger.ProcessPlaceAsset(f.ctx, admin, placement.ID, modelledger.ActionApprove)
	var processed *serviceErrors.AlreadyProcessedError
	require.True(t, errors.As(err, &processed))
	requireDec(t, "0", f.asset("alice").Asset.Amount)
}

func TestAdminOperations_RequireStaff(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.fund("alice", "100", "0", "0")
	placement, err := f.ledger.PlaceAsset(f.ctx, alice, dec("100"))
	require.NoError(t, err)

	var denied *serviceErrors.PermissionDeniedError
	_, err = f.ledger.ProcessPlaceAsset(f.ctx, alice, placement.ID, modelledger.ActionApprove)
	assert.True(t, errors.As(err, &denied))
	_, err = f.ledger.ProcessWithdrawalAsset(f.ctx, alice, placement.ID, modelledger.ActionApprove)
	assert.True(t, errors.As(err, &denied))
	_, err = f.ledger.ProcessWithdrawalRequest(f.ctx, alice, 1, modelledger.ActionApprove)
	assert.True(t, errors.As(err, &denied))
	_, err = f.ledger.GrantWelcomeBonus(f.ctx, alice, "alice")
	assert.True(t, errors.As(err, &denied))
	_, err = f.ledger.ResetAllBalances(f.ctx, alice)
	assert.True(t, errors.As(err, &denied))
	_, err = f.ledger.SetupWallet(f.ctx, alice, modeldto.SetupWalletRequest{UserID: "alice", MasterAmount: dec("1000")})
	assert.True(t, errors.As(err, &denied))
	_, err = f.ledger.ShareProfit(f.ctx, alice, dec("10"))
	assert.True(t, errors.As(err, &denied))

	var invalid *serviceErrors.InvalidArgumentError
	_, err = f.ledger.ProcessPlaceAsset(f.ctx, admin, placement.ID, modelledger.Action("MAYBE"))
	assert.True(t, errors.As(err, &invalid))
	_, err = f.ledger.ProcessWithdrawalAsset(f.ctx, admin, placement.ID, modelledger.ActionApprove)
	assert.True(t, errors.As(err, &invalid), "placement entry is not an asset withdrawal")

	requireDec(t, "0", f.wallet("alice").MasterBalance)
}

func TestGrantWelcomeBonus(t *testing.T) {
	f := newFixture(t)
	f.addUser("alice", "", false)

	asset, err := f.ledger.GrantWelcomeBonus(f.ctx, admin, "alice")
	require.NoError(t, err)
	requireDec(t, "100", asset.Amount)
	assert.True(t, asset.IsFreeGrant)

	account, err := f.store.GetAccount(f.ctx, "alice")
	require.NoError(t, err, "the grant opens the wallet that receives its profit")
	requireDec(t, "0", account.MasterBalance)

	view := f.asset("alice")
	require.Len(t, view.Locks, 1)
	assert.True(t, view.Locks[0].IsFreeGrant)
	requireDec(t, "0", view.Locks[0].Locked6M)
	requireDec(t, "100", view.Locks[0].Locked1Y)
	requireDec(t, "0", view.Locks[0].WithdrawableNow)

	_, err = f.ledger.GrantWelcomeBonus(f.ctx, admin, "alice")
	var processed *serviceErrors.AlreadyProcessedError
	require.True(t, errors.As(err, &processed))
	requireDec(t, "100", f.asset("alice").Asset.Amount)

	f.advance(200 * day)
	requireDec(t, "0", f.asset("alice").Locks[0].WithdrawableNow)
	f.advance(165 * day)
	requireDec(t, "100", f.asset("alice").Locks[0].WithdrawableNow)

	entries, err := f.ledger.ListStatements(f.ctx, modelledger.EntryFilter{UserID: "alice", Kinds: []modelledger.EntryKind{modelledger.KindWelcomeBonus}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Status)
}

func TestGrantWelcomeBonus_HolderHasWallet(t *testing.T) {
	f := newFixture(t)
	f.addUser("newbie", "", true)
	_, err := f.ledger.GrantWelcomeBonus(f.ctx, admin, "newbie")
	require.NoError(t, err)

	var holders []modelledger.Holder
	f.mutate(func(tx storage.Tx) error {
		holders, err = tx.ListHolders(f.ctx)
		return err
	})
	require.Len(t, holders, 1)
	assert.Equal(t, "newbie", holders[0].User.ID)
	require.NotNil(t, holders[0].Account)
	requireDec(t, "100", holders[0].Asset.Amount)
}

func TestMaintenanceOperations(t *testing.T) {
	f := newFixture(t)
	f.addUser("alice", "", true)
	f.addUser("bob", "", true)
	f.fund("alice", "10", "20", "30")
	f.fund("bob", "5", "0", "0")

	migrations, err := f.ledger.ListStatements(f.ctx, modelledger.EntryFilter{UserID: "alice", Kinds: []modelledger.EntryKind{modelledger.KindMigration}})
	require.NoError(t, err)
	assert.Len(t, migrations, 3)
	wallet := f.wallet("alice")
	requireDec(t, "10", wallet.MasterBalance)
	requireDec(t, "20", wallet.ProfitBalance)
	requireDec(t, "30", wallet.AffiliateBalance)

	var invalid *serviceErrors.InvalidAmountError
	_, err = f.ledger.SetupWallet(f.ctx, admin, modeldto.SetupWalletRequest{UserID: "alice", MasterAmount: dec("-1"), ProfitAmount: dec("5")})
	assert.True(t, errors.As(err, &invalid))

	var missing *serviceErrors.ConfigurationMissingError
	_, err = f.ledger.ShareProfit(f.ctx, admin, dec("12.5"))
	require.True(t, errors.As(err, &missing))

	require.NoError(t, f.store.UpsertUser(f.ctx, modelledger.User{ID: "root", Username: "root", IsActive: true, IsSuperuser: true}))
	account, err := f.ledger.ShareProfit(f.ctx, admin, dec("12.5"))
	require.NoError(t, err)
	assert.Equal(t, "root", account.UserID)
	requireDec(t, "12.5", account.ProfitBalance)

	n, err := f.ledger.ResetAllBalances(f.ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	wallet = f.wallet("alice")
	requireDec(t, "0", wallet.MasterBalance)
	requireDec(t, "0", wallet.ProfitBalance)
	requireDec(t, "0", wallet.AffiliateBalance)
	requireDec(t, "0", f.wallet("root").ProfitBalance)

	migrations, err = f.ledger.ListStatements(f.ctx, modelledger.EntryFilter{UserID: "alice", Kinds: []modelledger.EntryKind{modelledger.KindMigration}})
	require.NoError(t, err)
	require.Len(t, migrations, 6)
	net := dec("0")
	for _, e := range migrations {
		net = net.Add(e.Amount)
	}
	requireDec(t, "0", net)
	// newest first
	assert.Equal(t, "admin", migrations[0].Reference)
	assert.True(t, migrations[0].Amount.IsNegative())

	resets, err := f.ledger.ListStatements(f.ctx, modelledger.EntryFilter{UserID: "root", Kinds: []modelledger.EntryKind{modelledger.KindMigration}})
	require.NoError(t, err)
	require.Len(t, resets, 1)
	assert.Equal(t, modelledger.CategoryProfit, resets[0].Category)
	requireDec(t, "-12.5", resets[0].Amount)
}
