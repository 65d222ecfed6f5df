package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	storageErrors "github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func TestTransfer_ConservesValue(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.addUser("bob", "", false)
	f.fund("alice", "100", "0", "0")

	resp, err := f.ledger.Transfer(f.ctx, alice, "bob", dec("40"), "", "invoice-7")
	require.NoError(t, err)
	requireDec(t, "60", resp.Sender.MasterBalance)
	requireDec(t, "40", resp.Receiver.MasterBalance)

	senderDelta := dec("100").Sub(f.wallet("alice").MasterBalance)
	receiverDelta := f.wallet("bob").MasterBalance
	requireDec(t, "40", senderDelta)
	requireDec(t, "40", receiverDelta)

	entries, err := f.ledger.ListStatements(f.ctx, modelledger.EntryFilter{Kinds: []modelledger.EntryKind{modelledger.KindTransfer}})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "invoice-7", entries[0].Reference)
	assert.Contains(t, f.events.operations(), "transfer")
}

func TestTransfer_Rejections(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.addUser("bob", "", true)
	f.fund("alice", "100", "0", "0")

	tests := []struct {
		name     string
		receiver string
		amount   string
		target   interface{}
	}{
		{name: "insufficient", receiver: "bob", amount: "100.01", target: new(*serviceErrors.InsufficientBalanceError)},
		{name: "zero", receiver: "bob", amount: "0", target: new(*serviceErrors.InvalidAmountError)},
		{name: "negative", receiver: "bob", amount: "-5", target: new(*serviceErrors.InvalidAmountError)},
		{name: "sub cent", receiver: "bob", amount: "1.005", target: new(*serviceErrors.InvalidAmountError)},
		{name: "self", receiver: "alice", amount: "10", target: new(*serviceErrors.InvalidArgumentError)},
		{name: "unknown receiver", receiver: "carol", amount: "10", target: new(*storageErrors.NotFoundError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Transfer(f.ctx, alice, tt.receiver, dec(tt.amount), "", "")
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "unexpected error %v", err)
			requireDec(t, "100", f.wallet("alice").MasterBalance)
			requireDec(t, "0", f.wallet("bob").MasterBalance)
		})
	}
}

func TestPlaceAsset_Validation(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	mallory := f.addUser("mallory", "", false)
	f.fund("alice", "100", "0", "0")
	f.fund("mallory", "1000", "0", "0")

	var invalid *serviceErrors.InvalidAmountError
	for _, amount := range []string{"40", "55", "0", "-50"} {
		_, err := f.ledger.PlaceAsset(f.ctx, alice, dec(amount))
		assert.True(t, errors.As(err, &invalid), "amount %s: %v", amount, err)
	}

	_, err := f.ledger.PlaceAsset(f.ctx, alice, dec("110"))
	var insufficient *serviceErrors.InsufficientBalanceError
	assert.True(t, errors.As(err, &insufficient))

	_, err = f.ledger.PlaceAsset(f.ctx, mallory, dec("100"))
	var unverified *serviceErrors.UserNotVerifiedError
	assert.True(t, errors.As(err, &unverified))

	requireDec(t, "100", f.wallet("alice").MasterBalance)
	requireDec(t, "1000", f.wallet("mallory").MasterBalance)
}

func TestPlaceAsset_LockLifecycle(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.fund("alice", "500", "0", "0")

	placement, err := f.ledger.PlaceAsset(f.ctx, alice, dec("120"))
	require.NoError(t, err)
	assert.True(t, placement.IsPending())
	requireDec(t, "380", f.wallet("alice").MasterBalance)

	pending := f.asset("alice")
	requireDec(t, "0", pending.Asset.Amount)
	assert.Empty(t, pending.Locks, "locks of pending placements are not effective")

	approved, err := f.ledger.ProcessPlaceAsset(f.ctx, admin, placement.ID, modelledger.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, modelledger.StatusApproved, *approved.Status)

	view := f.asset("alice")
	requireDec(t, "120", view.Asset.Amount)
	require.Len(t, view.Locks, 1)
	requireDec(t, "60", view.Locks[0].Locked6M)
	requireDec(t, "60", view.Locks[0].Locked1Y)
	requireDec(t, "0", view.Locks[0].WithdrawableNow)

	_, err = f.ledger.WithdrawAsset(f.ctx, alice, dec("60"))
	var locked *serviceErrors.InsufficientUnlockedFundsError
	require.True(t, errors.As(err, &locked))

	f.advance(200 * day)
	requireDec(t, "60", f.asset("alice").Locks[0].WithdrawableNow)

	withdrawal, err := f.ledger.WithdrawAsset(f.ctx, alice, dec("60"))
	require.NoError(t, err)
	requireDec(t, "120", f.asset("alice").Asset.Amount)

	_, err = f.ledger.ProcessWithdrawalAsset(f.ctx, admin, withdrawal.ID, modelledger.ActionApprove)
	require.NoError(t, err)
	view = f.asset("alice")
	requireDec(t, "60", view.Asset.Amount)
	requireDec(t, "60", view.Locks[0].Unlocked6M)
	requireDec(t, "0", view.Locks[0].Unlocked1Y)
	requireDec(t, "60", f.wallet("alice").ProfitBalance)

	for _, amount := range []string{"10", "50", "60"} {
		_, err = f.ledger.WithdrawAsset(f.ctx, alice, dec(amount))
		require.True(t, errors.As(err, &locked), "amount %s: %v", amount, err)
	}

	f.advance(165 * day)
	_, err = f.ledger.WithdrawAsset(f.ctx, alice, dec("60"))
	require.NoError(t, err)
}

func TestWithdrawAsset_ApprovalRechecksCapacity(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.fund("alice", "200", "0", "0")
	placement, err := f.ledger.PlaceAsset(f.ctx, alice, dec("200"))
	require.NoError(t, err)
	_, err = f.ledger.ProcessPlaceAsset(f.ctx, admin, placement.ID, modelledger.ActionApprove)
	require.NoError(t, err)
	f.advance(190 * day)

	first, err := f.ledger.WithdrawAsset(f.ctx, alice, dec("100"))
	require.NoError(t, err)
	second, err := f.ledger.WithdrawAsset(f.ctx, alice, dec("100"))
	require.NoError(t, err)

	_, err = f.ledger.ProcessWithdrawalAsset(f.ctx, admin, first.ID, modelledger.ActionApprove)
	require.NoError(t, err)
	_, err = f.ledger.ProcessWithdrawalAsset(f.ctx, admin, second.ID, modelledger.ActionApprove)
	var locked *serviceErrors.InsufficientUnlockedFundsError
	require.True(t, errors.As(err, &locked))
	requireDec(t, "100", f.asset("alice").Asset.Amount)
	requireDec(t, "100", f.wallet("alice").ProfitBalance)

	rejected, err := f.ledger.ProcessWithdrawalAsset(f.ctx, admin, second.ID, modelledger.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, modelledger.StatusRejected, *rejected.Status)
	requireDec(t, "100", f.asset("alice").Asset.Amount)
}

func TestRequestWithdrawal_CommissionSplit(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.fund("alice", "0", "0", "30")
	f.setIntroducer("alice", "200")

	resp, err := f.ledger.RequestWithdrawal(f.ctx, alice, modelledger.CategoryCommission, dec("100"))
	require.NoError(t, err)
	requireDec(t, "0", resp.Wallet.AffiliateBalance)
	requireDec(t, "130", resp.Wallet.IntroducerBalance)
	requireDec(t, "3", resp.Request.Fee)
	requireDec(t, "97", resp.Request.NetAmount)
	assert.Equal(t, modelledger.StatusPending, resp.Request.Status)

	rejected, err := f.ledger.ProcessWithdrawalRequest(f.ctx, admin, resp.Request.ID, modelledger.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, modelledger.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.ProcessedAt)
	wallet := f.wallet("alice")
	requireDec(t, "30", wallet.AffiliateBalance)
	requireDec(t, "200", wallet.IntroducerBalance)

	_, err = f.ledger.ProcessWithdrawalRequest(f.ctx, admin, resp.Request.ID, modelledger.ActionApprove)
	var processed *serviceErrors.AlreadyProcessedError
	require.True(t, errors.As(err, &processed))
	wallet = f.wallet("alice")
	requireDec(t, "30", wallet.AffiliateBalance)
	requireDec(t, "200", wallet.IntroducerBalance)
}

func TestProcessWithdrawalRequest_Idempotent(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.fund("alice", "0", "300", "0")

	resp, err := f.ledger.RequestWithdrawal(f.ctx, alice, modelledger.CategoryProfit, dec("200"))
	require.NoError(t, err)
	requireDec(t, "100", resp.Wallet.ProfitBalance)
	requireDec(t, "6", resp.Request.Fee)
	requireDec(t, "194", resp.Request.NetAmount)

	_, err = f.ledger.ProcessWithdrawalRequest(f.ctx, admin, resp.Request.ID, modelledger.ActionApprove)
	require.NoError(t, err)
	before := f.wallet("alice")

	_, err = f.ledger.ProcessWithdrawalRequest(f.ctx, admin, resp.Request.ID, modelledger.ActionReject)
	var processed *serviceErrors.AlreadyProcessedError
	require.True(t, errors.As(err, &processed))
	after := f.wallet("alice")
	requireDec(t, before.ProfitBalance.String(), after.ProfitBalance)

	entries, err := f.ledger.ListStatements(f.ctx, modelledger.EntryFilter{UserID: "alice", Kinds: []modelledger.EntryKind{modelledger.KindWithdrawal}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, modelledger.StatusApproved, *entries[0].Status)
}

func TestRequestWithdrawal_Preconditions(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.fund("alice", "0", "1000", "0")
	noAddress := modelledger.User{ID: "dave", Username: "dave", IsActive: true, VerificationStatus: modelledger.VerificationApproved}
	require.NoError(t, f.store.UpsertUser(f.ctx, noAddress))
	f.fund("dave", "0", "1000", "0")
	dave := modelclaims.Actor{UserID: "dave"}

	var unverified *serviceErrors.UserNotVerifiedError
	_, err := f.ledger.RequestWithdrawal(f.ctx, dave, modelledger.CategoryProfit, dec("100"))
	assert.True(t, errors.As(err, &unverified))

	var invalid *serviceErrors.InvalidAmountError
	_, err = f.ledger.RequestWithdrawal(f.ctx, alice, modelledger.CategoryProfit, dec("45"))
	assert.True(t, errors.As(err, &invalid))
	_, err = f.ledger.RequestWithdrawal(f.ctx, alice, modelledger.CategoryProfit, dec("105"))
	assert.True(t, errors.As(err, &invalid))

	var badCategory *serviceErrors.InvalidArgumentError
	_, err = f.ledger.RequestWithdrawal(f.ctx, alice, modelledger.CategoryMaster, dec("100"))
	assert.True(t, errors.As(err, &badCategory))

	var insufficient *serviceErrors.InsufficientBalanceError
	_, err = f.ledger.RequestWithdrawal(f.ctx, alice, modelledger.CategoryCommission, dec("100"))
	assert.True(t, errors.As(err, &insufficient))

	requireDec(t, "1000", f.wallet("alice").ProfitBalance)
	requireDec(t, "1000", f.wallet("dave").ProfitBalance)
}

func TestConvert_DailyCommissionCap(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.fund("alice", "0", "0", "500")

	_, err := f.ledger.Convert(f.ctx, alice, modelledger.CategoryCommission, dec("40"))
	require.NoError(t, err)

	_, err = f.ledger.Convert(f.ctx, alice, modelledger.CategoryCommission, dec("20"))
	var capped *serviceErrors.DailyLimitExceededError
	require.True(t, errors.As(err, &capped))
	requireDec(t, "10", capped.Remaining)
	assert.Contains(t, err.Error(), "10.00")

	account, err := f.ledger.Convert(f.ctx, alice, modelledger.CategoryCommission, dec("10"))
	require.NoError(t, err)
	requireDec(t, "50", account.MasterBalance)
	requireDec(t, "450", account.AffiliateBalance)

	_, err = f.ledger.Convert(f.ctx, alice, modelledger.CategoryCommission, dec("10"))
	require.True(t, errors.As(err, &capped))
	requireDec(t, "0", capped.Remaining)

	// 11:00 next day in Kuala Lumpur
	f.advance(23 * time.Hour)
	_, err = f.ledger.Convert(f.ctx, alice, modelledger.CategoryCommission, dec("10"))
	require.NoError(t, err)
	requireDec(t, "60", f.wallet("alice").MasterBalance)
}

func TestConvert_ProfitAndCommissionSpill(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", true)
	f.fund("alice", "0", "200", "20")
	f.setIntroducer("alice", "100")

	account, err := f.ledger.Convert(f.ctx, alice, modelledger.CategoryProfit, dec("150"))
	require.NoError(t, err)
	requireDec(t, "50", account.ProfitBalance)
	requireDec(t, "150", account.MasterBalance)

	account, err = f.ledger.Convert(f.ctx, alice, modelledger.CategoryCommission, dec("30"))
	require.NoError(t, err)
	requireDec(t, "0", account.AffiliateBalance)
	requireDec(t, "90", account.IntroducerBalance)
	requireDec(t, "180", account.MasterBalance)

	var invalid *serviceErrors.InvalidAmountError
	_, err = f.ledger.Convert(f.ctx, alice, modelledger.CategoryProfit, dec("15"))
	assert.True(t, errors.As(err, &invalid))

	var insufficient *serviceErrors.InsufficientBalanceError
	_, err = f.ledger.Convert(f.ctx, alice, modelledger.CategoryProfit, dec("60"))
	assert.True(t, errors.As(err, &insufficient))

	entries, err := f.ledger.ListStatements(f.ctx, modelledger.EntryFilter{UserID: "alice", Kinds: []modelledger.EntryKind{modelledger.KindConvert}})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, modelledger.CategoryCommission, entries[0].Category)
	assert.Equal(t, modelledger.CategoryMaster, *entries[0].TargetCategory)
	requireDec(t, "30", *entries[0].ConvertedAmount)
}
