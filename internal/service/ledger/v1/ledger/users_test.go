package ledger

import (
	"errors"
	"testing"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	storageErrors "github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)
	f.addUser("bob", "", true)

	user, err := f.ledger.RegisterUser(f.ctx, admin, modeldto.UserRequest{
		ID:            "alice",
		Username:      " alice ",
		SponsorID:     strPtr("bob"),
		PayoutAddress: strPtr("TXalice"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "bob", user.Sponsor())
	assert.True(t, user.IsActive)
	assert.Equal(t, modelledger.VerificationRequiresAction, user.VerificationStatus)

	_, err = f.store.GetAccount(f.ctx, "alice")
	require.NoError(t, err, "registration opens the wallet")
	assert.Contains(t, f.events.operations(), "register user")

	// unverified users cannot place assets yet
	f.fund("alice", "100", "0", "0")
	_, err = f.ledger.PlaceAsset(f.ctx, modelclaims.Actor{UserID: "alice"}, dec("100"))
	var unverified *serviceErrors.UserNotVerifiedError
	assert.True(t, errors.As(err, &unverified))
}

func TestRegisterUser_KeepsVerificationOnUpdate(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.RegisterUser(f.ctx, admin, modeldto.UserRequest{ID: "alice", Username: "alice"})
	require.NoError(t, err)
	_, err = f.ledger.ProcessVerification(f.ctx, admin, "alice", modelledger.ActionApprove, "")
	require.NoError(t, err)

	inactive := false
	user, err := f.ledger.RegisterUser(f.ctx, admin, modeldto.UserRequest{ID: "alice", Username: "alice2", IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "alice2", user.Username)
	assert.False(t, user.IsActive)
	assert.Equal(t, modelledger.VerificationApproved, user.VerificationStatus)
}

func TestRegisterUser_Rejections(t *testing.T) {
	f := newFixture(t)
	f.addUser("bob", "", true)

	tests := []struct {
		name  string
		actor modelclaims.Actor
		req   modeldto.UserRequest
		check func(t *testing.T, err error)
	}{
		{
			name:  "not staff",
			actor: modelclaims.Actor{UserID: "bob"},
			req:   modeldto.UserRequest{ID: "alice", Username: "alice"},
			check: func(t *testing.T, err error) {
				var denied *serviceErrors.PermissionDeniedError
				assert.True(t, errors.As(err, &denied))
			},
		},
		{
			name:  "missing username",
			actor: admin,
			req:   modeldto.UserRequest{ID: "alice"},
			check: func(t *testing.T, err error) {
				var invalid *serviceErrors.InvalidArgumentError
				assert.True(t, errors.As(err, &invalid))
			},
		},
		{
			name:  "self sponsor",
			actor: admin,
			req:   modeldto.UserRequest{ID: "alice", Username: "alice", SponsorID: strPtr("alice")},
			check: func(t *testing.T, err error) {
				var invalid *serviceErrors.InvalidArgumentError
				assert.True(t, errors.As(err, &invalid))
			},
		},
		{
			name:  "unknown sponsor",
			actor: admin,
			req:   modeldto.UserRequest{ID: "alice", Username: "alice", SponsorID: strPtr("ghost")},
			check: func(t *testing.T, err error) {
				var invalid *serviceErrors.InvalidArgumentError
				assert.True(t, errors.As(err, &invalid))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.RegisterUser(f.ctx, tt.actor, tt.req)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
	_, err := f.store.GetUser(f.ctx, "alice")
	var notFound *storageErrors.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestProcessVerification(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser("alice", "", false)
	f.fund("alice", "100", "0", "0")

	_, err := f.ledger.ProcessVerification(f.ctx, alice, "alice", modelledger.ActionApprove, "")
	var denied *serviceErrors.PermissionDeniedError
	require.True(t, errors.As(err, &denied))

	_, err = f.ledger.ProcessVerification(f.ctx, admin, "alice", modelledger.Action("MAYBE"), "")
	var invalid *serviceErrors.InvalidArgumentError
	require.True(t, errors.As(err, &invalid))

	_, err = f.ledger.ProcessVerification(f.ctx, admin, "ghost", modelledger.ActionApprove, "")
	var notFound *storageErrors.NotFoundError
	require.True(t, errors.As(err, &notFound))

	user, err := f.ledger.ProcessVerification(f.ctx, admin, "alice", modelledger.ActionReject, "blurry document")
	require.NoError(t, err)
	assert.Equal(t, modelledger.VerificationRejected, user.VerificationStatus)
	require.NotNil(t, user.RejectReason)
	assert.Equal(t, "blurry document", *user.RejectReason)

	user, err = f.ledger.ProcessVerification(f.ctx, admin, "alice", modelledger.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, modelledger.VerificationApproved, user.VerificationStatus)
	assert.Nil(t, user.RejectReason)

	_, err = f.ledger.PlaceAsset(f.ctx, alice, dec("100"))
	require.NoError(t, err)
}
