package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	"github.com/shopspring/decimal"
)

// RegisterUser mirrors a user record of the registration service and opens its wallet.
// New users start unverified; an existing user keeps its verification state.
func (l *Ledger) RegisterUser(ctx context.Context, actor modelclaims.Actor, req modeldto.UserRequest) (*modelledger.User, error) {
	const op = "register user"
	if err := requireStaff(actor, op); err != nil {
		return nil, err
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Username = strings.TrimSpace(req.Username)
	if req.ID == "" || req.Username == "" {
		return nil, &serviceErrors.InvalidArgumentError{Msg: "user id and username are required"}
	}
	if req.SponsorID != nil && *req.SponsorID == "" {
		req.SponsorID = nil
	}
	if req.SponsorID != nil && *req.SponsorID == req.ID {
		return nil, &serviceErrors.InvalidArgumentError{Msg: fmt.Sprintf("user %s cannot sponsor itself", req.ID)}
	}
	user := &modelledger.User{
		ID:                 req.ID,
		Username:           req.Username,
		SponsorID:          req.SponsorID,
		IsActive:           req.IsActive == nil || *req.IsActive,
		IsStaff:            req.IsStaff,
		IsSuperuser:        req.IsSuperuser,
		VerificationStatus: modelledger.VerificationRequiresAction,
		PayoutAddress:      req.PayoutAddress,
		CreatedAt:          l.now(),
	}
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		if sponsor := user.Sponsor(); sponsor != "" {
			if _, err := tx.GetUser(ctx, sponsor); err != nil {
				if isNotFound(err) {
					return &serviceErrors.InvalidArgumentError{Msg: fmt.Sprintf("sponsor %s is unknown", sponsor)}
				}
				return err
			}
		}
		if err := tx.UpsertUser(ctx, user); err != nil {
			return err
		}
		if _, err := lockAccount(ctx, tx, user.ID); err != nil {
			return err
		}
		stored, err := tx.GetUser(ctx, user.ID)
		if err != nil {
			return err
		}
		user = stored
		return nil
	})
	if err != nil {
		l.logFailure(op, req.ID, decimal.Zero, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("user %s (%s) registered by %s", user.ID, user.Username, actor.UserID))
	l.publish(op, user.ID, decimal.Zero, 0, string(user.VerificationStatus), l.now())
	return user, nil
}

// ProcessVerification approves or rejects the identity verification of userID.
func (l *Ledger) ProcessVerification(ctx context.Context, actor modelclaims.Actor, userID string, action modelledger.Action, rejectReason string) (*modelledger.User, error) {
	const op = "process verification"
	if err := requireStaff(actor, op); err != nil {
		return nil, err
	}
	if err := validateAction(action); err != nil {
		return nil, err
	}
	var user *modelledger.User
	err := l.storage.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		user, err = tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if action == modelledger.ActionApprove {
			user.VerificationStatus = modelledger.VerificationApproved
			user.RejectReason = nil
		} else {
			user.VerificationStatus = modelledger.VerificationRejected
			user.RejectReason = nil
			if reason := strings.TrimSpace(rejectReason); reason != "" {
				user.RejectReason = &reason
			}
		}
		return tx.SaveVerification(ctx, user)
	})
	if err != nil {
		l.logFailure(op, userID, decimal.Zero, err)
		return nil, err
	}
	l.log.Info().Msg(fmt.Sprintf("verification of %s set to %s by %s", userID, user.VerificationStatus, actor.UserID))
	l.publish(op, userID, decimal.Zero, 0, string(user.VerificationStatus), l.now())
	return user, nil
}
