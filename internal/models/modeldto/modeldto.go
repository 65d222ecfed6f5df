// Package modeldto provides request and response bodies of the REST API.

package modeldto

import (
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/shopspring/decimal"
)

type (
	AmountRequest struct {
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Reference   string          `json:"reference"`
	}
	TransferRequest struct {
		Receiver    string          `json:"receiver"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Reference   string          `json:"reference"`
	}
	ActionRequest struct {
		Action modelledger.Action `json:"action"`
	}
	VerificationRequest struct {
		Action       modelledger.Action `json:"action"`
		RejectReason string             `json:"reject_reason"`
	}
	// UserRequest mirrors a user record kept by the registration service.
	UserRequest struct {
		ID            string  `json:"id"`
		Username      string  `json:"username"`
		SponsorID     *string `json:"sponsor_id"`
		IsActive      *bool   `json:"is_active"`
		IsStaff       bool    `json:"is_staff"`
		IsSuperuser   bool    `json:"is_superuser"`
		PayoutAddress *string `json:"payout_address"`
	}
	SetupWalletRequest struct {
		UserID           string          `json:"user_id"`
		MasterAmount     decimal.Decimal `json:"master_amount"`
		ProfitAmount     decimal.Decimal `json:"profit_amount"`
		CommissionAmount decimal.Decimal `json:"affiliate_amount"`
	}
	OperationalProfitRequest struct {
		Year            int             `json:"year"`
		Month           int             `json:"month"`
		DailyProfitRate decimal.Decimal `json:"daily_profit_rate"`
	}
	MonthlyProfitRequest struct {
		Year       int             `json:"year"`
		Month      int             `json:"month"`
		ProfitRate decimal.Decimal `json:"profit_rate"`
	}
	TransferResponse struct {
		Sender   modelledger.Account `json:"sender"`
		Receiver modelledger.Account `json:"receiver"`
	}
	AssetResponse struct {
		Asset modelledger.AssetPosition `json:"asset"`
		Locks []LockView                `json:"locks"`
	}
	LockView struct {
		modelledger.DepositLock
		WithdrawableNow decimal.Decimal `json:"withdrawable_now"`
	}
	WithdrawalResponse struct {
		Wallet  modelledger.Account           `json:"wallet"`
		Request modelledger.WithdrawalRequest `json:"withdrawal_request"`
	}
	ResetResponse struct {
		Reset int64 `json:"reset"`
	}
	YearlyTotal struct {
		Year            int             `json:"year"`
		TotalProfitRate decimal.Decimal `json:"total_profit_rate"`
	}
	KindTotal struct {
		Kind  modelledger.EntryKind `json:"transaction_type"`
		Total decimal.Decimal       `json:"total_amount"`
	}
	DayTotal struct {
		Day   string          `json:"day"`
		Total decimal.Decimal `json:"total"`
	}
	NetworkLevel struct {
		Level int                `json:"level"`
		Users []modelledger.User `json:"users"`
	}
	Network struct {
		Levels     []NetworkLevel  `json:"levels"`
		TotalUsers int             `json:"total_user"`
		TotalAsset decimal.Decimal `json:"total_asset"`
	}
	SkipReason struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	DistributionReport struct {
		RunID            string          `json:"run_id"`
		Status           string          `json:"status"`
		DailyProfitRate  decimal.Decimal `json:"daily_profit_rate"`
		UsersCredited    int             `json:"users_credited"`
		TotalRawProfit   decimal.Decimal `json:"total_raw_profit"`
		TotalDistributed decimal.Decimal `json:"total_distributed"`
		L1Bonuses        int             `json:"l1_bonuses"`
		L1Total          decimal.Decimal `json:"l1_total"`
		L2Bonuses        int             `json:"l2_bonuses"`
		L2Total          decimal.Decimal `json:"l2_total"`
		Skipped          int             `json:"skipped"`
		SkipReasons      []SkipReason    `json:"skip_reasons,omitempty"`
	}
	ErrorResponse struct {
		Error string `json:"error"`
	}
)
