// Package modelledger provides the ledger entities shared by storage and services.

package modelledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// PointCategory enumerates the balance pools an entry can touch.
type PointCategory string

const (
	CategoryMaster     PointCategory = "MASTER"
	CategoryProfit     PointCategory = "PROFIT"
	CategoryCommission PointCategory = "COMMISSION"
	CategoryAsset      PointCategory = "ASSET"
)

// Valid reports whether c is one of the known categories.
func (c PointCategory) Valid() bool {
	switch c {
	case CategoryMaster, CategoryProfit, CategoryCommission, CategoryAsset:
		return true
	}
	return false
}

// EntryKind enumerates transaction log entry kinds.
type EntryKind string

const (
	KindWithdrawal      EntryKind = "WITHDRAWAL"
	KindConvert         EntryKind = "CONVERT"
	KindTransfer        EntryKind = "TRANSFER"
	KindDistribution    EntryKind = "DISTRIBUTION"
	KindAffiliateBonus  EntryKind = "AFFILIATE_BONUS"
	KindIntroducerBonus EntryKind = "INTRODUCER_BONUS"
	KindAssetPlacement  EntryKind = "ASSET_PLACEMENT"
	KindAssetWithdrawal EntryKind = "ASSET_WITHDRAWAL"
	KindWelcomeBonus    EntryKind = "WELCOME_BONUS"
	KindSharingProfit   EntryKind = "SHARING_PROFIT"
	KindMigration       EntryKind = "MIGRATION"
)

// RequestStatus is the approval state of entries and withdrawal requests.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// VerificationStatus mirrors the identity verification state kept by the user registry.
type VerificationStatus string

const (
	VerificationRequiresAction VerificationStatus = "REQUIRES_ACTION"
	VerificationUnderReview    VerificationStatus = "UNDER_REVIEW"
	VerificationApproved       VerificationStatus = "APPROVED"
	VerificationRejected       VerificationStatus = "REJECTED"
)

// Action is an admin decision on a pending request.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// User is a node of the referral tree together with the flags the ledger checks.
type User struct {
	ID                  string             `db:"id" json:"id"`
	Username            string             `db:"username" json:"username"`
	SponsorID           *string            `db:"sponsor_id" json:"sponsor_id,omitempty"`
	IsActive            bool               `db:"is_active" json:"is_active"`
	IsStaff             bool               `db:"is_staff" json:"-"`
	IsSuperuser         bool               `db:"is_superuser" json:"-"`
	VerificationStatus  VerificationStatus `db:"verification_status" json:"verification_status"`
	RejectReason        *string            `db:"reject_reason" json:"reject_reason,omitempty"`
	PayoutAddress       *string            `db:"payout_address" json:"-"`
	WelcomeBonusGranted bool               `db:"welcome_bonus_granted" json:"-"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
}

// Sponsor returns the sponsor id or an empty string.
func (u User) Sponsor() string {
	if u.SponsorID == nil {
		return ""
	}
	return *u.SponsorID
}

// IsVerified reports whether the user passed identity verification.
func (u User) IsVerified() bool {
	return u.VerificationStatus == VerificationApproved
}

// HasPayoutAddress reports whether a payout address is registered.
func (u User) HasPayoutAddress() bool {
	return u.PayoutAddress != nil && *u.PayoutAddress != ""
}

// Account is a user's wallet.
type Account struct {
	UserID            string          `db:"user_id" json:"user_id"`
	MasterBalance     decimal.Decimal `db:"master_balance" json:"master_balance"`
	ProfitBalance     decimal.Decimal `db:"profit_balance" json:"profit_balance"`
	AffiliateBalance  decimal.Decimal `db:"affiliate_balance" json:"affiliate_balance"`
	IntroducerBalance decimal.Decimal `db:"introducer_balance" json:"introducer_balance"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// AssetPosition is the locked capital of a user.
type AssetPosition struct {
	UserID      string          `db:"user_id" json:"user_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	IsFreeGrant bool            `db:"is_free_grant" json:"is_free_grant"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// DepositLock is the unlock schedule of one placement or grant.
type DepositLock struct {
	ID          int64           `db:"id" json:"id"`
	EntryID     int64           `db:"entry_id" json:"entry_id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Locked6M    decimal.Decimal `db:"locked_6m" json:"locked_6m"`
	Locked1Y    decimal.Decimal `db:"locked_1y" json:"locked_1y"`
	Unlocked6M  decimal.Decimal `db:"unlocked_6m" json:"unlocked_6m"`
	Unlocked1Y  decimal.Decimal `db:"unlocked_1y" json:"unlocked_1y"`
	IsFreeGrant bool            `db:"is_free_grant" json:"is_free_grant"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Entry is an immutable transaction log record; only Status, Description and Reference change.
type Entry struct {
	ID              int64            `db:"id" json:"id"`
	UserID          string           `db:"user_id" json:"user_id"`
	Kind            EntryKind        `db:"kind" json:"kind"`
	Category        PointCategory    `db:"point_category" json:"point_category"`
	Amount          decimal.Decimal  `db:"amount" json:"amount"`
	Status          *RequestStatus   `db:"status" json:"status,omitempty"`
	TargetCategory  *PointCategory   `db:"target_point_category" json:"target_point_category,omitempty"`
	ConvertedAmount *decimal.Decimal `db:"converted_amount" json:"converted_amount,omitempty"`
	Description     string           `db:"description" json:"description"`
	Reference       string           `db:"reference" json:"reference"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// IsPending reports whether the entry awaits an admin decision.
func (e Entry) IsPending() bool {
	return e.Status != nil && *e.Status == StatusPending
}

// WithdrawalRequest is a payout request bound 1:1 to a pending WITHDRAWAL entry.
type WithdrawalRequest struct {
	ID              int64           `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	EntryID         int64           `db:"entry_id" json:"entry_id"`
	Category        PointCategory   `db:"point_category" json:"point_category"`
	RequestedAmount decimal.Decimal `db:"requested_amount" json:"requested_amount"`
	FeeRate         decimal.Decimal `db:"fee_rate" json:"fee_rate"`
	Fee             decimal.Decimal `db:"fee" json:"fee"`
	NetAmount       decimal.Decimal `db:"net_amount" json:"net_amount"`
	AffiliateDrawn  decimal.Decimal `db:"affiliate_drawn" json:"-"`
	IntroducerDrawn decimal.Decimal `db:"introducer_drawn" json:"-"`
	Status          RequestStatus   `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt     *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// OperationalProfit holds the daily profit rate (percent) of a calendar month.
type OperationalProfit struct {
	Year            int             `db:"year" json:"year"`
	Month           int             `db:"month" json:"month"`
	DailyProfitRate decimal.Decimal `db:"daily_profit_rate" json:"daily_profit_rate"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// MonthlyProfit is a finalized monthly performance figure (percent).
type MonthlyProfit struct {
	Year       int             `db:"year" json:"year"`
	Month      int             `db:"month" json:"month"`
	ProfitRate decimal.Decimal `db:"profit_rate" json:"profit_rate"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Holder is a distribution snapshot row: an active user with a positive asset.
// Account is nil when the user has no wallet yet.
type Holder struct {
	User    User
	Account *Account
	Asset   AssetPosition
}

// EntryFilter selects entries for statements and sums.
type EntryFilter struct {
	UserID   string
	Kinds    []EntryKind
	Category PointCategory
	From     time.Time
	To       time.Time
}

// Matches reports whether e passes the filter; zero fields match everything.
func (f EntryFilter) Matches(e Entry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == e.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	return true
}
