// Package errors provides ledger service error types.
package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	InvalidAmountError struct {
		Amount decimal.Decimal
		Reason string
	}
	InsufficientBalanceError struct {
		Category  string
		Available decimal.Decimal
		Requested decimal.Decimal
	}
	InsufficientUnlockedFundsError struct {
		Available decimal.Decimal
		Requested decimal.Decimal
	}
	UserNotVerifiedError struct {
		UserID string
		Reason string
	}
	AlreadyProcessedError struct {
		Entity string
		ID     string
		Status string
	}
	DailyLimitExceededError struct {
		Limit     decimal.Decimal
		Remaining decimal.Decimal
	}
	PermissionDeniedError struct {
		UserID    string
		Operation string
	}
	ConfigurationMissingError struct {
		Msg string
	}
	InvalidArgumentError struct {
		Msg string
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s: %s", e.Amount, e.Reason)
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: available %s, requested %s", e.Category, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientUnlockedFundsError) Error() string {
	return fmt.Sprintf("insufficient unlocked funds: withdrawable %s, requested %s", e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *UserNotVerifiedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("user %s is not allowed to proceed: %s", e.UserID, e.Reason)
	}
	return fmt.Sprintf("user %s is not verified", e.UserID)
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%s %s was already processed (%s)", e.Entity, e.ID, e.Status)
}

func (e *DailyLimitExceededError) Error() string {
	return fmt.Sprintf("daily limit of %s exceeded, remaining allowance for today is %s", e.Limit.StringFixed(2), e.Remaining.StringFixed(2))
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %s is not permitted to %s", e.UserID, e.Operation)
}

func (e *ConfigurationMissingError) Error() string {
	return e.Msg
}

func (e *InvalidArgumentError) Error() string {
	return e.Msg
}
