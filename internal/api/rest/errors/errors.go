// Package errors provides handler error types and the mapping of service errors onto HTTP statuses.
package errors

import (
	"errors"
	"net/http"

	serviceErrors "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/errors"
	storageErrors "github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/errors"
)

type (
	HandlersFoundNilArgument struct {
		Msg string
	}
	BadRequestError struct {
		Msg string
	}
)

func (e *HandlersFoundNilArgument) Error() string {
	return e.Msg
}

func (e *BadRequestError) Error() string {
	return e.Msg
}

// StatusCode maps an error returned by a service onto the response status.
func StatusCode(err error) int {
	var (
		badRequest           *BadRequestError
		invalidAmount        *serviceErrors.InvalidAmountError
		invalidArgument      *serviceErrors.InvalidArgumentError
		insufficientBalance  *serviceErrors.InsufficientBalanceError
		insufficientUnlocked *serviceErrors.InsufficientUnlockedFundsError
		permissionDenied     *serviceErrors.PermissionDeniedError
		notVerified          *serviceErrors.UserNotVerifiedError
		alreadyProcessed     *serviceErrors.AlreadyProcessedError
		dailyLimit           *serviceErrors.DailyLimitExceededError
		configMissing        *serviceErrors.ConfigurationMissingError
		notFound             *storageErrors.NotFoundError
		alreadyExists        *storageErrors.AlreadyExistsError
		timeout              *storageErrors.ContextTimeoutExceededError
	)
	switch {
	case errors.As(err, &badRequest), errors.As(err, &invalidAmount), errors.As(err, &invalidArgument):
		return http.StatusBadRequest
	case errors.As(err, &insufficientBalance), errors.As(err, &insufficientUnlocked):
		return http.StatusPaymentRequired
	case errors.As(err, &permissionDenied):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &alreadyProcessed), errors.As(err, &alreadyExists):
		return http.StatusConflict
	case errors.As(err, &notVerified), errors.As(err, &configMissing):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dailyLimit):
		return http.StatusTooManyRequests
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
