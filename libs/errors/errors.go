package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")
	// ErrCurrencyNotFound - currency code absent from the rate table
	ErrCurrencyNotFound = fmt.Errorf("currency: %w", ErrNotFound)
	// ErrProviderNotFound - no adapter registered for the provider tag
	ErrProviderNotFound = fmt.Errorf("payment provider: %w", ErrNotFound)
	// ErrTransactionNotFound - no transaction for the given reference
	ErrTransactionNotFound = fmt.Errorf("transaction: %w", ErrNotFound)
	// ErrBeneficiaryNotFound - beneficiary or payout account missing
	ErrBeneficiaryNotFound = fmt.Errorf("beneficiary: %w", ErrNotFound)

	// ErrBusinessRule - a business rule rejected the operation
	ErrBusinessRule = errors.New("business rule violation")
	// ErrTransactionFinalized - transaction is in a terminal state
	ErrTransactionFinalized = fmt.Errorf("transaction is already finalized: %w", ErrBusinessRule)
	// ErrImmediateSettlementUnsupported - rail cannot guarantee settlement at initiation
	ErrImmediateSettlementUnsupported = fmt.Errorf("immediate settlement is not supported by this provider: %w", ErrBusinessRule)
	// ErrImmediateSettlementRequired - rail cannot leave a transaction pending
	ErrImmediateSettlementRequired = fmt.Errorf("immediate settlement is required by this provider: %w", ErrBusinessRule)
	// ErrOperationUnsupported - the adapter does not implement this lifecycle call
	ErrOperationUnsupported = fmt.Errorf("operation is not supported by this provider: %w", ErrBusinessRule)

	// ErrValidation - malformed input rejected before any side effect
	ErrValidation = errors.New("validation error")
	// ErrNonPositiveAmount - amounts must be strictly positive
	ErrNonPositiveAmount = fmt.Errorf("amount must be greater than zero: %w", ErrValidation)
	// ErrInvalidCurrency - currency codes are three letters
	ErrInvalidCurrency = fmt.Errorf("invalid currency code: %w", ErrValidation)

	// ErrHealthCheckFailed - the targeted integration is marked unhealthy
	ErrHealthCheckFailed = errors.New("integration failed health check")

	// ErrStaleRates - the rate feed returned an unusable response
	ErrStaleRates = errors.New("rate feed returned an unusable response")
)

// ErrorBundle creates a new response error
type ErrorBundle struct {
	cause   error
	message string
	data    interface{}
}

// New creates a new response error
func New(cause error, message string, data interface{}) error {
	return &ErrorBundle{
		cause,
		message,
		data,
	}
}

// Data from error origin
func (e ErrorBundle) Data() interface{} {
	return e.data
}

// Cause returns the associated cause
func (e ErrorBundle) Cause() error {
	return e.cause
}

// Unwrap returns the associated cause
func (e ErrorBundle) Unwrap() error {
	return e.cause
}

// Error turns into an error
func (e ErrorBundle) Error() string {
	return e.message
}

// DataToString returns string representation of data
func (e ErrorBundle) DataToString() string {
	if e.data == nil {
		return "no error bundle data"
	}
	b, err := json.Marshal(e.data)
	if err != nil {
		return fmt.Sprintf("error retrieving error bundle data %s", err.Error())
	}
	return string(b)
}

// Wrap wraps an error
func Wrap(cause error, message string) error {
	return &ErrorBundle{
		cause:   cause,
		message: message,
		data:    nil,
	}
}
