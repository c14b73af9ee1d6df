package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLoanNotFound    = errors.New("loan not found")
	ErrClientNotFound  = errors.New("client not found")
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrChainCycle is returned when chain resolution detects malformed
	// parent links; the engine fails closed instead of walking forever.
	ErrChainCycle = errors.New("loan chain contains a cycle")

	ErrLoanHasPayments = errors.New("loan still has payments")
	ErrClientHasLoans  = errors.New("client still has loans")
)

// ValidationError reports a missing or invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is required", e.Field)
}

func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
