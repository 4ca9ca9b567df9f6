// Package errors defines the error taxonomy shared by the staffing services.
// Every error returned by a controller unwraps to exactly one of the sentinels
// below, so the transport layer can map it with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrNotFound        = fmt.Errorf("not found")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrBusinessRule    = fmt.Errorf("business rule violation")
	ErrConflict        = fmt.Errorf("conflict")
	ErrInternal        = fmt.Errorf("internal error")
)

// Reason codes reported alongside ErrInvalidInput and ErrBusinessRule.
const (
	ReasonMissingField          = "MISSING_FIELD"
	ReasonInvalidDateRange      = "INVALID_DATE_RANGE"
	ReasonInvalidContractType   = "INVALID_CONTRACT_TYPE"
	ReasonEndDateRequired       = "END_DATE_REQUIRED"
	ReasonHoldingMismatch       = "HOLDING_MISMATCH"
	ReasonEmployeeNotInFirm     = "EMPLOYEE_NOT_IN_FIRM"
	ReasonClientNotInFirm       = "CLIENT_NOT_IN_FIRM"
	ReasonSameFirm              = "SAME_FIRM"
	ReasonActiveContractExists  = "ACTIVE_CONTRACT_EXISTS"
	ReasonContractNotRenewable  = "CONTRACT_NOT_RENEWABLE"
	ReasonDurationExceeded      = "DURATION_LIMIT_EXCEEDED"
	ReasonCumulativeCapExceeded = "CUMULATIVE_CAP_EXCEEDED"
	ReasonPendingTransferExists = "PENDING_TRANSFER_EXISTS"
	ReasonIllegalTransition     = "ILLEGAL_TRANSITION"
	ReasonTransferNotEffective  = "TRANSFER_NOT_EFFECTIVE"
	ReasonModuleDisabled        = "MODULE_DISABLED"
	ReasonInsufficientRole      = "INSUFFICIENT_ROLE"
	ReasonNotMember             = "NOT_A_MEMBER"
	ReasonWrongFirm             = "WRONG_FIRM"
	ReasonInvalidField          = "INVALID_FIELD"
)

// RuleError is a rejection with a machine-readable reason and structured
// details the caller can show to an end user.
type RuleError struct {
	Kind    error
	Reason  string
	Message string
	Details map[string]string
}

func (r *RuleError) Error() string {
	return fmt.Sprintf("%v: %s", r.Kind, r.Message)
}

func (r *RuleError) Unwrap() error {
	return r.Kind
}

// Invalid reports a missing or malformed field.
func Invalid(reason, message string) error {
	return &RuleError{Kind: ErrInvalidInput, Reason: reason, Message: message}
}

// Violation reports a broken business rule.
func Violation(reason, message string, details map[string]string) error {
	return &RuleError{Kind: ErrBusinessRule, Reason: reason, Message: message, Details: details}
}

// Denied reports a caller lacking membership or privilege.
func Denied(reason, message string) error {
	return &RuleError{Kind: ErrForbidden, Reason: reason, Message: message}
}

// AsRule extracts the RuleError from err, if any.
func AsRule(err error) (*RuleError, bool) {
	var re *RuleError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsKnown reports whether err belongs to the taxonomy above. Anything else is
// an unexpected failure.
func IsKnown(err error) bool {
	for _, sentinel := range []error{
		ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrInvalidInput,
		ErrBusinessRule, ErrConflict, ErrInternal,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
