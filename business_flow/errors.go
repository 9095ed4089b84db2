// Package businessflow contains the core business logic for sponsored like-goal campaigns
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Escrow errors
	ErrAlreadyReleased   = errors.New("escrow already released")
	ErrInsufficientFunds = errors.New("insufficient funds in escrow")

	// Ledger errors
	ErrAlreadyRecorded = errors.New("identity already recorded")

	// Campaign errors
	ErrNotAcceptingApplications = errors.New("campaign is not accepting applications")
	ErrAlreadyApplied           = errors.New("identity has already applied")
	ErrUnknownApplicant         = errors.New("identity has not applied to this campaign")
	ErrNoApplicants             = errors.New("campaign has no applicants")
	ErrAlreadySelected          = errors.New("campaign already has a selected applicant")
	ErrNotActive                = errors.New("campaign is not active")
	ErrWindowClosed             = errors.New("activity window has closed")
	ErrAlreadyEngaged           = errors.New("identity has already engaged")
	ErrGoalNotMet               = errors.New("campaign did not meet its like goal")
	ErrNothingToClaim           = errors.New("nothing to claim")
	ErrRefundNotAvailable       = errors.New("refund is not available yet")
	ErrAlreadyFinished          = errors.New("campaign already finished")
	ErrFallbackNotDue           = errors.New("fallback selection is not due yet")
	ErrInvalidTransition        = errors.New("invalid campaign status transition")

	// Registry errors
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyWhitelisted = errors.New("sponsor already whitelisted")
	ErrNotWhitelisted     = errors.New("sponsor not whitelisted")
	ErrInvalidParameters  = errors.New("invalid campaign parameters")
	ErrUnknownCampaign    = errors.New("unknown campaign")
	ErrRegistryPaused     = errors.New("registry is paused")
	ErrRegistryNotPaused  = errors.New("registry is not paused")
	ErrEmptyIdentity      = errors.New("identity is required")
	ErrReservedIdentity   = errors.New("identity is reserved for the registry")

	// Wallet errors
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrAmountTooLow        = errors.New("amount is too low")
	ErrBalanceLimit        = errors.New("wallet balance limit exceeded")
)

// ErrorKind classifies a failure the way callers react to it
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindState         ErrorKind = "state"
	KindWindow        ErrorKind = "window"
	KindConflict      ErrorKind = "conflict"
	KindNotFound      ErrorKind = "not_found"
	KindInternal      ErrorKind = "internal"
)

type BusinessError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(kind ErrorKind, code, message string, err error) *BusinessError {
	return &BusinessError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(kind ErrorKind, code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Kind:    kind,
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// asBusinessError keeps err when it already carries a kind and wraps it as
// an internal failure otherwise
func asBusinessError(err error, code, message string) error {
	var be *BusinessError
	if errors.As(err, &be) {
		return err
	}
	return NewBusinessError(KindInternal, code, message, err)
}

// KindOf returns the kind of the outermost BusinessError in err's chain.
// Errors that carry no kind are reported as internal.
func KindOf(err error) ErrorKind {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the outermost BusinessError in err's chain
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return "INTERNAL_ERROR"
}

func IsValidationError(err error) bool {
	return KindOf(err) == KindValidation
}

func IsAuthorizationError(err error) bool {
	return KindOf(err) == KindAuthorization
}

func IsStateError(err error) bool {
	return KindOf(err) == KindState
}

func IsWindowError(err error) bool {
	return KindOf(err) == KindWindow
}

func IsConflictError(err error) bool {
	return KindOf(err) == KindConflict
}

func IsNotFoundError(err error) bool {
	return KindOf(err) == KindNotFound
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsUnknownCampaign(err error) bool {
	return errors.Is(err, ErrUnknownCampaign)
}

func IsAlreadyFinished(err error) bool {
	return errors.Is(err, ErrAlreadyFinished)
}

func IsRegistryPaused(err error) bool {
	return errors.Is(err, ErrRegistryPaused)
}

func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

func IsWalletNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound)
}
