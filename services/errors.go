package services

import (
	"errors"
	"fmt"

	"dealscope/models"
)

// Sentinels for errors.Is. The typed errors below match their sentinel.
var (
	ErrNotAuthenticated  = errors.New("You must be signed in to do that.")
	ErrNotFound          = errors.New("The requested record could not be found.")
	ErrQuotaExceeded     = errors.New("You have reached your active offer limit for this property.")
	ErrValidation        = errors.New("The request contains invalid values.")
	ErrTerminalOffer     = errors.New("This offer is closed and can no longer be changed.")
	ErrInvalidTransition = errors.New("That status change is not allowed.")
	ErrOfferArchived     = errors.New("This offer is archived and can no longer be revised.")
	ErrForbidden         = errors.New("Only the author can delete this comment.")
	ErrExportDisabled    = errors.New("Report export is not configured on this server.")
)

// QuotaExceededError carries the entitlement limit that was hit
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	if e.Limit == 1 {
		return "Your plan allows 1 active offer per property. Archive or close an existing offer, or upgrade to add more."
	}
	return fmt.Sprintf("Your plan allows %d active offers per property. Archive or close an existing offer, or upgrade to add more.", e.Limit)
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// ValidationError names the offending input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ErrValidation.Error()
	}
	if last := msg[len(msg)-1]; last != '.' && last != '!' && last != '?' {
		msg += "."
	}
	return capitalize(msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error()}
}

// TransitionError reports a status change the transition table forbids
type TransitionError struct {
	From models.OfferStatus
	To   models.OfferStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("An offer cannot move from %s to %s.", e.From.Label(), e.To.Label())
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
