/*
Package core holds the error taxonomy shared by the calculation engines.

ERROR CATEGORIES:
  1. ValidationError - a required discriminator is missing or unknown
     (transaction kind, rule target type, session-key basis). The data
     contract is broken, so it propagates and the report fails loudly.
  2. DegenerateInputWarning - non-fatal. The offending item is skipped or
     passed through and the rest of the batch continues.

  Numeric parse failures are not errors at all: money.Parse coerces them
  to zero.

USAGE:
  if errors.Is(err, core.ErrValidation) {
      // 400 Bad Request
  }

  var verr *core.ValidationError
  if errors.As(err, &verr) {
      log.Printf("bad field %s on %s", verr.Field, verr.Subject)
  }

SEE ALSO:
  - warning.go: DegenerateInputWarning and the Warnings collector
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports a missing or unknown required field.
type ValidationError struct {
	Field   string // e.g. "kind", "target_type", "session_key"
	Subject string // identifier of the offending record, if known
	Message string
}

func (e *ValidationError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s): %s", ErrValidation, e.Field, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Missing builds a ValidationError for an absent required field.
func Missing(field, subject string) *ValidationError {
	return &ValidationError{Field: field, Subject: subject, Message: "required field is missing"}
}

// Unknown builds a ValidationError for an unrecognised discriminator value.
func Unknown(field, subject, value string) *ValidationError {
	return &ValidationError{Field: field, Subject: subject, Message: fmt.Sprintf("unknown value %q", value)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
