/*
errors.go - Centralized error types for the record log

PURPOSE:
  All sentinel and structured errors for the record package in one place.
  Store implementations translate database-level failures into these before
  they cross the package boundary; engines and the API layer match on them
  with errors.Is.

SEE ALSO:
  - writer.go: pre-write validation producing StockValidationError
  - store/sqlite: constraint translation into ErrDuplicateRecord
*/
package record

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingPayloadTag is returned when a Data blob carries no "type"
	// discriminator.
	ErrMissingPayloadTag = errors.New("payload missing type discriminator")

	// ErrPayloadTagMismatch is returned by DecodeAs when the discriminator
	// does not match the requested payload type.
	ErrPayloadTagMismatch = errors.New("payload tag mismatch")

	// ErrDuplicateRecord is returned when an insert violates the record ID
	// uniqueness constraint. Store implementations translate the raw driver
	// error into this.
	ErrDuplicateRecord = errors.New("record already exists")

	// ErrRecordNotFound is returned when a referenced record does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned for approval transitions outside
	// pending->approved/rejected and approved->archived.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSessionExpired aborts a write burst before any insert is attempted.
	ErrSessionExpired = errors.New("session expired, reauthentication required")

	// ErrEmptyBatch is returned when a batch submission carries no records.
	ErrEmptyBatch = errors.New("empty record batch")

	// ErrInvalidRole rejects a submitter or entity role outside the closed
	// department set.
	ErrInvalidRole = errors.New("invalid role")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// UnknownTagError reports a discriminator outside the closed payload set.
type UnknownTagError struct {
	Tag Tag
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown payload tag %q", e.Tag)
}

// StockValidationError names the offending item when a stock write fails
// pre-write validation (negative quantity, over-issue, negative closing).
type StockValidationError struct {
	ItemName string
	Code     string // "negative_quantity", "over_issue", "negative_closing", "missing_item"
	Quantity decimal.Decimal
	Limit    decimal.Decimal
}

func (e *StockValidationError) Error() string {
	switch e.Code {
	case "over_issue":
		return fmt.Sprintf("%s: issued %s exceeds available %s", e.ItemName, e.Quantity, e.Limit)
	case "negative_closing":
		return fmt.Sprintf("%s: closing stock would be negative (%s)", e.ItemName, e.Quantity)
	case "negative_quantity":
		return fmt.Sprintf("%s: quantity %s is negative", e.ItemName, e.Quantity)
	default:
		return fmt.Sprintf("%s: %s", e.ItemName, e.Code)
	}
}

// TransitionError carries the rejected approval transition.
type TransitionError struct {
	RecordID string
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("record %s: cannot transition %s -> %s", e.RecordID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input
// rather than an infrastructure failure.
func IsClientError(err error) bool {
	var stockErr *StockValidationError
	var tagErr *UnknownTagError
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateRecord) ||
		errors.Is(err, ErrMissingPayloadTag) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.As(err, &stockErr) ||
		errors.As(err, &tagErr)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
