// Package errors provides common domain error types for Signalboard.
//
// It defines sentinel errors for the conditions the event store and importer
// distinguish between, so callers can use errors.Is() checks instead of string
// matching. Duplicate external keys are deliberately absent from the caller
// surface: re-ingestion of a known key is the steady-state upsert path, not a
// failure.
package errors

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input at the write boundary
	// (missing required fields, negative metrics, negative amount).
	ErrValidation = errors.New("validation error")

	// ErrParse indicates bytes that could not be decoded into a record at
	// all. Parse failures are a subset of validation failures, so
	// IsValidation also matches.
	ErrParse = fmt.Errorf("parse error: %w", ErrValidation)

	// ErrDanglingReference indicates a funnel event referenced a content
	// external key that does not exist. Only surfaced under the strict
	// attribution policy; the default policy clears the reference instead.
	ErrDanglingReference = errors.New("dangling attribution reference")

	// ErrUnknownValue indicates a categorical value outside the documented
	// set. Only surfaced when strict value checking is enabled; the default
	// policy accepts and logs.
	ErrUnknownValue = errors.New("unknown categorical value")

	// ErrStorageUnavailable indicates the database could not be reached or
	// the operation failed for infrastructure reasons. Retryable.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsParse reports whether any error in err's chain is ErrParse.
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsDanglingReference reports whether any error in err's chain is ErrDanglingReference.
func IsDanglingReference(err error) bool {
	return errors.Is(err, ErrDanglingReference)
}

// IsUnknownValue reports whether any error in err's chain is ErrUnknownValue.
func IsUnknownValue(err error) bool {
	return errors.Is(err, ErrUnknownValue)
}

// IsStorageUnavailable reports whether any error in err's chain is ErrStorageUnavailable.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
