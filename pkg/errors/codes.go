package errors

import "errors"

// ErrorCode is a stable machine-readable identifier stored with import
// failures and surfaced in CLI output.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "VALIDATION"
	CodeUnknownValue       ErrorCode = "UNKNOWN_VALUE"
	CodeDanglingReference  ErrorCode = "DANGLING_REFERENCE"
	CodeParseError         ErrorCode = "PARSE_ERROR"
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	CodeUnexpected         ErrorCode = "UNEXPECTED"
)

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	CodeValidation: {
		Code:            CodeValidation,
		Retryable:       false,
		Description:     "Record failed write-boundary validation",
		SuggestedAction: "Fix the record in the source export and re-run the import",
	},
	CodeUnknownValue: {
		Code:            CodeUnknownValue,
		Retryable:       false,
		Description:     "Categorical value outside the documented set (strict mode)",
		SuggestedAction: "Correct the value, or disable strict_values to accept and log",
	},
	CodeDanglingReference: {
		Code:            CodeDanglingReference,
		Retryable:       false,
		Description:     "Attribution references a content external key that does not exist (strict mode)",
		SuggestedAction: "Import the referenced content event first, or switch attribution_policy to accept_null",
	},
	CodeParseError: {
		Code:            CodeParseError,
		Retryable:       false,
		Description:     "Line is not valid JSON for the expected record shape",
		SuggestedAction: "Inspect the line in the export file: sgb import reports the line number",
	},
	CodeStorageUnavailable: {
		Code:            CodeStorageUnavailable,
		Retryable:       true,
		Description:     "Database unreachable or the write failed for infrastructure reasons",
		SuggestedAction: "Check connectivity with: sgb health, then retry the import",
	},
	CodeUnexpected: {
		Code:            CodeUnexpected,
		Retryable:       false,
		Description:     "Unclassified failure",
		SuggestedAction: "Re-run with --debug and inspect the log output",
	},
}

// CodeFor classifies an error into an ErrorCode using the sentinel chain.
func CodeFor(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStorageUnavailable):
		return CodeStorageUnavailable
	case errors.Is(err, ErrDanglingReference):
		return CodeDanglingReference
	case errors.Is(err, ErrUnknownValue):
		return CodeUnknownValue
	case errors.Is(err, ErrParse):
		return CodeParseError
	case errors.Is(err, ErrValidation):
		return CodeValidation
	default:
		return CodeUnexpected
	}
}

// IsRetryable reports whether the error maps to a retryable code.
func IsRetryable(err error) bool {
	info, ok := ErrorCodeRegistry[CodeFor(err)]
	return ok && info.Retryable
}
