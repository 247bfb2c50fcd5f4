package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"nil", nil, ""},
		{"validation", ErrValidation, CodeValidation},
		{"wrapped validation", fmt.Errorf("funnel event: %w", ErrValidation), CodeValidation},
		{"parse", fmt.Errorf("decode record: %w", ErrParse), CodeParseError},
		{"unknown value", ErrUnknownValue, CodeUnknownValue},
		{"dangling reference", ErrDanglingReference, CodeDanglingReference},
		{"storage", fmt.Errorf("upsert: %w", ErrStorageUnavailable), CodeStorageUnavailable},
		{"unclassified", stderrors.New("something else"), CodeUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeFor(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrStorageUnavailable))
	assert.False(t, IsRetryable(ErrValidation))
	assert.False(t, IsRetryable(stderrors.New("unclassified")))
	assert.False(t, IsRetryable(nil))
}

func TestRegistryComplete(t *testing.T) {
	codes := []ErrorCode{
		CodeValidation,
		CodeUnknownValue,
		CodeDanglingReference,
		CodeParseError,
		CodeStorageUnavailable,
		CodeUnexpected,
	}

	for _, code := range codes {
		info, ok := ErrorCodeRegistry[code]
		assert.True(t, ok, "missing registry entry for %s", code)
		assert.Equal(t, code, info.Code)
		assert.NotEmpty(t, info.Description)
		assert.NotEmpty(t, info.SuggestedAction)
	}
}
