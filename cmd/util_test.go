package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalboard/sgb-cli/config"
)

// TestParseTimeFlag verifies the accepted layouts.
func TestParseTimeFlag(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"2026-03", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2026-03-14", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), false},
		{"2026-03-14T09:30:00Z", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), false},
		{"14/03/2026", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}

	for _, tc := range tests {
		got, err := parseTimeFlag(tc.input)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		assert.True(t, got.Equal(tc.want), "input %q: got %v, want %v", tc.input, got, tc.want)
	}
}

// TestStrFlagPtr verifies empty flags become nil.
func TestStrFlagPtr(t *testing.T) {
	assert.Nil(t, strFlagPtr(""))

	p := strFlagPtr("value")
	require.NotNil(t, p)
	assert.Equal(t, "value", *p)
}

// TestResolveFormat verifies flag-over-config precedence.
func TestResolveFormat(t *testing.T) {
	cfg := &config.CLIConfig{OutputFormat: config.OutputFormatText}

	format, err := resolveFormat(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, config.OutputFormatText, format)

	format, err = resolveFormat(cfg, "json")
	require.NoError(t, err)
	assert.Equal(t, config.OutputFormatJSON, format)

	_, err = resolveFormat(cfg, "xml")
	assert.Error(t, err)
}

// TestWriteStructured verifies JSON and YAML rendering.
func TestWriteStructured(t *testing.T) {
	payload := map[string]int{"count": 3}

	var buf bytes.Buffer
	require.NoError(t, writeStructured(&buf, config.OutputFormatJSON, payload))
	assert.Contains(t, buf.String(), `"count": 3`)

	buf.Reset()
	require.NoError(t, writeStructured(&buf, config.OutputFormatYAML, payload))
	assert.Contains(t, buf.String(), "count: 3")

	assert.Error(t, writeStructured(&buf, config.OutputFormatText, payload))
}

// TestTruncateString verifies table column truncation.
func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "long st...", truncateString("long string here", 10))
}

// TestValueOrDash verifies optional column rendering.
func TestValueOrDash(t *testing.T) {
	assert.Equal(t, "-", valueOrDash(nil))

	empty := ""
	assert.Equal(t, "-", valueOrDash(&empty))

	v := "x"
	assert.Equal(t, "x", valueOrDash(&v))
}
