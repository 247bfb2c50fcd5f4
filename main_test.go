package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/signalboard/sgb-cli/pkg/buildinfo"
)

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	if rootCmd.Use != "sgb" {
		t.Errorf("Unexpected Use: %s", rootCmd.Use)
	}

	// Help copy should describe the actual content types.
	for _, want := range []string{"threads", "landing-page"} {
		if !strings.Contains(rootCmd.Long, want) {
			t.Errorf("root help does not mention %q", want)
		}
	}
}

func TestRootGlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "output", "debug"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s persistent flag not found on root command", name)
		}
	}
}

func TestRootSubcommands(t *testing.T) {
	expected := []string{
		"content", "funnel", "import", "report",
		"db", "health", "config", "completion", "version",
	}

	registered := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		registered[sub.Name()] = true
	}

	for _, name := range expected {
		if !registered[name] {
			t.Errorf("Subcommand %q not registered on root command", name)
		}
	}
}

func TestRootVersionFlag(t *testing.T) {
	if rootCmd.Version == "" {
		t.Fatal("rootCmd.Version is empty; --version flag disabled")
	}
	if rootCmd.Version != buildinfo.String() {
		t.Errorf("rootCmd.Version = %q, want %q", rootCmd.Version, buildinfo.String())
	}
}

func TestVersionCommand(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}

	if versionCmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", versionCmd.Use)
	}

	if versionCmd.Short != "Print version information" {
		t.Errorf("Unexpected Short: %s", versionCmd.Short)
	}
}

func TestVersionFlags(t *testing.T) {
	outputJSONFlag := versionCmd.Flags().Lookup("output-json")
	if outputJSONFlag == nil {
		t.Error("--output-json flag not found on version command")
	}
}

func TestVersionOutput(t *testing.T) {
	var buf bytes.Buffer
	originalStdout := versionCmd.OutOrStdout()
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(originalStdout)

	if err := versionCmd.RunE(versionCmd, []string{}); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	output := buf.String()
	if !strings.HasPrefix(output, "sgb version ") {
		t.Errorf("Unexpected version output: %q", output)
	}
	if !strings.Contains(output, "commit:") {
		t.Errorf("Version output missing commit line: %q", output)
	}
}

func TestVersionOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	originalStdout := versionCmd.OutOrStdout()
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(originalStdout)

	versionOutputJSON = true
	defer func() { versionOutputJSON = false }()

	if err := versionCmd.RunE(versionCmd, []string{}); err != nil {
		t.Fatalf("version command with --output-json failed: %v", err)
	}

	var info map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("version --output-json produced invalid JSON: %v\nOutput:\n%s", err, buf.String())
	}

	if info["service_name"] != "sgb-cli" {
		t.Errorf("Unexpected service_name: %v", info["service_name"])
	}
}

func TestConfigCommandStructure(t *testing.T) {
	if configCmd.Use != "config" {
		t.Errorf("Unexpected Use: %s", configCmd.Use)
	}

	expected := map[string]bool{"show": false, "init": false, "set": false}
	for _, sub := range configCmd.Commands() {
		if _, ok := expected[sub.Name()]; ok {
			expected[sub.Name()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("config subcommand %q not registered", name)
		}
	}
}

func TestCompletionCommandArgs(t *testing.T) {
	if err := completionCmd.Args(completionCmd, []string{"bash"}); err != nil {
		t.Errorf("completion should accept bash: %v", err)
	}
	if err := completionCmd.Args(completionCmd, []string{"tcsh"}); err == nil {
		t.Error("completion should reject unknown shells")
	}
	if err := completionCmd.Args(completionCmd, []string{}); err == nil {
		t.Error("completion should require a shell argument")
	}
}

func TestParseBoolValue(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"1", true, false},
		{"false", false, false},
		{"0", false, false},
		{"yes", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		got, err := parseBoolValue(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseBoolValue(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBoolValue(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseBoolValue(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
