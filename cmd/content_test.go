package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestContentCommand tests the parent content command structure.
func TestContentCommand(t *testing.T) {
	cmd := NewContentCommand()

	assert.NotNil(t, cmd)
	assert.Equal(t, "content", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}

// TestContentCommand_HasSubcommands verifies add and list subcommands exist.
func TestContentCommand_HasSubcommands(t *testing.T) {
	cmd := NewContentCommand()

	addFound := false
	listFound := false
	for _, sub := range cmd.Commands() {
		switch sub.Use {
		case "add":
			addFound = true
		case "list":
			listFound = true
		}
	}

	assert.True(t, addFound, "content command should have 'add' subcommand")
	assert.True(t, listFound, "content command should have 'list' subcommand")
}

// TestContentAddCommand_Flags verifies the add subcommand flags.
func TestContentAddCommand_Flags(t *testing.T) {
	cmd := NewContentCommand()

	addCmd, _, err := cmd.Find([]string{"add"})
	require.NoError(t, err)
	require.NotNil(t, addCmd)

	for _, name := range []string{
		"key", "occurred", "channel", "type", "theme", "title", "url",
		"views", "reactions", "comments", "shares", "clicks",
	} {
		flag := addCmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "content add should have --%s flag", name)
	}

	assert.Equal(t, "int64", addCmd.Flags().Lookup("views").Value.Type())
}

// TestContentListCommand_Flags verifies the list subcommand flags.
func TestContentListCommand_Flags(t *testing.T) {
	cmd := NewContentCommand()

	listCmd, _, err := cmd.Find([]string{"list"})
	require.NoError(t, err)
	require.NotNil(t, listCmd)

	for _, name := range []string{"channel", "type", "theme", "from", "until", "limit", "output"} {
		flag := listCmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "content list should have --%s flag", name)
	}
}
