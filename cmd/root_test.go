package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"brief", "serve", "history"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "deal-briefing", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestBriefCommand_Flags(t *testing.T) {
	for _, name := range []string{"limit", "email-days", "max-emails", "json", "verbose", "xlsx", "save"} {
		require.NotNil(t, briefCmd.Flags().Lookup(name), "brief should have --%s", name)
	}
	assert.Equal(t, "false", briefCmd.Flags().Lookup("json").DefValue)
}

func TestBriefCommand_BoundsDefaultFromConfig(t *testing.T) {
	for _, name := range []string{"limit", "email-days", "max-emails"} {
		flag := briefCmd.Flags().Lookup(name)
		require.NotNil(t, flag)
		assert.Equal(t, "0", flag.DefValue, "--%s must not advertise a literal default", name)
		assert.Contains(t, flag.Usage, "default from config")
	}
	assert.NotContains(t, briefCmd.Flags().FlagUsages(), "(default 10)")
	assert.NotContains(t, briefCmd.Flags().FlagUsages(), "(default 90)")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestHistoryCommand(t *testing.T) {
	require.NotNil(t, historyCmd.Flags().Lookup("status"))
	assert.Equal(t, "20", historyCmd.Flags().Lookup("limit").DefValue)

	var hasShow bool
	for _, c := range historyCmd.Commands() {
		if c.Name() == "show" {
			hasShow = true
		}
	}
	assert.True(t, hasShow)
}
