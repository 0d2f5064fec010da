package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("from", "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("from", "2024-02-29T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 15, 4, 5, 0, time.UTC), got)

	got, err = parseDate("from", "")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseDate("as-of", "02/29/2024")
	assert.ErrorContains(t, err, "--as-of")
}

func TestCommandTree(t *testing.T) {
	want := []string{
		"analyze", "clean-db", "export", "fetch-weather", "ingest-settlements",
		"ingest-ticks", "init-db", "run", "show", "simulate-alert", "verify-db", "version",
	}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "version: dev")
}

func TestCleanDBRequiresConfirmation(t *testing.T) {
	rootCmd.SetArgs([]string{"clean-db", "--recreate"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "--yes")
}
