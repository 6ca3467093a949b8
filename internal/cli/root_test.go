package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fastweigh", cmd.Use)
	assert.Contains(t, cmd.Long, "GraphQL")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"sync", "model", "alerts", "report", "run", "schedule"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "config.yaml", configFlag.DefValue)

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestSyncCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	syncCmd, _, err := cmd.Find([]string{"sync"})
	require.NoError(t, err)

	require.NotNil(t, syncCmd.Flags().Lookup("entities"))
	require.NotNil(t, syncCmd.Flags().Lookup("start"))
	require.NotNil(t, syncCmd.Flags().Lookup("end"))
}

func TestAlertsCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	alertsCmd, _, err := cmd.Find([]string{"alerts"})
	require.NoError(t, err)

	notifyFlag := alertsCmd.Flags().Lookup("notify")
	require.NotNil(t, notifyFlag)
	assert.Equal(t, "false", notifyFlag.DefValue)
}

func TestScheduleCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	scheduleCmd, _, err := cmd.Find([]string{"schedule"})
	require.NoError(t, err)

	intervalFlag := scheduleCmd.Flags().Lookup("interval")
	require.NotNil(t, intervalFlag)
	assert.Equal(t, "1h0m0s", intervalFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "model"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseTimeFlag("2026-01-15")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2026-01-15T00:00:00Z", got.Format("2006-01-02T15:04:05Z07:00"))

	got, err = parseTimeFlag("2026-01-15T10:30:00Z")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.Hour())

	_, err = parseTimeFlag("not-a-date")
	require.Error(t, err)
}
