package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a minimal valid tenant config pointing at a temp
// warehouse and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`tenant_name: test-tenant
graphql_endpoint: https://example.com/graphql
warehouse_path: %s
output_dir: %s
entities:
  tickets:
    query_file: %s
    root_path: data.tickets.nodes
    page_info_path: data.tickets.pageInfo
`,
		filepath.Join(dir, "warehouse.db"),
		filepath.Join(dir, "output"),
		filepath.Join(dir, "tickets.graphql"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestModelCommand_EmptyWarehouse(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "model")
	require.NoError(t, err)
	assert.Contains(t, out, "rebuild complete")
	assert.Contains(t, out, "silver_tickets: 0 rows")
}

func TestModelCommand_JSONOutput(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "--config", cfgPath, "--format", "json", "model")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestAlertsCommand_AfterModel(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := execute(t, "--config", cfgPath, "model")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfgPath, "alerts")
	require.NoError(t, err)
	assert.Contains(t, out, "no alerts triggered")
}

func TestAlertsCommand_WithoutModelFails(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := execute(t, "--config", cfgPath, "alerts")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestReportCommand_AfterModel(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := execute(t, "--config", cfgPath, "model")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfgPath, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "exported 4 report(s)")
}

func TestSyncCommand_MissingAPIKey(t *testing.T) {
	cfgPath := writeTestConfig(t)
	t.Setenv("FASTWEIGH_API_KEY", "")

	_, err := execute(t, "--config", cfgPath, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "API key")
}

func TestCommands_MissingConfig(t *testing.T) {
	_, err := execute(t, "--config", "/nonexistent/config.yaml", "model")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSyncCommand_InvalidStartFlag(t *testing.T) {
	cfgPath := writeTestConfig(t)
	t.Setenv("FASTWEIGH_API_KEY", "k")

	_, err := execute(t, "--config", cfgPath, "sync", "--start", "garbage")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
