// File: cmd/root_test.go
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	stdout, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", stdout)
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", stdout)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	cfgFile := createTempConfig(t, "fetch:\n  concurrency: 0\n")
	_, _, err := executeCommand(t, "--config", cfgFile, "script", "http://x/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency must be a positive integer")
}

func TestRootCmd_UnreadableConfig(t *testing.T) {
	cfgFile := createTempConfig(t, "fetch: [unclosed\n")
	_, _, err := executeCommand(t, "--config", cfgFile, "script", "http://x/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestRootCmd_LogsToStderr(t *testing.T) {
	engine := fakeEngine(t, pageOutput)
	stdout, stderr, err := executeCommand(t, "--log-level", "debug", "fetch", "--command", engine, "http://example.test/")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Starting casperjs-driver")
	assert.NotContains(t, stdout, "Starting casperjs-driver")
}
