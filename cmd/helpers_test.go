// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/casperjs-driver/internal/observability"
)

// lockedBuffer is written by the logger from several fetch goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// executeCommand runs a fresh command tree and returns stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	rootCmd := NewRootCommand()
	var stdout bytes.Buffer
	var stderr lockedBuffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// fakeEngine writes a shell script that stands in for casperjs and prints
// body on stdout.
func fakeEngine(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "casperjs")
	script := "#!/bin/sh\ncat <<'OUT'\n" + body + "\nOUT\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// createTempConfig writes content to a YAML file in a temp dir.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const pageOutput = `found selector "#main"
CURRENT_URL:http://example.test/final
PAGE_CONTENT:"<html><head><title>Example</title></head><body id=\"main\"></body></html>"`
