package casper

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubLookPath makes New accept any command name without touching $PATH.
func stubLookPath(t testing.TB) {
	t.Helper()
	original := lookPath
	lookPath = func(file string) (string, error) { return "/usr/local/bin/" + file, nil }
	t.Cleanup(func() { lookPath = original })
}

// recordingRunner captures what the driver hands to its runner.
type recordingRunner struct {
	calls  int
	script string
	args   []string
	lines  []string
	err    error
}

func (r *recordingRunner) Run(_ context.Context, script string, args []string) ([]string, error) {
	r.calls++
	r.script = script
	r.args = args
	return r.lines, r.err
}

// newTestDriver returns a driver with a stubbed binary and a recording runner.
func newTestDriver(t *testing.T) (*Driver, *recordingRunner) {
	t.Helper()
	stubLookPath(t)
	runner := &recordingRunner{}
	d, err := New("casperjs", WithRunner(runner), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return d, runner
}

// requireShell skips tests that need a POSIX shell to fake the engine.
func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}
