// File: internal/casper/runner.go
package casper

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner executes a finalized script and returns every line the engine
// wrote to stdout, in order.
type Runner interface {
	Run(ctx context.Context, script string, args []string) ([]string, error)
}

// maxLineSize bounds a single output line. PAGE_CONTENT carries a whole
// page on one line, so the bufio default of 64KiB is far too small.
const maxLineSize = 64 << 20

// execCommandContext is swapped out in tests.
var execCommandContext = exec.CommandContext

// waitDelay bounds how long Run waits for output after the engine exits or
// the context is done.
var waitDelay = 2 * time.Second

// ProcessRunner runs scripts with the casperjs binary. Each Run writes its own
// uniquely named script file and removes it before returning.
type ProcessRunner struct {
	command string
	tempDir string
	logger  *zap.Logger
}

// NewProcessRunner returns a runner for command. An empty tempDir means
// os.TempDir().
func NewProcessRunner(command, tempDir string, logger *zap.Logger) *ProcessRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessRunner{
		command: command,
		tempDir: tempDir,
		logger:  logger.Named("runner"),
	}
}

// Run writes script to a transient file and invokes
// `<command> <file> <args...>`. A non-zero exit status is logged but not
// returned: the outcome of the run is read from its output.
func (r *ProcessRunner) Run(ctx context.Context, script string, args []string) (lines []string, err error) {
	path, err := r.writeScript(script)
	if err != nil {
		return nil, err
	}
	defer r.removeScript(path)

	cmd := execCommandContext(ctx, r.command, append([]string{path}, args...)...)
	// casperjs starts phantomjs as a child. Cancel kills the whole group, and
	// WaitDelay stops Wait from blocking on pipes an orphan still holds.
	setProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	var g errgroup.Group
	g.Go(func() error {
		return scanLines(stdoutR, func(line string) { lines = append(lines, line) })
	})
	g.Go(func() error {
		return scanLines(stderrR, func(line string) {
			r.logger.Debug("casperjs stderr", zap.String("line", line))
		})
	})

	var waitErr error
	if startErr := cmd.Start(); startErr != nil {
		waitErr = startErr
	} else {
		waitErr = cmd.Wait()
	}
	// Wait has returned, so nothing writes to the pipes any more.
	stdoutW.Close()
	stderrW.Close()
	readErr := g.Wait()

	if cmd.Process == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &InvocationError{Command: r.command, Err: waitErr}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return lines, ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(waitErr, exec.ErrWaitDelay):
		r.logger.Warn("casperjs left its output open after exiting.", zap.Duration("wait_delay", waitDelay))
	case errors.As(waitErr, &exitErr):
		r.logger.Warn("casperjs exited with non-zero status.",
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.Int("lines", len(lines)),
		)
	case waitErr != nil:
		return lines, &InvocationError{Command: r.command, Err: waitErr}
	}
	if readErr != nil {
		r.logger.Warn("Failed to read all casperjs output.", zap.Error(readErr))
	}
	return lines, nil
}

func (r *ProcessRunner) writeScript(script string) (string, error) {
	dir := r.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "casperjs-"+uuid.NewString()+".js")
	// O_EXCL guards against a (very unlikely) name collision with another run.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", &ResourceError{Op: "write", Path: path, Err: err}
	}
	_, werr := f.WriteString(script)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return "", &ResourceError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}

// removeScript never fails the run; a leftover file is reported in the logs.
func (r *ProcessRunner) removeScript(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("Failed to remove casperjs script file.",
			zap.Error(&ResourceError{Op: "remove", Path: path, Err: err}),
		)
	}
}

func scanLines(rd io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		// Drain the pipe so the process is never blocked on a full buffer.
		_, _ = io.Copy(io.Discard, rd)
		return err
	}
	return nil
}
