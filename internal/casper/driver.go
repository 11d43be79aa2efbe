// File: internal/casper/driver.go
package casper

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// DefaultCommand is the engine binary looked up on $PATH when none is given.
const DefaultCommand = "casperjs"

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// Driver assembles a CasperJS script through chained builder calls and runs
// it with the configured Runner.
//
// A Driver is not safe for concurrent use. Concurrent runs should each use
// their own Driver.
type Driver struct {
	command string
	script  *Script
	options *Options
	runner  Runner
	tempDir string
	logger  *zap.Logger
}

// DriverOption customizes a Driver created by New.
type DriverOption func(*Driver)

// WithLogger sets the logger used by the driver and its default runner.
func WithLogger(logger *zap.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRunner replaces the process runner, mostly for tests.
func WithRunner(r Runner) DriverOption {
	return func(d *Driver) { d.runner = r }
}

// WithTempDir sets the directory the transient script file is written to.
func WithTempDir(dir string) DriverOption {
	return func(d *Driver) { d.tempDir = dir }
}

// New resolves command on the search path and returns an empty driver.
// An empty command means DefaultCommand. If the command cannot be found or
// is not executable a *ConfigurationError is returned and nothing is built.
func New(command string, opts ...DriverOption) (*Driver, error) {
	if command == "" {
		command = DefaultCommand
	}
	expanded, err := homedir.Expand(command)
	if err != nil {
		return nil, &ConfigurationError{Command: command, Err: err}
	}
	resolved, err := lookPath(expanded)
	if err != nil {
		return nil, &ConfigurationError{Command: command, Err: err}
	}

	d := &Driver{
		command: resolved,
		script:  newScript(),
		options: NewOptions(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("casper")
	if d.runner == nil {
		d.runner = NewProcessRunner(resolved, d.tempDir, d.logger)
	}
	return d, nil
}

// Command returns the resolved path of the engine binary.
func (d *Driver) Command() string { return d.command }

// Options exposes the engine's command-line flags.
func (d *Driver) Options() *Options { return d.options }

// Script returns the script assembled so far, without the closing fragment.
// It does not modify the driver.
func (d *Driver) Script() string { return d.script.String() }

// FinalScript returns the script exactly as Run would execute it, closing
// step included. It does not modify the driver.
func (d *Driver) FinalScript() string { return d.script.Finalized() }

// Fragments returns the assembled fragments, preamble first.
func (d *Driver) Fragments() []string { return d.script.Fragments() }

// AddOption sets a casperjs command-line flag; see Options.AddOption.
func (d *Driver) AddOption(name string, value any) *Driver {
	d.options.AddOption(name, value)
	return d
}

// UseProxy routes the engine through proxy (host:port).
func (d *Driver) UseProxy(proxy string) *Driver {
	return d.AddOption("proxy", proxy)
}

// OpenOptions are the settings passed to casper.open (method, data,
// headers, ...). The zero value means "no options" and renders as null;
// WithOpenOptions(nil) renders as an empty object.
type OpenOptions struct {
	values  map[string]any
	present bool
}

// NoOpenOptions returns the absent option set.
func NoOpenOptions() OpenOptions { return OpenOptions{} }

// WithOpenOptions returns a present option set, even when values is empty.
func WithOpenOptions(values map[string]any) OpenOptions {
	return OpenOptions{values: values, present: true}
}

// IsSet reports whether options were given.
func (o OpenOptions) IsSet() bool { return o.present }

func (o OpenOptions) render() (string, error) {
	if !o.present {
		return "null", nil
	}
	if len(o.values) == 0 {
		return "{}", nil
	}
	return jsValue(o.values)
}

// Start opens url once the engine has started.
func (d *Driver) Start(url string, options OpenOptions) *Driver {
	rendered, err := options.render()
	if err != nil {
		d.logger.Error("Failed to encode open options, using null.", zap.String("url", url), zap.Error(err))
		rendered = "null"
	}
	d.script.append(`
casper.start().then(function() {
    this.open(` + jsString(url) + `, ` + rendered + `);
});
`)
	return d
}

// SetUserAgent sets the User-Agent the engine sends.
func (d *Driver) SetUserAgent(agent string) *Driver {
	d.script.append("\ncasper.userAgent(" + jsString(agent) + ");\n")
	return d
}

// Evaluate runs code inside the page. code is trusted JavaScript and is
// inserted verbatim.
func (d *Driver) Evaluate(code string) *Driver {
	d.script.append(`
casper.then(function() {
    casper.evaluate(function() {
        ` + code + `
    });
});
`)
	return d
}

// WaitForSelector waits up to timeoutMs for selector to appear. On timeout
// the script prints a TIMEOUT line naming the selector and the bound.
func (d *Driver) WaitForSelector(selector string, timeoutMs int) *Driver {
	sel := jsString(selector)
	d.script.append(fmt.Sprintf(`
casper.waitForSelector(
    %[1]s,
    function () {
        this.echo('found selector "' + %[1]s + '"');
    },
    function () {
        this.echo('%[2]s' + %[1]s + ' not found after %[3]d ms');
    },
    %[3]d
);
`, sel, TagTimeout, timeoutMs))
	return d
}

// SetViewPort resizes the viewport. Sizes are passed through unchecked.
func (d *Driver) SetViewPort(width, height int) *Driver {
	d.script.append(fmt.Sprintf(`
casper.then(function () {
    this.viewport(%d, %d);
});
`, width, height))
	return d
}

// Wait pauses for timeoutMs and then prints a TIMEOUT line with the bound.
func (d *Driver) Wait(timeoutMs int) *Driver {
	d.script.append(fmt.Sprintf(`
casper.wait(
    %[2]d,
    function () {
        this.echo('%[1]safter waiting %[2]d ms');
    }
);
`, TagTimeout, timeoutMs))
	return d
}

// WaitDuration is Wait for a time.Duration, truncated to milliseconds.
func (d *Driver) WaitDuration(timeout time.Duration) *Driver {
	return d.Wait(int(timeout / time.Millisecond))
}

// Click clicks the first element matching selector. A missing element is the
// engine's problem and shows up in its log output.
func (d *Driver) Click(selector string) *Driver {
	d.script.append(`
casper.then(function() {
    this.click(` + jsString(selector) + `);
});
`)
	return d
}

// AppendToScript appends raw CasperJS code, uninterpreted.
func (d *Driver) AppendToScript(code string) *Driver {
	d.script.append(code + "\n")
	return d
}

// Run finalizes the script, executes it and parses the engine's output.
// The driver keeps its script, so Run may be called again.
func (d *Driver) Run(ctx context.Context) (*Output, error) {
	args := d.options.Args()
	d.logger.Debug("Running casperjs script.",
		zap.String("command", d.command),
		zap.Int("fragments", len(d.script.fragments)),
		zap.Strings("args", args),
	)

	start := time.Now()
	lines, err := d.runner.Run(ctx, d.script.Finalized(), args)
	if err != nil {
		return nil, err
	}

	out := ParseOutput(lines)
	d.logger.Debug("casperjs run finished.",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("lines", len(lines)),
		zap.Int("timeouts", len(out.Timeouts())),
	)
	return out, nil
}
