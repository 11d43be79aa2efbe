// File: internal/casper/errors.go
package casper

import "fmt"

// ConfigurationError reports that the engine binary cannot be used at all.
// It is raised by New, before any script is built, and is never retried.
type ConfigurationError struct {
	Command string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("casperjs command %q is not executable: %v", e.Command, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InvocationError reports that the engine process could not be started.
// A process that starts and exits non-zero is not an InvocationError; its
// outcome is recovered from the captured output instead.
type InvocationError struct {
	Command string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("failed to invoke %q: %v", e.Command, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ResourceError reports a failure to write or remove the transient script file.
type ResourceError struct {
	Op   string // "write" or "remove"
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("failed to %s script file %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// DataError reports a cookie file that exists but does not hold valid JSON.
// LoadCookies absorbs it (logging only); it is exported so callers that read
// cookie files themselves through DecodeCookies can match it.
type DataError struct {
	Path string
	Err  error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("invalid cookie data in %s: %v", e.Path, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }
