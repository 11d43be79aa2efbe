//go:build !unix

// File: internal/casper/runner_other.go
package casper

import "os/exec"

// setProcessGroup keeps the default Cancel, which kills only the engine.
// WaitDelay still bounds the wait for its children's output.
func setProcessGroup(*exec.Cmd) {}
