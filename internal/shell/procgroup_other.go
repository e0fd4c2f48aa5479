//go:build !unix

package shell

import "os/exec"

// killProcessGroup is a no-op where process groups are unavailable;
// cancellation kills the direct child only.
func killProcessGroup(cmd *exec.Cmd) {}
