//go:build windows

package flock

import (
	"fmt"
	"os/exec"
	"strings"
)

// isProcessRunning checks if a process with the given PID is running.
// os.FindProcess always succeeds on Windows regardless of whether the
// process exists, so query tasklist instead.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	cmd := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/NH")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	// tasklist prints "INFO: No tasks..." when the PID is not found
	return strings.Contains(string(output), fmt.Sprintf("%d", pid))
}
