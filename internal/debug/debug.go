// Package debug provides env-gated diagnostic logging and the shared
// events.log appender used by the watchers and the CLI.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	enabled     = os.Getenv("LOOM_DEBUG") != ""
	verboseMode = false
	quietMode   = false
	logMutex    sync.Mutex
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// Warnf always writes to stderr. The coordination core degrades to
// "log and continue" on almost every failure, so warnings are the one
// user-visible error surface and are never gated behind LOOM_DEBUG.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// PrintNormal prints output unless quiet mode is enabled
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// LogEvent appends an event to <root>/events.log.
// Format: TIMESTAMP|EVENT_CODE|SUBJECT|DETAILS
func LogEvent(root, eventCode, subject, details string) {
	logPath := filepath.Join(root, "events.log")

	logMutex.Lock()
	defer logMutex.Unlock()

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		// Silent fail: the event log is advisory
		return
	}
	defer f.Close()

	timestamp := time.Now().Format(time.RFC3339)
	fmt.Fprintf(f, "%s|%s|%s|%s\n", timestamp, eventCode, subject, details)
}
