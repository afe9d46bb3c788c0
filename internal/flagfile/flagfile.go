// Package flagfile reads and writes the single-word status files and small
// JSON flags the processes signal each other through.
//
// Flag reads never fail: missing or garbled content means "no signal yet"
// and the watcher simply waits for the next poll. Flag writes are
// best-effort; failures are logged and swallowed.
package flagfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmstrand/loom/internal/debug"
)

// ReadWord returns the trimmed content of a status file, or "" when the
// file is missing or unreadable.
func ReadWord(path string) string {
	data, err := os.ReadFile(path) // #nosec G304 - workspace-controlled path
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// WriteWord writes a status word, creating parent directories as needed.
func WriteWord(path, word string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		debug.Warnf("could not create flag dir for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, []byte(word), 0644); err != nil {
		debug.Warnf("could not write flag %s: %v", path, err)
	}
}

// ReadText returns the raw content of a text flag (e.g. the injected
// trigger prompt), or "" when missing or unreadable.
func ReadText(path string) string {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteText writes raw text content the same way WriteWord does.
func WriteText(path, content string) {
	WriteWord(path, content)
}

// ReadJSON decodes a JSON flag file into v. Returns false when the file is
// missing, empty, or corrupt - all treated as "no signal".
func ReadJSON(path string, v any) bool {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		debug.Logf("ignoring corrupt flag file %s: %v", path, err)
		return false
	}
	return true
}

// WriteJSON writes an indented JSON flag file, best-effort.
func WriteJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		debug.Warnf("could not marshal flag %s: %v", path, err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		debug.Warnf("could not create flag dir for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		debug.Warnf("could not write flag %s: %v", path, err)
	}
}

// Remove deletes a flag file, ignoring a missing file.
func Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		debug.Warnf("could not remove flag %s: %v", path, err)
	}
}
