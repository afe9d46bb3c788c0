package flagfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWordMissingFile(t *testing.T) {
	assert.Equal(t, "", ReadWord(filepath.Join(t.TempDir(), "absent.txt")))
}

func TestWordRoundTripTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags", "status.txt")
	WriteWord(path, "idle")
	assert.Equal(t, "idle", ReadWord(path))

	require.NoError(t, os.WriteFile(path, []byte("  busy\n"), 0644))
	assert.Equal(t, "busy", ReadWord(path))
}

func TestTextKeepsRawContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	WriteText(path, "line one\nline two\n")
	assert.Equal(t, "line one\nline two\n", ReadText(path))
}

func TestJSONRoundTrip(t *testing.T) {
	type record struct {
		Name string `json:"name"`
		Step int    `json:"step"`
	}
	path := filepath.Join(t.TempDir(), "state.json")

	var out record
	assert.False(t, ReadJSON(path, &out), "missing file is no signal")

	WriteJSON(path, record{Name: "review", Step: 2})
	require.True(t, ReadJSON(path, &out))
	assert.Equal(t, record{Name: "review", Step: 2}, out)
}

func TestReadJSONToleratesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0644))

	var out map[string]any
	assert.False(t, ReadJSON(path, &out))

	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0644))
	assert.False(t, ReadJSON(path, &out), "empty content is no signal")
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flag.txt")
	WriteWord(path, "x")
	Remove(path)
	assert.NoFileExists(t, path)

	// Removing a missing flag is quiet.
	Remove(path)
}
