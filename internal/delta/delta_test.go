package delta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "deltas"), 5*time.Second)
}

func TestAppendWritesRecordAndManifest(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Append("P-001", "memory", "user_profile", "set", "name", "Ada", "")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DELTA|P-001|memory|user_profile|set|name|RAW|Ada", string(data))

	rel, err := filepath.Rel(s.baseDir, path)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}/\d{2}/\d{2}/delta_\d{8}T\d{12}_[0-9a-f]{8}\.txt$`), filepath.ToSlash(rel))

	raw, err := os.ReadFile(filepath.Join(s.baseDir, "_manifest.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	deltas, ok := doc["deltas"].([]any)
	require.True(t, ok)
	require.Len(t, deltas, 1)
	assert.Equal(t, filepath.ToSlash(rel), deltas[0])
	assert.NotContains(t, deltas[0], `\`, "manifest paths use forward slashes")
}

func TestAppendAccumulatesInOrder(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Append(fmt.Sprintf("K-%03d", i), "memory", "t", "append", "p", fmt.Sprintf("v%d", i), "RAW")
		require.NoError(t, err)
	}

	out := s.Render()
	require.NotEmpty(t, out)
	assert.True(t, strings.HasPrefix(out, "###DELTAS_START###\n"))
	assert.True(t, strings.HasSuffix(out, "\n###DELTAS_END###"))

	i0 := strings.Index(out, "K-000")
	i1 := strings.Index(out, "K-001")
	i2 := strings.Index(out, "K-002")
	require.NotEqual(t, -1, i0)
	assert.Less(t, i0, i1)
	assert.Less(t, i1, i2)
}

func TestRenderEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, "", s.Render())
}

func TestRenderIdempotent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append("K-001", "memory", "t", "set", "p", "v", "RAW")
	require.NoError(t, err)
	require.NoError(t, s.SetSimple("warmth", "warmth: high"))
	require.NoError(t, s.SetSection("profile", "name", "Ada"))
	require.NoError(t, s.AppendSection("notes", "likes tea"))

	first := s.Render()
	second := s.Render()
	assert.Equal(t, first, second, "render must be byte-identical without intervening mutation")
}

func TestRenderSkipsMissingFiles(t *testing.T) {
	s := newTestStore(t)
	keep, err := s.Append("K-001", "memory", "t", "set", "p", "kept", "RAW")
	require.NoError(t, err)
	gone, err := s.Append("K-002", "memory", "t", "set", "p", "lost", "RAW")
	require.NoError(t, err)
	require.NoError(t, os.Remove(gone))
	_ = keep

	out := s.Render()
	assert.Contains(t, out, "kept")
	assert.NotContains(t, out, "lost")
}

func TestSetSimpleLatestValueWins(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetSimple("warmth", "warmth: low"))
	require.NoError(t, s.SetSimple("warmth", "warmth: high"))

	out := s.Render()
	assert.Contains(t, out, "warmth: high")
	assert.NotContains(t, out, "warmth: low")
}

func TestSectionRendering(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetSection("profile", "name", "Ada"))
	require.NoError(t, s.SetSection("profile", "role", "engineer"))
	require.NoError(t, s.AppendSection("notes", "first"))
	require.NoError(t, s.AppendSection("notes", "second"))

	out := s.Render()
	assert.Contains(t, out, "###PROFILE_START###\nname: Ada\nrole: engineer\n###_END###")
	assert.Contains(t, out, "###NOTES_START###\nfirst\nsecond\n###_END###")
}

func TestSectionShapeCoercion(t *testing.T) {
	s := newTestStore(t)

	// List first, then treated as dict: replaced.
	require.NoError(t, s.AppendSection("mixed", "item"))
	require.NoError(t, s.SetSection("mixed", "key", "value"))
	out := s.Render()
	assert.Contains(t, out, "key: value")
	assert.NotContains(t, out, "item")

	// Dict first, then appended to as list: replaced the other way.
	require.NoError(t, s.SetSection("other", "key", "value"))
	require.NoError(t, s.AppendSection("other", "entry"))
	out = s.Render()
	assert.Contains(t, out, "###OTHER_START###\nentry\n###_END###")
}

func TestManifestPreservesUnknownSections(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deltas")
	require.NoError(t, os.MkdirAll(dir, 0755))
	seed := `{"deltas": [], "custom": {"k": "v"}, "simple_deltas": {"t": "t: x"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_manifest.json"), []byte(seed), 0644))

	s := New(dir, 5*time.Second)
	require.NoError(t, s.SetSimple("u", "u: y"))

	raw, err := os.ReadFile(filepath.Join(dir, "_manifest.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "custom", "free-form sections survive a rewrite")
	assert.Equal(t, map[string]any{"k": "v"}, doc["custom"])
	sd, ok := doc["simple_deltas"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "t: x", sd["t"])
	assert.Equal(t, "u: y", sd["u"])
}

func TestDeltaFilesNeverRewritten(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Append("K-001", "memory", "t", "set", "p", "v", "RAW")
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = s.Append("K-002", "memory", "t", "set", "p", "w", "RAW")
	require.NoError(t, err)
	require.NoError(t, s.SetSimple("a", "a: b"))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
