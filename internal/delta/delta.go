// Package delta stores non-destructive updates as immutable pipe-delimited
// records, registered in a manifest and rendered into a single prompt block.
package delta

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/jsonstore"
)

// DefaultValueMode is how a delta value is encoded when not specified.
const DefaultValueMode = "RAW"

// manifest is the _manifest.json document. Besides the two fixed keys it
// carries arbitrary named sections, preserved through load and save.
type manifest struct {
	Deltas       []string
	SimpleDeltas map[string]string
	Sections     map[string]any
}

func (m manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Sections)+2)
	for name, v := range m.Sections {
		out[name] = v
	}
	deltas := m.Deltas
	if deltas == nil {
		deltas = []string{}
	}
	out["deltas"] = deltas
	if len(m.SimpleDeltas) > 0 {
		out["simple_deltas"] = m.SimpleDeltas
	}
	return json.Marshal(out)
}

func (m *manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = manifest{}
	if d, ok := raw["deltas"]; ok {
		if err := json.Unmarshal(d, &m.Deltas); err != nil {
			return fmt.Errorf("manifest deltas list: %w", err)
		}
		delete(raw, "deltas")
	}
	if sd, ok := raw["simple_deltas"]; ok {
		if err := json.Unmarshal(sd, &m.SimpleDeltas); err != nil {
			return fmt.Errorf("manifest simple_deltas: %w", err)
		}
		delete(raw, "simple_deltas")
	}
	for name, v := range raw {
		var section any
		if err := json.Unmarshal(v, &section); err != nil {
			return fmt.Errorf("manifest section %q: %w", name, err)
		}
		if m.Sections == nil {
			m.Sections = make(map[string]any)
		}
		m.Sections[name] = section
	}
	return nil
}

// Store manages the deltas directory: date-partitioned immutable delta
// files plus the manifest that references them.
type Store struct {
	baseDir  string
	manifest *jsonstore.Store[manifest]
}

// New returns a Store rooted at baseDir (e.g. <workspace>/deltas).
func New(baseDir string, lockTimeout time.Duration) *Store {
	return &Store{
		baseDir:  baseDir,
		manifest: jsonstore.NewDurable[manifest](filepath.Join(baseDir, "_manifest.json"), lockTimeout),
	}
}

// Append writes one immutable delta record and registers it in the
// manifest. Returns the path of the new delta file. The file itself is
// never rewritten afterwards; only the manifest's reference list grows.
func (s *Store) Append(key, scope, target, op, path, value, valueMode string) (string, error) {
	if valueMode == "" {
		valueMode = DefaultValueMode
	}
	now := time.Now().UTC()
	dateDir := filepath.Join(s.baseDir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("creating delta date dir: %w", err)
	}

	name := fmt.Sprintf("delta_%s%06d_%s.txt", now.Format("20060102T150405"), now.Nanosecond()/1000, randHex(4))
	fullPath := filepath.Join(dateDir, name)
	record := fmt.Sprintf("DELTA|%s|%s|%s|%s|%s|%s|%s", key, scope, target, op, path, valueMode, value)

	if err := writeDurable(fullPath, []byte(record)); err != nil {
		return "", fmt.Errorf("writing delta file: %w", err)
	}

	// Manifest paths use forward slashes so workspaces move cleanly
	// between platforms.
	rel, err := filepath.Rel(s.baseDir, fullPath)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)

	err = s.manifest.Update(func(m manifest) (manifest, error) {
		m.Deltas = append(m.Deltas, rel)
		return m, nil
	})
	if err != nil {
		return "", fmt.Errorf("registering delta in manifest: %w", err)
	}
	debug.Logf("created delta %s", rel)
	return fullPath, nil
}

// SetSimple records the latest value of a frequently-changing trait
// directly in the manifest. No delta file is written; the previous value
// is overwritten.
func (s *Store) SetSimple(trait, rendered string) error {
	return s.manifest.Update(func(m manifest) (manifest, error) {
		if m.SimpleDeltas == nil {
			m.SimpleDeltas = make(map[string]string)
		}
		m.SimpleDeltas[trait] = rendered
		return m, nil
	})
}

// SetSection sets one key of a named dict section, creating the section on
// first use. A section that already holds a non-dict shape is replaced
// with a warning.
func (s *Store) SetSection(section, key string, value any) error {
	return s.manifest.Update(func(m manifest) (manifest, error) {
		if m.Sections == nil {
			m.Sections = make(map[string]any)
		}
		dict, ok := m.Sections[section].(map[string]any)
		if !ok {
			if _, exists := m.Sections[section]; exists {
				debug.Warnf("manifest section %q is not a dict, replacing", section)
			}
			dict = make(map[string]any)
		}
		dict[key] = value
		m.Sections[section] = dict
		return m, nil
	})
}

// AppendSection appends a value to a named list section, creating the
// section on first use. A section that already holds a non-list shape is
// replaced with a warning.
func (s *Store) AppendSection(section string, value any) error {
	return s.manifest.Update(func(m manifest) (manifest, error) {
		if m.Sections == nil {
			m.Sections = make(map[string]any)
		}
		list, ok := m.Sections[section].([]any)
		if !ok {
			if _, exists := m.Sections[section]; exists {
				debug.Warnf("manifest section %q is not a list, replacing", section)
			}
			list = nil
		}
		m.Sections[section] = append(list, value)
		return m, nil
	})
}

// Render concatenates every registered delta record, every simple delta,
// and every free-form section into one marked block for prompt injection.
// Returns "" when there is nothing to inject; callers omit the block
// rather than treating that as an error.
func (s *Store) Render() string {
	m := s.manifest.Read()

	var parts []string
	for _, rel := range m.Deltas {
		full := filepath.Join(s.baseDir, filepath.FromSlash(rel))
		data, err := os.ReadFile(full) // #nosec G304 - manifest-listed path under baseDir
		if err != nil {
			debug.Warnf("delta file listed in manifest not readable: %s", full)
			continue
		}
		parts = append(parts, string(data))
	}

	for _, trait := range sortedKeys(m.SimpleDeltas) {
		parts = append(parts, m.SimpleDeltas[trait])
	}

	for _, name := range sortedKeys(m.Sections) {
		parts = append(parts, renderSection(name, m.Sections[name]))
	}

	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("###DELTAS_START###\n%s\n###DELTAS_END###", strings.Join(parts, "\n"))
}

func renderSection(name string, content any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "###%s_START###\n", strings.ToUpper(name))
	switch v := content.(type) {
	case map[string]any:
		for _, key := range sortedKeys(v) {
			fmt.Fprintf(&b, "%s: %v\n", key, v[key])
		}
	case []any:
		for _, item := range v {
			fmt.Fprintf(&b, "%v\n", item)
		}
	default:
		fmt.Fprintf(&b, "%v\n", v)
	}
	b.WriteString("###_END###")
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// writeDurable writes data to path via a temp file in the same directory,
// fsyncs, then renames into place.
func writeDurable(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func randHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// Fall back to a timestamp-derived suffix; uniqueness is already
		// mostly carried by the microsecond timestamp.
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(b)
}
