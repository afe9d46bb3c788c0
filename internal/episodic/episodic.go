// Package episodic persists one immutable flat-text file per chat turn,
// using a line-oriented tag grammar that tolerates hand edits.
package episodic

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmstrand/loom/internal/debug"
)

// Entry is one episodic memory record. Input, Output, SummaryHeading and
// Summary are always written; the remaining fields are optional.
type Entry struct {
	ID             string
	Time           string
	Mode           string
	Links          []string
	Input          string
	Think          string
	Output         string
	SummaryHeading string
	Summary        string
	ThinkingCycle  string
	Deltas         []string
	Keywords       []string
	Topics         []string

	// Filepath is set when the entry was read back from disk.
	Filepath string
}

// Log stores entries in a flat directory, one *.txt file each, and keeps
// the two append-only side files fed from entries.
type Log struct {
	dir        string
	reviewPath string
	quotesPath string
}

func NewLog(dir, reviewPath, quotesPath string) *Log {
	return &Log{dir: dir, reviewPath: reviewPath, quotesPath: quotesPath}
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func generateID(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	ms := now.Nanosecond() / 1e6
	return fmt.Sprintf("%s-%03d_%s", now.Format("20060102-150405"), ms, suffix)
}

// CreateEntry renders and writes a new entry file, filling in ID and Time.
// Entry files are written once and never rewritten.
func (l *Log) CreateEntry(e Entry) (string, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", fmt.Errorf("creating episodic dir: %w", err)
	}
	now := time.Now()
	e.ID = generateID(now)
	e.Time = now.Format("2006-01-02T15:04:05.000000")

	path := filepath.Join(l.dir, e.ID+".txt")
	if err := os.WriteFile(path, []byte(renderEntry(e)), 0644); err != nil {
		return "", fmt.Errorf("writing entry %s: %w", e.ID, err)
	}
	return e.ID, nil
}

// renderEntry produces the tag-grammar text. The closing tags are uneven
// on purpose (/end_summary closes both summary blocks, /topics closes
// with /end_topic): existing archives use exactly this grammar.
func renderEntry(e Entry) string {
	var b strings.Builder
	b.WriteString("/entry\n")
	fmt.Fprintf(&b, "/id: %s\n", e.ID)
	fmt.Fprintf(&b, "/time: %s\n", e.Time)
	fmt.Fprintf(&b, "/mode: %s\n", e.Mode)
	if len(e.Links) > 0 {
		fmt.Fprintf(&b, "/links: %s\n", strings.Join(e.Links, ","))
	}

	writeBlock(&b, "/input", e.Input, "/end_input")
	if e.Think != "" {
		writeBlock(&b, "/think", e.Think, "/end_think")
	}
	writeBlock(&b, "/output", e.Output, "/end_output")
	writeBlock(&b, "/summary_heading", e.SummaryHeading, "/end_summary")
	writeBlock(&b, "/summary", e.Summary, "/end_summary")
	if e.ThinkingCycle != "" {
		writeBlock(&b, "/thinking_cycle", e.ThinkingCycle, "/thinking_cycle_end")
	}
	if len(e.Deltas) > 0 {
		writeBlock(&b, "/deltas", strings.Join(e.Deltas, "\n"), "/end_deltas")
	}
	if len(e.Keywords) > 0 {
		writeBlock(&b, "/keywords", strings.Join(e.Keywords, "\n"), "/end_keywords")
	}
	if len(e.Topics) > 0 {
		writeBlock(&b, "/topics", strings.Join(e.Topics, "\n"), "/end_topic")
	}

	b.WriteString("\n/end_entry\n")
	return b.String()
}

func writeBlock(b *strings.Builder, openTag, content, closeTag string) {
	fmt.Fprintf(b, "\n%s\n%s\n%s\n", openTag, content, closeTag)
}

// ParseEntryFile reads one entry file back. The scanner is tolerant:
// missing or reordered tags are fine, and a block with no closing tag
// runs to end of file.
func ParseEntryFile(path string) (Entry, error) {
	data, err := os.ReadFile(path) // #nosec G304 - caller-controlled archive path
	if err != nil {
		return Entry{}, err
	}
	rawLines := strings.Split(string(data), "\n")
	lines := make([]string, len(rawLines))
	for i, line := range rawLines {
		lines[i] = strings.TrimSpace(line)
	}

	e := Entry{Filepath: path}
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/id:"):
			e.ID = fieldValue(line)
		case strings.HasPrefix(line, "/time:"):
			e.Time = fieldValue(line)
		case strings.HasPrefix(line, "/mode:"):
			e.Mode = fieldValue(line)
		case strings.HasPrefix(line, "/links:"):
			e.Links = splitList(fieldValue(line), ",")
		case line == "/input":
			i, e.Input = parseBlock(lines, i, "/end_input")
		case line == "/think":
			i, e.Think = parseBlock(lines, i, "/end_think")
		case line == "/output":
			i, e.Output = parseBlock(lines, i, "/end_output")
		case line == "/summary_heading":
			i, e.SummaryHeading = parseBlock(lines, i, "/end_summary")
		case line == "/summary":
			i, e.Summary = parseBlock(lines, i, "/end_summary")
		case line == "/thinking_cycle":
			i, e.ThinkingCycle = parseBlock(lines, i, "/thinking_cycle_end")
		case line == "/deltas":
			var block string
			i, block = parseBlock(lines, i, "/end_deltas")
			e.Deltas = splitList(block, "\n")
		case line == "/keywords":
			var block string
			i, block = parseBlock(lines, i, "/end_keywords")
			e.Keywords = splitList(block, "\n")
		case line == "/topics":
			var block string
			i, block = parseBlock(lines, i, "/end_topic")
			e.Topics = splitList(block, "\n")
		}
	}
	return e, nil
}

func fieldValue(line string) string {
	_, v, _ := strings.Cut(line, ":")
	return strings.TrimSpace(v)
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseBlock collects lines after the opening tag until endTag or EOF.
// Returns the index of the last consumed line.
func parseBlock(lines []string, start int, endTag string) (int, string) {
	var content []string
	i := start + 1
	for ; i < len(lines); i++ {
		if lines[i] == endTag {
			return i, strings.Join(content, "\n")
		}
		content = append(content, lines[i])
	}
	return i, strings.Join(content, "\n")
}

// AllEntries parses every entry in the directory, newest first. Files
// that fail to parse are logged and skipped.
func (l *Log) AllEntries() []Entry {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.txt"))
	if err != nil {
		debug.Warnf("scanning episodic memory: %v", err)
		return nil
	}
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		e, err := ParseEntryFile(p)
		if err != nil {
			debug.Warnf("could not parse entry file %s: %v", p, err)
			continue
		}
		entries = append(entries, e)
	}
	// The time field is lexicographically ordered, so a plain string
	// sort gives newest-first.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Time > entries[j].Time })
	return entries
}

// Recent returns the n newest entries.
func (l *Log) Recent(n int) []Entry {
	if n <= 0 {
		return nil
	}
	all := l.AllEntries()
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// EntryPath returns the file path an entry id maps to.
func (l *Log) EntryPath(id string) string {
	return filepath.Join(l.dir, id+".txt")
}

// AddToChatReview appends the full content of the given entry files to
// the review file, with separators. Missing files are skipped.
func (l *Log) AddToChatReview(entryPaths []string) error {
	f, err := os.OpenFile(l.reviewPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) // #nosec G304
	if err != nil {
		return fmt.Errorf("opening chat review file: %w", err)
	}
	defer f.Close()

	for _, p := range entryPaths {
		content, err := os.ReadFile(p) // #nosec G304
		if err != nil {
			debug.Warnf("skipping review append for %s: %v", p, err)
			continue
		}
		fmt.Fprintf(f, "\n--- Appending content from %s ---\n\n", filepath.Base(p))
		f.Write(content)
		f.WriteString("\n\n--- End of content ---\n")
	}
	return nil
}

// AddToQuotes appends one timestamped quote block to the quotes file.
func (l *Log) AddToQuotes(text string) error {
	f, err := os.OpenFile(l.quotesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) // #nosec G304
	if err != nil {
		return fmt.Errorf("opening quotes file: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "\n--- Quote from %s ---\n", time.Now().Format("2006-01-02T15:04:05.000000"))
	f.WriteString(text)
	f.WriteString("\n--- End of Quote ---\n\n")
	return nil
}
