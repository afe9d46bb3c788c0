// Package verbatim archives raw chat turns into a session/block/turn file
// hierarchy under Chat_History, driven by a small state file protocol.
package verbatim

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmstrand/loom/internal/debug"
	"github.com/jmstrand/loom/internal/flagfile"
)

// States exchanged through the verbatim state file. The chat front-end
// writes input_ready / output_ready / shutdown / force_new_session; the
// archiver answers with waiting_for_response and idle.
const (
	StateInputReady      = "input_ready"
	StateOutputReady     = "output_ready"
	StateShutdown        = "shutdown"
	StateForceNewSession = "force_new_session"
	StateWaiting         = "waiting_for_response"
	StateIdle            = "idle"
)

// DefaultPairsPerBlock is how many input/output pairs a block holds
// before rolling over.
const DefaultPairsPerBlock = 50

const sessionTimeFormat = "20060102_150405"

// Archiver owns one open session at a time. An open session directory
// has a two-timestamp-part name missing its end timestamp; closing the
// session renames it to Session_<start>_<end>.
type Archiver struct {
	historyDir    string
	tempFile      string
	statePath     string
	pairsPerBlock int

	sessionDir  string
	blockDir    string
	blockNumber int
	pairCount   int
	currentFile string
}

func NewArchiver(historyDir, tempFile, statePath string, pairsPerBlock int) *Archiver {
	if pairsPerBlock <= 0 {
		pairsPerBlock = DefaultPairsPerBlock
	}
	return &Archiver{
		historyDir:    historyDir,
		tempFile:      tempFile,
		statePath:     statePath,
		pairsPerBlock: pairsPerBlock,
	}
}

// StartSession opens a session. Unless forced, the newest still-open
// session directory and its newest block are resumed, with the pair
// count recovered from the block's turn files.
func (a *Archiver) StartSession(force bool) error {
	if err := os.MkdirAll(a.historyDir, 0755); err != nil {
		return fmt.Errorf("creating chat history dir: %w", err)
	}

	if !force {
		if resumed, err := a.resumeOpenSession(); err != nil {
			return err
		} else if resumed {
			return nil
		}
	}

	name := "Session_" + time.Now().Format(sessionTimeFormat)
	a.sessionDir = filepath.Join(a.historyDir, name)
	if err := os.MkdirAll(a.sessionDir, 0755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	debug.Logf("started new session %s", name)

	a.blockNumber = 1
	return a.startNewBlock()
}

// resumeOpenSession looks for the newest open session. A session name has
// the shape Session_<date>_<time>, three underscore-separated parts; a
// closed session carries a second timestamp and has five.
func (a *Archiver) resumeOpenSession() (bool, error) {
	entries, err := os.ReadDir(a.historyDir)
	if err != nil {
		return false, err
	}
	var sessions []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "Session_") {
			sessions = append(sessions, e.Name())
		}
	}
	if len(sessions) == 0 {
		return false, nil
	}
	sort.Strings(sessions)
	last := sessions[len(sessions)-1]
	if len(strings.Split(last, "_")) != 3 {
		return false, nil
	}

	a.sessionDir = filepath.Join(a.historyDir, last)
	debug.Logf("resuming session %s", last)

	blocks, err := os.ReadDir(a.sessionDir)
	if err != nil {
		return false, err
	}
	var blockNames []string
	for _, e := range blocks {
		if e.IsDir() && strings.HasPrefix(e.Name(), "Block_") {
			blockNames = append(blockNames, e.Name())
		}
	}
	if len(blockNames) == 0 {
		a.blockNumber = 1
		return true, a.startNewBlock()
	}
	sort.Strings(blockNames)
	lastBlock := blockNames[len(blockNames)-1]
	a.blockDir = filepath.Join(a.sessionDir, lastBlock)

	parts := strings.Split(lastBlock, "_")
	if n, err := strconv.Atoi(parts[1]); err == nil {
		a.blockNumber = n
	} else {
		a.blockNumber = 1
	}
	turns, err := filepath.Glob(filepath.Join(a.blockDir, "*.txt"))
	if err != nil {
		return false, err
	}
	a.pairCount = len(turns)
	debug.Logf("resuming block %s with %d pairs", lastBlock, a.pairCount)
	return true, nil
}

func (a *Archiver) startNewBlock() error {
	name := fmt.Sprintf("Block_%d_%s", a.blockNumber, time.Now().Format(sessionTimeFormat))
	a.blockDir = filepath.Join(a.sessionDir, name)
	if err := os.MkdirAll(a.blockDir, 0755); err != nil {
		return fmt.Errorf("creating block dir: %w", err)
	}
	a.pairCount = 0
	debug.Logf("started new block %s", name)
	return nil
}

// HandleInput stores the pending turn text as a new turn file, rolling to
// a fresh block first when the current one is full.
func (a *Archiver) HandleInput() error {
	if a.pairCount >= a.pairsPerBlock {
		a.blockNumber++
		if err := a.startNewBlock(); err != nil {
			return err
		}
	}

	content := flagfile.ReadText(a.tempFile)
	now := time.Now()
	name := fmt.Sprintf("%s_%06d.txt", now.Format(sessionTimeFormat), now.Nanosecond()/1000)
	a.currentFile = filepath.Join(a.blockDir, name)
	if err := os.WriteFile(a.currentFile, []byte(content), 0644); err != nil {
		a.currentFile = ""
		return fmt.Errorf("writing turn file: %w", err)
	}
	return nil
}

// HandleOutput appends the pending turn text to the turn file opened by
// the matching input, completing one pair. An output with no open turn
// file is logged and dropped.
func (a *Archiver) HandleOutput() error {
	if a.currentFile == "" {
		debug.Warnf("output received without a current turn file, dropping")
		return nil
	}
	content := flagfile.ReadText(a.tempFile)

	f, err := os.OpenFile(a.currentFile, os.O_APPEND|os.O_WRONLY, 0644) // #nosec G304
	if err != nil {
		return fmt.Errorf("appending to turn file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString("\n\n" + content); err != nil {
		return err
	}

	a.pairCount++
	// Clear so a skipped input cannot land an output in the wrong file.
	a.currentFile = ""
	return nil
}

// EndSession closes the open session by appending the end timestamp to
// its directory name. Safe to call with no open session.
func (a *Archiver) EndSession() {
	if a.sessionDir == "" {
		return
	}
	if _, err := os.Stat(a.sessionDir); err != nil {
		return
	}
	closed := fmt.Sprintf("%s_%s", filepath.Base(a.sessionDir), time.Now().Format(sessionTimeFormat))
	if err := os.Rename(a.sessionDir, filepath.Join(a.historyDir, closed)); err != nil {
		debug.Warnf("could not rename session folder: %v", err)
		return
	}
	debug.Logf("closed session as %s", closed)
	a.sessionDir = ""
	a.blockDir = ""
	a.currentFile = ""
}

// PairCount reports how many pairs the current block holds.
func (a *Archiver) PairCount() int { return a.pairCount }

// BlockDir reports the current block directory.
func (a *Archiver) BlockDir() string { return a.blockDir }

// SessionDir reports the current session directory.
func (a *Archiver) SessionDir() string { return a.sessionDir }
