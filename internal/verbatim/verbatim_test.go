package verbatim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmstrand/loom/internal/flagfile"
)

type fixture struct {
	arch    *Archiver
	watcher *Watcher
	history string
	temp    string
	state   string
}

func newFixture(t *testing.T, pairsPerBlock int) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		history: filepath.Join(dir, "Chat_History"),
		temp:    filepath.Join(dir, "temp_chat_turn.txt"),
		state:   filepath.Join(dir, "global_flags", "verbatim_state.txt"),
	}
	f.arch = NewArchiver(f.history, f.temp, f.state, pairsPerBlock)
	f.watcher = NewWatcher(f.arch, f.state)
	return f
}

func (f *fixture) pair(t *testing.T, input, output string) {
	t.Helper()
	flagfile.WriteText(f.temp, input)
	require.NoError(t, f.arch.HandleInput())
	flagfile.WriteText(f.temp, output)
	require.NoError(t, f.arch.HandleOutput())
}

func sessionDirs(t *testing.T, history string) []string {
	t.Helper()
	entries, err := os.ReadDir(history)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestNewSessionAndTurnFiles(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.arch.StartSession(false))

	names := sessionDirs(t, f.history)
	require.Len(t, names, 1)
	assert.Regexp(t, `^Session_\d{8}_\d{6}$`, names[0])
	assert.Regexp(t, `^Block_1_\d{8}_\d{6}$`, filepath.Base(f.arch.BlockDir()))

	f.pair(t, "[USER] hello", "[MODEL] hi there")

	turns, err := filepath.Glob(filepath.Join(f.arch.BlockDir(), "*.txt"))
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Regexp(t, `^\d{8}_\d{6}_\d{6}\.txt$`, filepath.Base(turns[0]))

	raw, err := os.ReadFile(turns[0])
	require.NoError(t, err)
	assert.Equal(t, "[USER] hello\n\n[MODEL] hi there", string(raw))
	assert.Equal(t, 1, f.arch.PairCount())
}

func TestBlockRollsOverWhenFull(t *testing.T) {
	f := newFixture(t, 3)
	require.NoError(t, f.arch.StartSession(false))
	firstBlock := f.arch.BlockDir()

	for i := 0; i < 3; i++ {
		f.pair(t, fmt.Sprintf("in %d", i), fmt.Sprintf("out %d", i))
	}
	assert.Equal(t, firstBlock, f.arch.BlockDir(), "rollover happens on the next input, not the closing output")

	f.pair(t, "in 3", "out 3")
	assert.NotEqual(t, firstBlock, f.arch.BlockDir())
	assert.True(t, strings.HasPrefix(filepath.Base(f.arch.BlockDir()), "Block_2_"))
	assert.Equal(t, 1, f.arch.PairCount())

	turns, err := filepath.Glob(filepath.Join(firstBlock, "*.txt"))
	require.NoError(t, err)
	assert.Len(t, turns, 3)
}

func TestOutputWithoutInputIsDropped(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.arch.StartSession(false))

	flagfile.WriteText(f.temp, "orphan output")
	require.NoError(t, f.arch.HandleOutput())
	assert.Zero(t, f.arch.PairCount())

	turns, err := filepath.Glob(filepath.Join(f.arch.BlockDir(), "*.txt"))
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestEndSessionRenamesWithEndTimestamp(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.arch.StartSession(false))
	open := filepath.Base(f.arch.SessionDir())

	f.arch.EndSession()

	names := sessionDirs(t, f.history)
	require.Len(t, names, 1)
	assert.Regexp(t, `^Session_\d{8}_\d{6}_\d{8}_\d{6}$`, names[0])
	assert.True(t, strings.HasPrefix(names[0], open))

	// A second end is a no-op.
	f.arch.EndSession()
	assert.Len(t, sessionDirs(t, f.history), 1)
}

func TestResumeOpenSession(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.arch.StartSession(false))
	f.pair(t, "in 0", "out 0")
	f.pair(t, "in 1", "out 1")
	session := f.arch.SessionDir()
	block := f.arch.BlockDir()

	// A fresh archiver (as after a restart) picks up where we left off.
	resumed := NewArchiver(f.history, f.temp, f.state, 10)
	require.NoError(t, resumed.StartSession(false))
	assert.Equal(t, session, resumed.SessionDir())
	assert.Equal(t, block, resumed.BlockDir())
	assert.Equal(t, 2, resumed.PairCount())
}

func TestClosedSessionsAreNotResumed(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.arch.StartSession(false))
	f.arch.EndSession()

	again := NewArchiver(f.history, f.temp, f.state, 0)
	require.NoError(t, again.StartSession(false))

	names := sessionDirs(t, f.history)
	assert.Len(t, names, 2, "a closed session stays closed; a new one is opened")
}

func TestWatcherProtocol(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.arch.StartSession(false))

	// No state file yet: nothing happens.
	assert.False(t, f.watcher.Tick())

	flagfile.WriteText(f.temp, "user says hi")
	flagfile.WriteWord(f.state, StateInputReady)
	assert.False(t, f.watcher.Tick())
	assert.Equal(t, StateWaiting, flagfile.ReadWord(f.state))

	flagfile.WriteText(f.temp, "model replies")
	flagfile.WriteWord(f.state, StateOutputReady)
	assert.False(t, f.watcher.Tick())
	assert.Equal(t, StateIdle, flagfile.ReadWord(f.state))
	assert.Equal(t, 1, f.arch.PairCount())

	// An unknown word is ignored.
	flagfile.WriteWord(f.state, "mystery")
	assert.False(t, f.watcher.Tick())

	flagfile.WriteWord(f.state, StateShutdown)
	assert.True(t, f.watcher.Tick())
	names := sessionDirs(t, f.history)
	require.Len(t, names, 1)
	assert.Regexp(t, `^Session_\d{8}_\d{6}_\d{8}_\d{6}$`, names[0])
}

func TestWatcherForceNewSession(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.arch.StartSession(false))

	flagfile.WriteWord(f.state, StateForceNewSession)
	assert.False(t, f.watcher.Tick())
	assert.Equal(t, StateIdle, flagfile.ReadWord(f.state))

	// The old session is closed (two timestamps) and a fresh open one exists.
	names := sessionDirs(t, f.history)
	require.Len(t, names, 2)
	var open, closed int
	for _, n := range names {
		if len(strings.Split(n, "_")) == 3 {
			open++
		} else {
			closed++
		}
	}
	assert.Equal(t, 1, open)
	assert.Equal(t, 1, closed)
}
