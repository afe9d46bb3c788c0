// Package config loads the workspace configuration (loom.yaml) and maps
// out the file tree every process coordinates through.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = "loom.yaml"

// Config holds the tunable knobs. Everything has a workable default so a
// bare workspace with no loom.yaml behaves like the reference deployment.
type Config struct {
	LockTimeout          time.Duration `yaml:"lock_timeout"`
	SchedulerPollEvery   time.Duration `yaml:"scheduler_poll_every"`
	CyclePollEvery       time.Duration `yaml:"cycle_poll_every"`
	CycleBusyPollEvery   time.Duration `yaml:"cycle_busy_poll_every"`
	VerbatimPollEvery    time.Duration `yaml:"verbatim_poll_every"`
	VerbatimPairsPerBlock int          `yaml:"verbatim_pairs_per_block"`
}

func DefaultConfig() *Config {
	return &Config{
		LockTimeout:           5 * time.Second,
		SchedulerPollEvery:    500 * time.Millisecond,
		CyclePollEvery:        time.Second,
		CycleBusyPollEvery:    500 * time.Millisecond,
		VerbatimPollEvery:     100 * time.Millisecond,
		VerbatimPairsPerBlock: 50,
	}
}

// Load reads loom.yaml from the workspace root through viper, with
// environment overrides under the LOOM_ prefix. A missing file is not an
// error: defaults apply.
func Load(root string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(filepath.Join(root, ConfigFileName))
	v.SetEnvPrefix("LOOM")
	v.AutomaticEnv()

	v.SetDefault("lock_timeout", cfg.LockTimeout)
	v.SetDefault("scheduler_poll_every", cfg.SchedulerPollEvery)
	v.SetDefault("cycle_poll_every", cfg.CyclePollEvery)
	v.SetDefault("cycle_busy_poll_every", cfg.CycleBusyPollEvery)
	v.SetDefault("verbatim_poll_every", cfg.VerbatimPollEvery)
	v.SetDefault("verbatim_pairs_per_block", cfg.VerbatimPairsPerBlock)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
			// The file exists but is unreadable/unparseable: that is a
			// startup configuration error, one of the two fatal cases.
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.LockTimeout = v.GetDuration("lock_timeout")
	cfg.SchedulerPollEvery = v.GetDuration("scheduler_poll_every")
	cfg.CyclePollEvery = v.GetDuration("cycle_poll_every")
	cfg.CycleBusyPollEvery = v.GetDuration("cycle_busy_poll_every")
	cfg.VerbatimPollEvery = v.GetDuration("verbatim_poll_every")
	cfg.VerbatimPairsPerBlock = v.GetInt("verbatim_pairs_per_block")
	return cfg, nil
}

// Save writes the config as yaml. Used by `loom init` to seed a commented
// starting point.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(root, ConfigFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Workspace resolves every coordination path under a single root. All
// cross-process file names live here so the watchers and the consumer
// cannot drift apart.
type Workspace struct {
	Root string
	Cfg  *Config
}

// Open loads the config and returns the workspace handle. It does not
// create anything; Init does.
func Open(root string) (*Workspace, error) {
	cfg, err := Load(root)
	if err != nil {
		return nil, err
	}
	return &Workspace{Root: root, Cfg: cfg}, nil
}

// Init creates the workspace tree and a default loom.yaml.
func (w *Workspace) Init() error {
	dirs := []string{
		w.AutomationDir(),
		w.JobsDir(),
		w.GlobalFlagsDir(),
		w.DeltasDir(),
		w.EpisodicDir(),
		w.ChatHistoryDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if _, err := os.Stat(filepath.Join(w.Root, ConfigFileName)); os.IsNotExist(err) {
		if err := w.Cfg.Save(w.Root); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workspace) AutomationDir() string   { return filepath.Join(w.Root, "automation") }
func (w *Workspace) JobsDir() string         { return filepath.Join(w.Root, "automation", "jobs") }
func (w *Workspace) GlobalFlagsDir() string  { return filepath.Join(w.Root, "global_flags") }
func (w *Workspace) DeltasDir() string       { return filepath.Join(w.Root, "deltas") }
func (w *Workspace) EpisodicDir() string     { return filepath.Join(w.Root, "episodic_memory") }
func (w *Workspace) ChatHistoryDir() string  { return filepath.Join(w.Root, "Chat_History") }

func (w *Workspace) JobsFile() string      { return filepath.Join(w.JobsDir(), "jobs.json") }
func (w *Workspace) JobQueueFile() string  { return filepath.Join(w.AutomationDir(), "job_queue.json") }
func (w *Workspace) SchedulesFile() string { return filepath.Join(w.AutomationDir(), "schedules.json") }
func (w *Workspace) CyclesFile() string    { return filepath.Join(w.AutomationDir(), "cycles.json") }

func (w *Workspace) LLMStatusFile() string     { return filepath.Join(w.GlobalFlagsDir(), "llm_status.txt") }
func (w *Workspace) ActiveCycleFile() string   { return filepath.Join(w.GlobalFlagsDir(), "active_cycle.json") }
func (w *Workspace) CycleTriggerFile() string  { return filepath.Join(w.GlobalFlagsDir(), "cycle_trigger.txt") }
func (w *Workspace) VerbatimStateFile() string { return filepath.Join(w.GlobalFlagsDir(), "verbatim_state.txt") }
func (w *Workspace) TempChatTurnFile() string  { return filepath.Join(w.Root, "temp_chat_turn.txt") }

func (w *Workspace) ChatReviewFile() string { return filepath.Join(w.Root, "chat_review.txt") }
func (w *Workspace) QuotesFile() string     { return filepath.Join(w.Root, "quotes.txt") }

// WatcherGuardDir is where the single-instance watcher locks live.
func (w *Workspace) WatcherGuardDir() string { return w.AutomationDir() }
