package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// cutoffLayout is the accepted format for imap.cutoff_date.
const cutoffLayout = "2006-01-02"

// IMAPConfig holds mailbox connection settings.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host" validate:"required"`
	Port     string `mapstructure:"port" yaml:"port" validate:"required"`
	Username string `mapstructure:"username" yaml:"username" validate:"required"`

	// Password may be empty, in which case the credential keyring is
	// consulted at startup.
	Password string `mapstructure:"password" yaml:"password"`

	Folder string `mapstructure:"folder" yaml:"folder" validate:"required"`
	TLS    bool   `mapstructure:"tls" yaml:"tls"`

	// CutoffDate (YYYY-MM-DD, optional) permanently ignores messages
	// received before it.
	CutoffDate string `mapstructure:"cutoff_date" yaml:"cutoff_date"`

	// MarkAsRead flips the \Seen flag on admitted messages.
	MarkAsRead bool `mapstructure:"mark_as_read" yaml:"mark_as_read"`
}

// AIConfig holds summarizer settings. Model parameters are fixed
// configuration; nothing here varies per call.
type AIConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Model   string `mapstructure:"model" yaml:"model" validate:"required"`

	// APIKey may be empty, in which case the credential keyring is
	// consulted at startup.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// BaseURL overrides the default OpenAI-compatible endpoint.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`

	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`

	// Classify enables the pre-admission triage call; messages whose
	// label lands in DropLabels are discarded.
	Classify   bool     `mapstructure:"classify" yaml:"classify"`
	DropLabels []string `mapstructure:"drop_labels" yaml:"drop_labels"`

	// SummaryMaxRetries bounds how many poll cycles a message is held
	// for when summarization fails before it is dropped.
	SummaryMaxRetries int `mapstructure:"summary_max_retries" yaml:"summary_max_retries" validate:"min=0,max=20"`

	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec" validate:"min=1,max=600"`
}

// AppConfig holds pipeline, storage, and scheduling settings.
type AppConfig struct {
	DBPath  string `mapstructure:"db_path" yaml:"db_path" validate:"required"`
	LogPath string `mapstructure:"log_path" yaml:"log_path"`

	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec" validate:"min=5"`
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec" validate:"min=1,max=600"`

	// RetentionHours is how long a completed record is kept before the
	// sweeper archives it.
	RetentionHours int `mapstructure:"retention_hours" yaml:"retention_hours" validate:"min=1"`

	// SweepSchedule is a cron expression (robfig/cron syntax, @every
	// accepted) driving the retention sweeper.
	SweepSchedule string `mapstructure:"sweep_schedule" yaml:"sweep_schedule" validate:"required"`
}

// Config is the top-level validated application configuration. The
// core components accept only this struct; file parsing and defaults
// stay here.
type Config struct {
	IMAP IMAPConfig `mapstructure:"imap" yaml:"imap"`
	AI   AIConfig   `mapstructure:"ai" yaml:"ai"`
	App  AppConfig  `mapstructure:"app" yaml:"app"`

	cutoff time.Time
}

var validate = validator.New()

// DefaultConfigPath returns ~/.config/inboxtasks/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "inboxtasks", "config.yaml")
}

func defaultConfig() *Config {
	return &Config{
		IMAP: IMAPConfig{
			Host:   "imap.gmail.com",
			Port:   "993",
			Folder: "INBOX",
			TLS:    true,
		},
		AI: AIConfig{
			Enabled:           true,
			Model:             "gpt-5-mini",
			Temperature:       1,
			Classify:          true,
			DropLabels:        []string{"marketing", "fyi"},
			SummaryMaxRetries: 3,
			RequestTimeoutSec: 30,
		},
		App: AppConfig{
			DBPath:          filepath.Join(dataDir(), "tasks.db"),
			LogPath:         filepath.Join(dataDir(), "inboxtasks.log"),
			PollIntervalSec: 300,
			FetchTimeoutSec: 60,
			RetentionHours:  12,
			SweepSchedule:   "@every 1h",
		},
	}
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".inboxtasks")
}

// LoadConfig reads configuration from the given YAML file using Viper,
// applies defaults for missing keys, and validates the result. A
// missing file yields the default configuration (which still fails
// validation until credentials are set).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	def := defaultConfig()
	v.SetDefault("imap.host", def.IMAP.Host)
	v.SetDefault("imap.port", def.IMAP.Port)
	v.SetDefault("imap.folder", def.IMAP.Folder)
	v.SetDefault("imap.tls", def.IMAP.TLS)
	v.SetDefault("ai.enabled", def.AI.Enabled)
	v.SetDefault("ai.model", def.AI.Model)
	v.SetDefault("ai.temperature", def.AI.Temperature)
	v.SetDefault("ai.classify", def.AI.Classify)
	v.SetDefault("ai.drop_labels", def.AI.DropLabels)
	v.SetDefault("ai.summary_max_retries", def.AI.SummaryMaxRetries)
	v.SetDefault("ai.request_timeout_sec", def.AI.RequestTimeoutSec)
	v.SetDefault("app.db_path", def.App.DBPath)
	v.SetDefault("app.log_path", def.App.LogPath)
	v.SetDefault("app.poll_interval_sec", def.App.PollIntervalSec)
	v.SetDefault("app.fetch_timeout_sec", def.App.FetchTimeoutSec)
	v.SetDefault("app.retention_hours", def.App.RetentionHours)
	v.SetDefault("app.sweep_schedule", def.App.SweepSchedule)

	if err := v.ReadInConfig(); err != nil {
		_, pathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !pathErr && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks field constraints and parses derived values. It must
// succeed before the config is handed to any core component.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.cutoff = time.Time{}
	if s := strings.TrimSpace(c.IMAP.CutoffDate); s != "" {
		t, err := time.Parse(cutoffLayout, s)
		if err != nil {
			return fmt.Errorf("invalid imap.cutoff_date %q (want YYYY-MM-DD): %w", s, err)
		}
		c.cutoff = t
	}

	for i, label := range c.AI.DropLabels {
		c.AI.DropLabels[i] = strings.ToLower(strings.TrimSpace(label))
	}

	return nil
}

// Cutoff returns the parsed cutoff date. ok is false when no cutoff is
// configured.
func (c *Config) Cutoff() (t time.Time, ok bool) {
	return c.cutoff, !c.cutoff.IsZero()
}

// DropLabelSet returns the normalized (lowercase) drop-label set.
func (c *Config) DropLabelSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.AI.DropLabels))
	for _, label := range c.AI.DropLabels {
		if label != "" {
			set[label] = struct{}{}
		}
	}
	return set
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.App.PollIntervalSec) * time.Second
}

// FetchTimeout bounds one source fetch.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.App.FetchTimeoutSec) * time.Second
}

// RequestTimeout bounds one summarizer call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.AI.RequestTimeoutSec) * time.Second
}

// Retention returns the completed-record retention window.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.App.RetentionHours) * time.Hour
}
