package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Timezone        string   `yaml:"timezone"`
	ReportTimes     []string `yaml:"report_times"`
	TimeWindowHours int      `yaml:"time_window_hours"`

	Sources    Sources    `yaml:"sources"`
	Topics     Topics     `yaml:"topics"`
	Digest     Digest     `yaml:"digest"`
	Summarizer Summarizer `yaml:"summarizer"`
	Email      Email      `yaml:"email"`

	RunTimeoutMinutes  int    `yaml:"run_timeout_minutes"`
	SeenRetentionHours int    `yaml:"seen_retention_hours"`
	RunHistoryLimit    int    `yaml:"run_history_limit"`
	DedupBucketHours   int    `yaml:"dedup_bucket_hours"`
	DataDir            string `yaml:"data_dir"`
	Server             Server `yaml:"server"`
}

type Sources struct {
	Biorxiv BiorxivSource `yaml:"biorxiv"`
	Pubmed  PubmedSource  `yaml:"pubmed"`
}

type BiorxivSource struct {
	Enabled       bool     `yaml:"enabled"`
	FeedURLs      []string `yaml:"feed_urls"`
	MaxItems      int      `yaml:"max_items"`
	LookbackHours int      `yaml:"lookback_hours"` // 0 = use time_window_hours
	TimeoutSecs   int      `yaml:"timeout_seconds"`
}

type PubmedSource struct {
	Enabled       bool     `yaml:"enabled"`
	Journals      []string `yaml:"journals"`
	MaxItems      int      `yaml:"max_items"`
	LookbackHours int      `yaml:"lookback_hours"`
	TimeoutSecs   int      `yaml:"timeout_seconds"`
}

type Topics struct {
	// QueryGroups is an ordered list of keyword groups. An article
	// must match at least one keyword in every group (AND across
	// groups, OR within a group) to be included.
	QueryGroups [][]string `yaml:"query_groups"`
	Exclude     []string   `yaml:"exclude"`
}

type Digest struct {
	MaxItems         int `yaml:"max_items"`
	AbstractMaxChars int `yaml:"abstract_max_chars"`
}

type Summarizer struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	OpenAIModel    string `yaml:"openai_model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	MaxTokens      int    `yaml:"max_tokens"`
	Concurrency    int    `yaml:"concurrency"`
	TimeoutSecs    int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryDelaySecs int    `yaml:"retry_delay_seconds"`
}

type Email struct {
	Enabled     bool     `yaml:"enabled"`
	SMTPHost    string   `yaml:"smtp_host"`
	SMTPPort    int      `yaml:"smtp_port"`
	From        string   `yaml:"from"`
	Recipients  []string `yaml:"recipients"`
	UsernameEnv string   `yaml:"username_env"`
	PasswordEnv string   `yaml:"password_env"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for oncodigest.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "oncodigest")
}

// DataDir returns the XDG data directory for oncodigest.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "oncodigest")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/oncodigest/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'oncodigest init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses, and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults and
// validating the result. Validation failures are fatal at startup
// only, never mid-run: each run reads the config loaded at start.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Timezone:        "Asia/Shanghai",
		ReportTimes:     []string{"09:00", "21:00"},
		TimeWindowHours: 24,
		Sources: Sources{
			Biorxiv: BiorxivSource{
				Enabled:     true,
				MaxItems:    50,
				TimeoutSecs: 30,
			},
			Pubmed: PubmedSource{
				Enabled:       true,
				MaxItems:      50,
				LookbackHours: 72,
				TimeoutSecs:   60,
			},
		},
		Digest: Digest{MaxItems: 20, AbstractMaxChars: 500},
		Summarizer: Summarizer{
			Provider:       "ollama",
			Model:          "qwen2.5:7b",
			OllamaURL:      "http://localhost:11434",
			OpenAIModel:    "gpt-4o-mini",
			APIKeyEnv:      "OPENAI_API_KEY",
			MaxTokens:      1024,
			Concurrency:    3,
			TimeoutSecs:    120,
			MaxRetries:     3,
			RetryDelaySecs: 2,
		},
		Email: Email{
			SMTPPort:    465,
			UsernameEnv: "SMTP_USERNAME",
			PasswordEnv: "SMTP_PASSWORD",
		},
		RunTimeoutMinutes:  30,
		SeenRetentionHours: 14 * 24,
		RunHistoryLimit:    100,
		Server:             Server{Port: 8000},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if len(c.ReportTimes) == 0 {
		return fmt.Errorf("at least one report time is required")
	}
	for _, rt := range c.ReportTimes {
		if _, _, err := ParseReportTime(rt); err != nil {
			return err
		}
	}
	if c.TimeWindowHours <= 0 {
		return fmt.Errorf("time_window_hours must be positive, got %d", c.TimeWindowHours)
	}
	if !c.Sources.Biorxiv.Enabled && !c.Sources.Pubmed.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if c.Digest.MaxItems <= 0 {
		return fmt.Errorf("digest.max_items must be positive, got %d", c.Digest.MaxItems)
	}
	if len(c.Topics.QueryGroups) == 0 {
		return fmt.Errorf("topics.query_groups must contain at least one keyword group")
	}
	for i, group := range c.Topics.QueryGroups {
		if len(group) == 0 {
			return fmt.Errorf("topics.query_groups[%d] is empty", i)
		}
	}
	if c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email.smtp_host is required when email is enabled")
		}
		if c.Email.From == "" || len(c.Email.Recipients) == 0 {
			return fmt.Errorf("email.from and email.recipients are required when email is enabled")
		}
	}
	return nil
}

// ParseReportTime parses a "HH:MM" report time.
func ParseReportTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid report time %q (want HH:MM): %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Location returns the configured time zone. Validate guarantees it
// loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LookbackWindow returns the effective lookback for a source, honoring
// the per-source override.
func (c *Config) LookbackWindow(override int) time.Duration {
	hours := c.TimeWindowHours
	if override > 0 {
		hours = override
	}
	return time.Duration(hours) * time.Hour
}

// GetDataDir returns the effective data directory from config or XDG
// default.
func (c *Config) GetDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
