// Package config builds the immutable invocation context for one tfci run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tfci-io/tfci/internal/adapters/github"
	"github.com/tfci-io/tfci/internal/adapters/slack"
	"github.com/tfci-io/tfci/internal/logging"
)

// ErrConfiguration marks configuration errors: nothing has run yet and the
// process should exit non-zero immediately.
var ErrConfiguration = errors.New("configuration error")

// Mode selects the top-level behavior of an invocation.
type Mode string

const (
	ModePR     Mode = "pr"
	ModeMerge  Mode = "merge"
	ModeRollup Mode = "rollup"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePR, ModeMerge, ModeRollup:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q (want pr, merge, or rollup)", ErrConfiguration, s)
	}
}

// Config is the invocation context. It is constructed once at process start
// and passed explicitly; components never read ambient globals.
type Config struct {
	Version    string `yaml:"version"`
	Mode       Mode   `yaml:"mode"`
	WorkingDir string `yaml:"working_dir"`
	RollupDir  string `yaml:"rollup_dir"`

	Terraform *TerraformConfig `yaml:"terraform"`
	Lint      *LintConfig      `yaml:"lint"`
	Cost      *CostConfig      `yaml:"cost"`
	GitHub    *github.Config   `yaml:"github"`
	Slack     *slack.Config    `yaml:"slack"`
	Logging   *logging.Config  `yaml:"logging"`
	History   *HistoryConfig   `yaml:"history"`

	// RunID identifies this invocation in logs and history.
	RunID string `yaml:"-"`
}

// TerraformConfig holds terraform invocation settings.
type TerraformConfig struct {
	Version        string `yaml:"version"`
	ApplyEnabled   bool   `yaml:"apply_enabled"`
	PlanComment    bool   `yaml:"plan_comment"`
	TimeoutMinutes int    `yaml:"timeout_minutes"`
}

// Timeout returns the terraform step timeout.
func (c *TerraformConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// LintConfig holds tflint settings.
type LintConfig struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutMinutes int  `yaml:"timeout_minutes"`
}

// Timeout returns the lint step timeout.
func (c *LintConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// CostConfig holds infracost settings.
type CostConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Currency         string `yaml:"currency"`
	CommentTitle     string `yaml:"comment_title"`
	SilentSkipOnZero bool   `yaml:"silent_skip_on_zero_delta"`
	TimeoutMinutes   int    `yaml:"timeout_minutes"`
}

// Timeout returns the cost step timeout.
func (c *CostConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// HistoryConfig holds the run-history store settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:    "1.0",
		Mode:       ModePR,
		WorkingDir: ".",
		Terraform: &TerraformConfig{
			ApplyEnabled:   false,
			PlanComment:    true,
			TimeoutMinutes: 20,
		},
		Lint: &LintConfig{
			Enabled:        true,
			TimeoutMinutes: 5,
		},
		Cost: &CostConfig{
			Enabled:          false,
			Currency:         "USD",
			SilentSkipOnZero: true,
			TimeoutMinutes:   5,
		},
		GitHub:  github.DefaultConfig(),
		Slack:   slack.DefaultConfig(),
		Logging: logging.DefaultConfig(),
		History: &HistoryConfig{
			Enabled: false,
			Path:    filepath.Join(os.TempDir(), "tfci"),
		},
		RunID: uuid.New().String(),
	}
}

// Load builds the configuration: defaults, then the yaml file when present,
// then the CI environment on top.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnv(config)
	return config, nil
}

// applyEnv overlays the GITHUB_* variables CI provides and the TFCI_*
// overrides. The environment wins over the file because CI injects
// per-run values (SHA, run id) that no static file can carry.
func applyEnv(cfg *Config) {
	setString(&cfg.GitHub.APIURL, "GITHUB_API_URL")
	setString(&cfg.GitHub.ServerURL, "GITHUB_SERVER_URL")
	setString(&cfg.GitHub.Repository, "GITHUB_REPOSITORY")
	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setString(&cfg.GitHub.EventName, "GITHUB_EVENT_NAME")
	setString(&cfg.GitHub.EventPath, "GITHUB_EVENT_PATH")
	setString(&cfg.GitHub.SHA, "GITHUB_SHA")
	setString(&cfg.GitHub.RunID, "GITHUB_RUN_ID")
	setString(&cfg.GitHub.Actor, "GITHUB_ACTOR")
	setString(&cfg.GitHub.Workflow, "GITHUB_WORKFLOW")

	if v := os.Getenv("TFCI_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	setString(&cfg.WorkingDir, "TFCI_WORKING_DIR")
	setString(&cfg.RollupDir, "TFCI_ROLLUP_DIR")
	setString(&cfg.Cost.Currency, "TFCI_CURRENCY")
	setString(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	setString(&cfg.Slack.Channel, "TFCI_SLACK_CHANNEL")

	setBool(&cfg.Terraform.ApplyEnabled, "TFCI_APPLY_ENABLED")
	setBool(&cfg.Terraform.PlanComment, "TFCI_PLAN_COMMENT")
	setBool(&cfg.Lint.Enabled, "TFCI_LINT_ENABLED")
	setBool(&cfg.Cost.Enabled, "TFCI_COST_ENABLED")
	setBool(&cfg.Cost.SilentSkipOnZero, "TFCI_SILENT_SKIP_ON_ZERO_DELTA")
	setBool(&cfg.Slack.Enabled, "TFCI_SLACK_ENABLED")
	setBool(&cfg.Slack.NotifyOnError, "TFCI_SLACK_ON_ERROR")
	setBool(&cfg.Slack.NotifyOnRollup, "TFCI_SLACK_ON_ROLLUP_SUCCESS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the configuration before any tool runs.
func (c *Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}

	switch c.Mode {
	case ModePR, ModeMerge:
		if err := requireDir(c.WorkingDir); err != nil {
			return fmt.Errorf("%w: working_dir: %v", ErrConfiguration, err)
		}
	case ModeRollup:
		if c.RollupDir == "" {
			return fmt.Errorf("%w: rollup_dir is required in rollup mode", ErrConfiguration)
		}
		if err := requireDir(c.RollupDir); err != nil {
			return fmt.Errorf("%w: rollup_dir: %v", ErrConfiguration, err)
		}
	}

	return nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
