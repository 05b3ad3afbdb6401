// Package config loads runner settings from an optional snapci.yaml plus
// SNAPCI_* environment variables.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"snapci/internal/artifact"
)

type Config struct {
	DataDir      string        `mapstructure:"data_dir"`
	WorkflowsDir string        `mapstructure:"workflows_dir"`
	ListenAddr   string        `mapstructure:"listen_addr"`
	StepTimeout  time.Duration `mapstructure:"step_timeout"`
	DotenvPath   string        `mapstructure:"dotenv_path"`

	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Summary   SummaryConfig   `mapstructure:"summary"`
}

type ArtifactsConfig struct {
	Backend string            `mapstructure:"backend"` // local or s3
	S3      artifact.S3Config `mapstructure:"s3"`
}

type SummaryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// Load reads configuration. path may be empty; defaults alone give a
// working local runner.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("data_dir", ".snapci")
	v.SetDefault("workflows_dir", "workflows")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("step_timeout", 30*time.Minute)
	v.SetDefault("dotenv_path", ".env")
	v.SetDefault("artifacts.backend", "local")
	v.SetDefault("summary.enabled", false)
	v.SetDefault("summary.model", "gemini-2.5-flash")

	v.SetEnvPrefix("SNAPCI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName("snapci")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if cfg.Artifacts.Backend != "local" && cfg.Artifacts.Backend != "s3" {
		return nil, errors.Errorf("unknown artifact backend %q", cfg.Artifacts.Backend)
	}
	return &cfg, nil
}

// Paths derived from the data directory.

func (c *Config) LogsDir() string      { return filepath.Join(c.DataDir, "logs") }
func (c *Config) ArtifactsDir() string { return filepath.Join(c.DataDir, "artifacts") }
func (c *Config) WorkspaceDir() string { return filepath.Join(c.DataDir, "workspace") }
func (c *Config) JournalPath() string  { return filepath.Join(c.DataDir, "journal.jsonl") }
func (c *Config) KeysDir() string      { return filepath.Join(c.DataDir, "keys") }
func (c *Config) DBPath() string       { return filepath.Join(c.DataDir, "runs.db") }
