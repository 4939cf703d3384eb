// Package config provides configuration loading for a11yscan.
// It supports a layered configuration approach with priority:
// CLI flags > environment variables (A11YSCAN_*) > config file (~/.a11yscan.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/fetcher"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/scheduler"
	"github.com/raysh454/a11yscan/internal/server"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Config holds all a11yscan configuration options.
type Config struct {
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	DBPath       string `mapstructure:"db_path" yaml:"db_path"`

	Client      string        `mapstructure:"client" yaml:"client"`
	UserAgent   string        `mapstructure:"user_agent" yaml:"user_agent"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	PageTimeout time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"`

	RunTimeout        time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs" yaml:"max_concurrent_runs"`

	WCAGLevel string `mapstructure:"wcag_level" yaml:"wcag_level"`
	MaxDepth  int    `mapstructure:"max_depth" yaml:"max_depth"`
	MaxPages  int    `mapstructure:"max_pages" yaml:"max_pages"`

	// ServerURL, when set, sends CLI commands to a remote API server
	// instead of running scans in-process.
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`

	ListenAddr    string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	TargetsFile   string        `mapstructure:"targets_file" yaml:"targets_file"`
	PurgeSchedule string        `mapstructure:"purge_schedule" yaml:"purge_schedule"`
	Retention     time.Duration `mapstructure:"retention" yaml:"retention"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		OutputFormat:      "table",
		LogLevel:          "warn",
		DBPath:            "~/.a11yscan/a11yscan.db",
		Client:            string(webclient.ClientNetHTTP),
		Concurrency:       fetcher.DefaultMaxConcurrency,
		PageTimeout:       fetcher.DefaultPageTimeout,
		RunTimeout:        app.DefaultRunTimeout,
		MaxConcurrentRuns: app.DefaultMaxConcurrentRuns,
		WCAGLevel:         string(model.LevelAA),
		MaxDepth:          model.DefaultMaxDepth,
		MaxPages:          model.DefaultMaxPages,
		ListenAddr:        ":8080",
		PurgeSchedule:     scheduler.DefaultPurgeSchedule,
		Retention:         scheduler.DefaultRetention,
	}
}

// Load reads configuration from path, or from ~/.a11yscan.yaml when path is
// empty, then from environment variables. A missing default file is not an
// error. It does NOT apply CLI flag overrides; call ApplyFlags for that.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".a11yscan")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("A11YSCAN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ApplyFlags overrides config values with any CLI flags that were explicitly set.
func ApplyFlags(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("output") {
		cfg.OutputFormat, _ = flags.GetString("output")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("client") {
		cfg.Client, _ = flags.GetString("client")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("page-timeout") {
		cfg.PageTimeout, _ = flags.GetDuration("page-timeout")
	}
	if flags.Changed("server") {
		cfg.ServerURL, _ = flags.GetString("server")
	}
}

// AppConfig translates the loaded options into the orchestrator's config.
func (c *Config) AppConfig() (*app.Config, error) {
	dbPath, err := ExpandPath(c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("expanding db path: %w", err)
	}

	client := webclient.Client(c.Client)
	if client != webclient.ClientNetHTTP && client != webclient.ClientChromedp {
		return nil, fmt.Errorf("unknown client %q (supported: nethttp, chromedp)", c.Client)
	}

	cfg := app.DefaultConfig()
	cfg.DBPath = dbPath
	cfg.LogLevel = c.LogLevel
	cfg.WebClient.Client = client
	if c.UserAgent != "" {
		cfg.WebClient.UserAgent = c.UserAgent
	}
	cfg.Fetcher.MaxConcurrency = c.Concurrency
	cfg.Fetcher.PageTimeout = c.PageTimeout
	cfg.RunTimeout = c.RunTimeout
	cfg.MaxConcurrentRuns = c.MaxConcurrentRuns
	return cfg, nil
}

// ScanDefaults fills the request fields the caller left unset.
func (c *Config) ScanDefaults(req model.ScanRequest) model.ScanRequest {
	if req.WCAGLevel == "" {
		req.WCAGLevel = model.WCAGLevel(c.WCAGLevel)
	}
	if req.MaxDepth == 0 && req.MaxPages == 0 {
		req.MaxDepth = c.MaxDepth
		req.MaxPages = c.MaxPages
	}
	return req
}

// SchedulerConfig is the recurring-scan setup used by serve.
func (c *Config) SchedulerConfig() (scheduler.Config, error) {
	targets, err := ExpandPath(c.TargetsFile)
	if err != nil {
		return scheduler.Config{}, fmt.Errorf("expanding targets path: %w", err)
	}
	return scheduler.Config{
		TargetsPath:   targets,
		PurgeSchedule: c.PurgeSchedule,
		Retention:     c.Retention,
	}, nil
}

// ServerConfig is the API server setup used by serve.
func (c *Config) ServerConfig() server.Config {
	cfg := server.DefaultConfig()
	if c.ListenAddr != "" {
		cfg.ListenAddr = c.ListenAddr
	}
	return cfg
}

// FilePath returns the default config file path (~/.a11yscan.yaml).
func FilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".a11yscan.yaml"
	}
	return filepath.Join(home, ".a11yscan.yaml")
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("client", d.Client)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("page_timeout", d.PageTimeout)
	v.SetDefault("run_timeout", d.RunTimeout)
	v.SetDefault("max_concurrent_runs", d.MaxConcurrentRuns)
	v.SetDefault("wcag_level", d.WCAGLevel)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("max_pages", d.MaxPages)
	v.SetDefault("server_url", d.ServerURL)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("targets_file", d.TargetsFile)
	v.SetDefault("purge_schedule", d.PurgeSchedule)
	v.SetDefault("retention", d.Retention)
}
