package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration. Defaults come from
// DefaultConfig, then an optional YAML file, then TRADEHELM_* env
// vars, then command-line flags, each layer overriding the last.
type Config struct {
	AppName string `yaml:"app_name"`

	LLMProvider string `yaml:"llm_provider"` // openai or deepseek
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"-"` // env only, never a file
	Offline     bool   `yaml:"offline"`

	DataDir       string `yaml:"data_dir"`
	BiasCachePath string `yaml:"bias_cache_path"`
	AuditLogPath  string `yaml:"audit_log_path"`

	DefaultPortfolioValue float64 `yaml:"default_portfolio_value"`
	MaxRiskBps            float64 `yaml:"max_risk_bps"`
	Window                int     `yaml:"window"`

	HealthAddr      string        `yaml:"health_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	EinoDebug     bool `yaml:"eino_debug"`
	EinoDebugPort int  `yaml:"eino_debug_port"`
}

func DefaultConfig() *Config {
	return &Config{
		AppName: "tradehelm",

		LLMProvider: "openai",
		Model:       "gpt-4o-mini",
		BaseURL:     "https://api.openai.com/v1",
		Offline:     false,

		DataDir: "./data",

		DefaultPortfolioValue: 100000,
		MaxRiskBps:            50,
		Window:                60,

		HealthAddr:      ":8090",
		ShutdownTimeout: 5 * time.Second,

		LogLevel:  "info",
		LogFormat: "console",

		EinoDebug:     false,
		EinoDebugPort: 52538,
	}
}

// Load builds the effective config: defaults, then the YAML file at
// path when non-empty, then environment overrides. Derived paths are
// filled last so overrides of DataDir propagate.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.fillDerived()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.AppName, "TRADEHELM_APP_NAME")
	setString(&c.LLMProvider, "TRADEHELM_LLM_PROVIDER")
	setString(&c.Model, "TRADEHELM_MODEL")
	setString(&c.BaseURL, "TRADEHELM_BASE_URL")
	setBool(&c.Offline, "TRADEHELM_OFFLINE")
	setString(&c.DataDir, "TRADEHELM_DATA_DIR")
	setString(&c.BiasCachePath, "TRADEHELM_BIAS_CACHE")
	setString(&c.AuditLogPath, "TRADEHELM_AUDIT_LOG")
	setFloat(&c.DefaultPortfolioValue, "TRADEHELM_PORTFOLIO_VALUE")
	setFloat(&c.MaxRiskBps, "TRADEHELM_MAX_RISK_BPS")
	setInt(&c.Window, "TRADEHELM_WINDOW")
	setString(&c.HealthAddr, "TRADEHELM_HEALTH_ADDR")
	setDuration(&c.ShutdownTimeout, "TRADEHELM_SHUTDOWN_TIMEOUT")
	setString(&c.LogLevel, "TRADEHELM_LOG_LEVEL")
	setString(&c.LogFormat, "TRADEHELM_LOG_FORMAT")
	setBool(&c.EinoDebug, "TRADEHELM_EINO_DEBUG")
	setInt(&c.EinoDebugPort, "TRADEHELM_EINO_DEBUG_PORT")

	switch c.LLMProvider {
	case "deepseek":
		c.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	default:
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func (c *Config) fillDerived() {
	if c.BiasCachePath == "" {
		c.BiasCachePath = filepath.Join(c.DataDir, "bias", "bias_snapshots.json")
	}
	if c.AuditLogPath == "" {
		c.AuditLogPath = filepath.Join(c.DataDir, "decisions", "decisions.jsonl")
	}
}

// PriceDataDir is where per-symbol historical price files live.
func (c *Config) PriceDataDir() string {
	return filepath.Join(c.DataDir, "market_data", "price_data")
}

// OverrideDataDir moves the whole on-disk layout under dir. The bias
// cache and audit log follow, even when set explicitly before.
func (c *Config) OverrideDataDir(dir string) {
	c.DataDir = dir
	c.BiasCachePath = filepath.Join(dir, "bias", "bias_snapshots.json")
	c.AuditLogPath = filepath.Join(dir, "decisions", "decisions.jsonl")
}

// Validate reports configuration problems that must stop the process
// at boot. A degraded start is never allowed.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app name must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if c.AuditLogPath == "" {
		return fmt.Errorf("audit log path must not be empty")
	}
	if c.DefaultPortfolioValue <= 0 {
		return fmt.Errorf("default portfolio value must be positive, got %v", c.DefaultPortfolioValue)
	}
	if c.Window < 0 {
		return fmt.Errorf("window must be >= 0, got %d", c.Window)
	}
	if c.HealthAddr == "" {
		return fmt.Errorf("health bind address must not be empty")
	}
	if !c.Offline {
		switch c.LLMProvider {
		case "openai", "deepseek":
		default:
			return fmt.Errorf("unknown llm provider %q", c.LLMProvider)
		}
		if c.APIKey == "" {
			return fmt.Errorf("%s api key is required unless offline mode is set", c.LLMProvider)
		}
	}
	return nil
}

// EnsureDirectories creates the on-disk layout the tools expect.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.PriceDataDir(),
		filepath.Dir(c.BiasCachePath),
		filepath.Dir(c.AuditLogPath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
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

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
