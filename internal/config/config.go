// Package config loads brandid settings from defaults, an optional YAML file,
// an optional .env file and BRANDID_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/FrenchMajesty/brand-identifier/pkg/adapters/brandapi"
	"github.com/FrenchMajesty/brand-identifier/pkg/submission"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultEndpoint is the hosted brand identifier service
	DefaultEndpoint = brandapi.DefaultBaseURL

	// DefaultEnvFile is loaded when present
	DefaultEnvFile = ".env"

	// DefaultDumpDir receives request dumps when dump_requests is on
	DefaultDumpDir = brandapi.DefaultDumpDir

	// DefaultBatchConcurrency bounds parallel requests in batch mode
	DefaultBatchConcurrency = 4

	envPrefix = "BRANDID_"
)

// Config holds every brandid setting
type Config struct {
	// Endpoint is the base URL of the brand API; /process-text/ is appended
	Endpoint string `yaml:"endpoint"`

	// RequestTimeout bounds each request. Zero waits as long as the server takes.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxRetries is the number of retries on transport and 5xx errors. Zero disables retries.
	MaxRetries int `yaml:"max_retries"`

	DumpRequests bool   `yaml:"dump_requests"`
	DumpDir      string `yaml:"dump_dir"`

	BatchConcurrency int `yaml:"batch_concurrency"`

	// BatchRateLimit caps batch requests per second. Zero means no cap.
	BatchRateLimit float64 `yaml:"batch_rate_limit"`

	Hints   HintsConfig   `yaml:"hints"`
	Logging LoggingConfig `yaml:"logging"`
}

// HintsConfig sets when each delay hint appears while a request is pending
type HintsConfig struct {
	Connecting      time.Duration `yaml:"connecting"`
	StillProcessing time.Duration `yaml:"still_processing"`
	AlmostThere     time.Duration `yaml:"almost_there"`
}

// Stages converts the hint delays into a submission schedule
func (h HintsConfig) Stages() []submission.HintStage {
	return []submission.HintStage{
		{After: h.Connecting, Hint: submission.HintConnecting},
		{After: h.StillProcessing, Hint: submission.HintStillProcessing},
		{After: h.AlmostThere, Hint: submission.HintAlmostThere},
	}
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	// File receives logs instead of stderr. The interactive form only logs when this is set.
	File string `yaml:"file"`
}

// Default returns a Config with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.DumpDir == "" {
		c.DumpDir = DefaultDumpDir
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = DefaultBatchConcurrency
	}
	if c.Hints.Connecting == 0 {
		c.Hints.Connecting = 5 * time.Second
	}
	if c.Hints.StillProcessing == 0 {
		c.Hints.StillProcessing = 15 * time.Second
	}
	if c.Hints.AlmostThere == 0 {
		c.Hints.AlmostThere = 20 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("endpoint must be an absolute http(s) URL, got %q", c.Endpoint)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %v", c.RequestTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch_concurrency must be at least 1, got %d", c.BatchConcurrency)
	}
	if c.BatchRateLimit < 0 {
		return fmt.Errorf("batch_rate_limit must not be negative, got %v", c.BatchRateLimit)
	}
	h := c.Hints
	if h.Connecting <= 0 || h.StillProcessing <= 0 || h.AlmostThere <= 0 {
		return errors.New("hint delays must be positive")
	}
	if !(h.Connecting < h.StillProcessing && h.StillProcessing < h.AlmostThere) {
		return fmt.Errorf("hint delays must increase, got %v, %v, %v", h.Connecting, h.StillProcessing, h.AlmostThere)
	}
	return nil
}

// Load builds a Config. path may be empty; envFile may be empty to skip .env loading.
// A missing envFile is not an error, a missing path is.
func Load(path, envFile string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides fields from BRANDID_* variables
func (c *Config) applyEnv() error {
	if v, ok := lookup("ENDPOINT"); ok {
		c.Endpoint = v
	}
	if err := envDuration("REQUEST_TIMEOUT", &c.RequestTimeout); err != nil {
		return err
	}
	if err := envInt("MAX_RETRIES", &c.MaxRetries); err != nil {
		return err
	}
	if err := envBool("DUMP_REQUESTS", &c.DumpRequests); err != nil {
		return err
	}
	if v, ok := lookup("DUMP_DIR"); ok {
		c.DumpDir = v
	}
	if err := envInt("BATCH_CONCURRENCY", &c.BatchConcurrency); err != nil {
		return err
	}
	if err := envFloat("BATCH_RATE_LIMIT", &c.BatchRateLimit); err != nil {
		return err
	}
	if err := envDuration("HINT_CONNECTING", &c.Hints.Connecting); err != nil {
		return err
	}
	if err := envDuration("HINT_STILL_PROCESSING", &c.Hints.StillProcessing); err != nil {
		return err
	}
	if err := envDuration("HINT_ALMOST_THERE", &c.Hints.AlmostThere); err != nil {
		return err
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if err := envBool("LOG_DEVELOPMENT", &c.Logging.Development); err != nil {
		return err
	}
	if v, ok := lookup("LOG_FILE"); ok {
		c.Logging.File = v
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = b
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = f
	return nil
}
