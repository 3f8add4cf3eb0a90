package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/tanq16/multiget/internal/utils"
	"gopkg.in/yaml.v3"
)

// Config holds the defaults a download starts from before flags are applied.
// Zero engine fields mean "use the built-in default".
type Config struct {
	OutputDir     string
	Chunks        int
	ChunkSizeMiB  int64
	LimitMiB      int64
	Workers       int
	MaxConcurrent int
	FetchTimeout  time.Duration
	Timeout       time.Duration
	KeepAlive     time.Duration
	UserAgent     string
	Proxy         string
	Token         string
	Headers       []string
	S3Profile     string
	LogFile       string
	MetricsAddr   string
}

func Default() Config {
	return Config{
		OutputDir: utils.DefaultOutputDir,
		Workers:   1,
		Timeout:   3 * time.Minute,
		KeepAlive: 90 * time.Second,
		UserAgent: utils.ToolUserAgent,
		S3Profile: "default",
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	OutputDir     string   `yaml:"output_dir"`
	Chunks        int      `yaml:"chunks"`
	ChunkSizeMiB  int64    `yaml:"chunk_size_mib"`
	LimitMiB      int64    `yaml:"limit_mib"`
	Workers       int      `yaml:"workers"`
	MaxConcurrent int      `yaml:"max_concurrent"`
	FetchTimeout  string   `yaml:"fetch_timeout"`
	Timeout       string   `yaml:"timeout"`
	KeepAlive     string   `yaml:"keep_alive"`
	UserAgent     string   `yaml:"user_agent"`
	Proxy         string   `yaml:"proxy"`
	Token         string   `yaml:"token"`
	Headers       []string `yaml:"headers"`
	S3Profile     string   `yaml:"s3_profile"`
	LogFile       string   `yaml:"log_file"`
	MetricsAddr   string   `yaml:"metrics_addr"`
}

// DefaultPath returns $XDG_CONFIG_HOME/multiget/config.yaml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "multiget", "config.yaml")
}

// Load reads the defaults file and applies environment overrides. An empty
// path means DefaultPath, which may be absent.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		switch {
		case err == nil:
			cfg = fileCfg
		case !explicit && errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()
	if yc.OutputDir != "" {
		cfg.OutputDir = yc.OutputDir
	}
	cfg.Chunks = yc.Chunks
	cfg.ChunkSizeMiB = yc.ChunkSizeMiB
	cfg.LimitMiB = yc.LimitMiB
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	cfg.MaxConcurrent = yc.MaxConcurrent
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"fetch_timeout", yc.FetchTimeout, &cfg.FetchTimeout},
		{"timeout", yc.Timeout, &cfg.Timeout},
		{"keep_alive", yc.KeepAlive, &cfg.KeepAlive},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	cfg.Proxy = yc.Proxy
	cfg.Token = yc.Token
	cfg.Headers = yc.Headers
	if yc.S3Profile != "" {
		cfg.S3Profile = yc.S3Profile
	}
	cfg.LogFile = yc.LogFile
	cfg.MetricsAddr = yc.MetricsAddr
	return cfg, nil
}

// LoadFromEnv applies MULTIGET_ prefixed environment variables.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"MULTIGET_OUTPUT_DIR":   &c.OutputDir,
		"MULTIGET_USER_AGENT":   &c.UserAgent,
		"MULTIGET_PROXY":        &c.Proxy,
		"MULTIGET_TOKEN":        &c.Token,
		"MULTIGET_S3_PROFILE":   &c.S3Profile,
		"MULTIGET_LOG_FILE":     &c.LogFile,
		"MULTIGET_METRICS_ADDR": &c.MetricsAddr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"MULTIGET_CHUNKS":         &c.Chunks,
		"MULTIGET_WORKERS":        &c.Workers,
		"MULTIGET_MAX_CONCURRENT": &c.MaxConcurrent,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = n
		}
	}
	int64s := map[string]*int64{
		"MULTIGET_CHUNK_SIZE": &c.ChunkSizeMiB,
		"MULTIGET_LIMIT":      &c.LimitMiB,
	}
	for key, dst := range int64s {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = n
		}
	}
	durations := map[string]*time.Duration{
		"MULTIGET_FETCH_TIMEOUT": &c.FetchTimeout,
		"MULTIGET_TIMEOUT":       &c.Timeout,
		"MULTIGET_KEEP_ALIVE":    &c.KeepAlive,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports every out-of-range value at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Chunks < 0 {
		result = multierror.Append(result, fmt.Errorf("chunks must not be negative, got %d", c.Chunks))
	}
	if c.ChunkSizeMiB < 0 {
		result = multierror.Append(result, fmt.Errorf("chunk size must not be negative, got %d", c.ChunkSizeMiB))
	}
	if c.LimitMiB < 0 {
		result = multierror.Append(result, fmt.Errorf("limit must not be negative, got %d", c.LimitMiB))
	}
	if c.Workers < 1 {
		result = multierror.Append(result, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.MaxConcurrent < 0 {
		result = multierror.Append(result, fmt.Errorf("max concurrent must not be negative, got %d", c.MaxConcurrent))
	}
	if c.FetchTimeout < 0 || c.Timeout < 0 || c.KeepAlive < 0 {
		result = multierror.Append(result, errors.New("timeouts must not be negative"))
	}
	return result.ErrorOrNil()
}
