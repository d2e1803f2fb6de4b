package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/json"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/minilang"
)

// Config is the file configuration shared by the CLI and the HTTP service.
type Config struct {
	Runtime    RuntimeSettings `json:"runtime" yaml:"runtime"`
	Server     ServerSettings  `json:"server" yaml:"server"`
	Cache      CacheSettings   `json:"cache" yaml:"cache"`
	Transcript string          `json:"transcript" yaml:"transcript"`
	Variables  map[string]any  `json:"variables" yaml:"variables"`
}

// RuntimeSettings mirrors minilang.RuntimeConfig with durations as strings
// ("250ms", "5s") so every format can express them.
type RuntimeSettings struct {
	Timeout           string `json:"timeout" yaml:"timeout"`
	MaxLoopIterations int64  `json:"max_loop_iterations" yaml:"max_loop_iterations"`
	MaxNestingDepth   int    `json:"max_nesting_depth" yaml:"max_nesting_depth"`
	LogExecution      *bool  `json:"log_execution" yaml:"log_execution"`
}

type ServerSettings struct {
	Addr      string `json:"addr" yaml:"addr"`
	Timeout   string `json:"timeout" yaml:"timeout"`
	BodyLimit int    `json:"body_limit" yaml:"body_limit"`
}

type CacheSettings struct {
	MaxPrograms int `json:"max_programs" yaml:"max_programs"`
}

func Default() *Config {
	return &Config{
		Runtime: RuntimeSettings{MaxNestingDepth: 256},
		Server:  ServerSettings{Addr: ":8080", Timeout: "5s", BodyLimit: 1 << 20},
		Cache:   CacheSettings{MaxPrograms: 1024},
	}
}

// Load reads a config file, choosing the decoder from the extension.
// Unknown extensions fall back to content detection.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decode(raw, yaml.Unmarshal)
	case ".json":
		return decode(raw, unmarshalJSON)
	case ".bcl":
		return decode(raw, unmarshalBCL)
	}
	return Detect(string(raw))
}

// LoadFromString decodes content in the named format: yaml, json or bcl.
func LoadFromString(content, format string) (*Config, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return decode([]byte(content), yaml.Unmarshal)
	case "json":
		return decode([]byte(content), unmarshalJSON)
	case "bcl":
		return decode([]byte(content), unmarshalBCL)
	}
	return nil, fmt.Errorf("unsupported config format: %s", format)
}

// Detect tries JSON, YAML and BCL in that order.
func Detect(content string) (*Config, error) {
	trimmed := []byte(strings.TrimSpace(content))
	for _, fn := range []func([]byte, any) error{unmarshalJSON, yaml.Unmarshal, unmarshalBCL} {
		if cfg, err := decode(trimmed, fn); err == nil {
			return cfg, nil
		}
	}
	return nil, errors.New("unable to detect config format, please provide valid JSON, YAML, or BCL")
}

func unmarshalJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func unmarshalBCL(data []byte, v any) error {
	if _, err := bcl.Unmarshal(data, v); err != nil {
		return err
	}
	// bcl adds the block label as "name" to every block it decodes
	if cfg, ok := v.(*Config); ok && cfg.Variables["name"] == "variables" {
		delete(cfg.Variables, "name")
	}
	return nil
}

func decode(data []byte, fn func([]byte, any) error) (*Config, error) {
	cfg := Default()
	if err := fn(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if _, err := parseDuration(cfg.Runtime.Timeout); err != nil {
		return fmt.Errorf("runtime.timeout: %w", err)
	}
	if _, err := parseDuration(cfg.Server.Timeout); err != nil {
		return fmt.Errorf("server.timeout: %w", err)
	}
	if cfg.Runtime.MaxLoopIterations < 0 {
		return errors.New("runtime.max_loop_iterations must not be negative")
	}
	if cfg.Runtime.MaxNestingDepth < 0 {
		return errors.New("runtime.max_nesting_depth must not be negative")
	}
	if cfg.Cache.MaxPrograms < 0 {
		return errors.New("cache.max_programs must not be negative")
	}
	if len(cfg.Variables) > 0 {
		if _, err := minilang.NewEnvironmentFromData(cfg.Variables); err != nil {
			return fmt.Errorf("variables: %w", err)
		}
	}
	return nil
}

// RuntimeConfig converts the runtime settings. Call after Validate.
func (cfg *Config) RuntimeConfig() minilang.RuntimeConfig {
	timeout, _ := parseDuration(cfg.Runtime.Timeout)
	logExecution := true
	if cfg.Runtime.LogExecution != nil {
		logExecution = *cfg.Runtime.LogExecution
	}
	return minilang.RuntimeConfig{
		Timeout:           timeout,
		MaxLoopIterations: cfg.Runtime.MaxLoopIterations,
		MaxNestingDepth:   cfg.Runtime.MaxNestingDepth,
		LogExecution:      logExecution,
	}
}

func (cfg *Config) ServerTimeout() time.Duration {
	d, _ := parseDuration(cfg.Server.Timeout)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
