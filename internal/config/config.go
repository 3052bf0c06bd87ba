// Package config resolves the engine's runtime configuration from defaults,
// a YAML file, an optional .env file and OPERA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/engine"
	"github.com/aretw0/opera/pkg/runner"
	"github.com/aretw0/opera/pkg/timectl"
	"github.com/aretw0/opera/pkg/uci"
)

// EnvPrefix marks the environment variables that override the config.
const EnvPrefix = "OPERA_"

// Config is the effective configuration of one engine process.
type Config struct {
	Engine      EngineSection     `yaml:"engine" mapstructure:"engine"`
	Limits      uci.InputLimits   `yaml:"limits" mapstructure:"limits"`
	Time        TimeConfig        `yaml:"time" mapstructure:"time"`
	Loop        LoopConfig        `yaml:"loop" mapstructure:"loop"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" mapstructure:"diagnostics"`
}

// EngineSection holds the identification and the initial option values.
type EngineSection struct {
	Name                string `yaml:"name" mapstructure:"name"`
	Author              string `yaml:"author" mapstructure:"author"`
	domain.EngineConfig `yaml:",inline" mapstructure:",squash"`
}

// TimeConfig selects and parameterizes the time policy.
type TimeConfig struct {
	Policy       string  `yaml:"policy" mapstructure:"policy"`
	MarginMS     uint64  `yaml:"margin_ms" mapstructure:"margin_ms"`
	SoftFactor   float64 `yaml:"soft_factor" mapstructure:"soft_factor"`
	HardFactor   float64 `yaml:"hard_factor" mapstructure:"hard_factor"`
	MinStability int     `yaml:"min_stability" mapstructure:"min_stability"`
	FixedMS      uint64  `yaml:"fixed_ms" mapstructure:"fixed_ms"`
}

// LoopConfig tunes the event loop and the dispatcher.
type LoopConfig struct {
	DispatchTimeout  time.Duration `yaml:"dispatch_timeout" mapstructure:"dispatch_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	StopTimeout      time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout"`
	ParseTimeout     time.Duration `yaml:"parse_timeout" mapstructure:"parse_timeout"`
	InputBufferSize  int           `yaml:"input_buffer_size" mapstructure:"input_buffer_size"`
	TickInterval     time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	Monitoring       bool          `yaml:"monitoring" mapstructure:"monitoring"`
	ResponseCapacity int           `yaml:"response_capacity" mapstructure:"response_capacity"`
}

// CacheConfig selects the analysis cache backend.
type CacheConfig struct {
	Backend  string        `yaml:"backend" mapstructure:"backend"`
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	Prefix   string        `yaml:"prefix" mapstructure:"prefix"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DiagnosticsConfig enables the HTTP side channel when Addr is set.
type DiagnosticsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	id := engine.DefaultIdentification()
	timeouts := runner.DefaultTimeouts()
	return &Config{
		Engine: EngineSection{
			Name:         id.Name,
			Author:       id.Author,
			EngineConfig: domain.DefaultEngineConfig(),
		},
		Limits: uci.DefaultInputLimits(),
		Time: TimeConfig{
			Policy:       "standard",
			MarginMS:     timectl.DefaultMargin,
			SoftFactor:   timectl.DefaultSoftFactor,
			HardFactor:   timectl.DefaultHardFactor,
			MinStability: timectl.DefaultMinStability,
			FixedMS:      1000,
		},
		Loop: LoopConfig{
			DispatchTimeout:  timeouts.Dispatch,
			WriteTimeout:     timeouts.Write,
			ShutdownTimeout:  timeouts.Shutdown,
			StopTimeout:      engine.DefaultStopTimeout,
			ParseTimeout:     engine.DefaultParseTimeout,
			InputBufferSize:  runner.DefaultInputBufferSize,
			TickInterval:     runner.DefaultTickInterval,
			Monitoring:       true,
			ResponseCapacity: engine.DefaultResponseCapacity,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Addr:    "localhost:6379",
			Prefix:  "opera:",
			TTL:     24 * time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

type loadOptions struct {
	envFile string
	environ []string
}

// Option configures Load.
type Option func(*loadOptions)

// WithEnvFile reads overrides from a dotenv file. A missing file is ignored.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// WithEnviron replaces the process environment, mainly for tests.
func WithEnviron(environ []string) Option {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load resolves defaults, then the YAML file at path (a missing file means
// defaults), then the dotenv file, then the process environment.
func Load(path string, opts ...Option) (*Config, error) {
	o := loadOptions{envFile: ".env", environ: os.Environ()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	env, err := collectEnv(o.envFile, o.environ)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// collectEnv merges the dotenv file under the process environment, keeping
// only OPERA_* keys. Real environment variables win.
func collectEnv(envFile string, environ []string) (map[string]string, error) {
	env := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
		for k, v := range values {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	return env, nil
}

// applyEnv maps OPERA_<SECTION>_<KEY> onto the matching yaml key, e.g.
// OPERA_ENGINE_HASH or OPERA_LIMITS_MAX_FEN_LENGTH.
func (c *Config) applyEnv(env map[string]string) error {
	tree := map[string]any{}
	for k, v := range env {
		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(k, EnvPrefix)), "_")
		if !ok || !isSection(section) {
			continue
		}
		sub, _ := tree[section].(map[string]any)
		if sub == nil {
			sub = map[string]any{}
			tree[section] = sub
		}
		sub[key] = v
	}

	if len(tree) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
			Result:           c,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(tree); err != nil {
			return fmt.Errorf("invalid environment override: %w", err)
		}
	}

	if v, ok := env[uci.EnvMaxInputSize]; ok {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return fmt.Errorf("invalid %s: %q", uci.EnvMaxInputSize, v)
		}
		c.Limits.MaxCommandLength = size
	}
	return nil
}

func isSection(name string) bool {
	switch name {
	case "engine", "limits", "time", "loop", "cache", "log", "diagnostics":
		return true
	}
	return false
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Time.Policy {
	case "standard", "fixed", "infinite":
	default:
		return fmt.Errorf("unknown time policy %q", c.Time.Policy)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Engine.HashMB < engine.MinHashMB || c.Engine.HashMB > engine.MaxHashMB {
		return fmt.Errorf("engine.hash must be within %d..%d MB", engine.MinHashMB, engine.MaxHashMB)
	}
	if c.Engine.Threads < engine.MinThreads || c.Engine.Threads > engine.MaxThreads {
		return fmt.Errorf("engine.threads must be within %d..%d", engine.MinThreads, engine.MaxThreads)
	}
	return nil
}

// TimePolicy builds the configured time policy.
func (c *Config) TimePolicy() timectl.Policy {
	switch c.Time.Policy {
	case "standard":
		return timectl.NewStandard(c.Time.MarginMS, c.Time.SoftFactor,
			timectl.WithHardFactor(c.Time.HardFactor),
			timectl.WithMinStability(c.Time.MinStability))
	default:
		return timectl.PolicyByName(c.Time.Policy, c.Time.FixedMS)
	}
}

// Identification returns what the engine announces on "uci".
func (c *Config) Identification(version string) engine.Identification {
	return engine.Identification{Name: c.Engine.Name, Author: c.Engine.Author, Version: version}
}

// Timeouts returns the loop timeouts.
func (c *Config) Timeouts() runner.Timeouts {
	return runner.Timeouts{
		Dispatch: c.Loop.DispatchTimeout,
		Write:    c.Loop.WriteTimeout,
		Shutdown: c.Loop.ShutdownTimeout,
	}
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
