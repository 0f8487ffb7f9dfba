package stackjob

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/stackjob/stackjob/logging"
)

// Environment variables honoured by FromEnv. The names are fixed by the
// runner service deployment contract.
const (
	EnvRunnerURL           = "TERRAFORM_RUNNER_URL"
	EnvRunnerToken         = "TERRAFORM_RUNNER_TOKEN"
	EnvStackJobCheckSecs   = "TERRAFORM_RUNNER_STACK_JOB_CHECK_INTERVAL"
	EnvStackJobMaxTimeSecs = "TERRAFORM_RUNNER_STACK_JOB_MAX_TIME"
)

// DefaultRunnerURL is the in-cluster address of the runner service.
const DefaultRunnerURL = "https://opentofu-runner:6000"

// Config is a serialisable representation of the service configuration. It
// can be populated from JSON, YAML, environment variables, etc. The
// zero-value is useful – all nested fields inherit their package defaults.
type Config struct {
	Runner    RunnerConfig    `json:"runner" yaml:"runner"`
	Processor ProcessorConfig `json:"processor" yaml:"processor"`
	Queue     QueueConfig     `json:"queue" yaml:"queue"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Logging   logging.Config  `json:"logging" yaml:"logging"`

	// Podified keeps every job in the process that started it instead of
	// distributing transitions across queue workers.
	Podified bool `json:"podified" yaml:"podified"`
}

// RunnerConfig addresses and authenticates the runner service.
type RunnerConfig struct {
	URL string `json:"url" yaml:"url"`

	// Token is a pre-issued bearer token. When empty a token is minted per
	// request from the HMAC key below.
	Token      string `json:"token,omitempty" yaml:"token,omitempty"`
	HMACKeyURL string `json:"hmacKeyURL,omitempty" yaml:"hmacKeyURL,omitempty"`
	Identity   string `json:"identity,omitempty" yaml:"identity,omitempty"`

	// CheckInterval is the delay between stack job status checks.
	CheckInterval time.Duration `json:"checkInterval,omitempty" yaml:"checkInterval,omitempty"`

	// MaxTime bounds how long one stack job may run before it is stopped.
	MaxTime time.Duration `json:"maxTime,omitempty" yaml:"maxTime,omitempty"`
}

type ProcessorConfig struct {
	WorkerCount int `json:"workers" yaml:"workers"`
}

// QueueConfig selects the signal queue backend: empty BasePath means the
// in-memory queue, otherwise the durable file-backed queue rooted there.
type QueueConfig struct {
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`
}

// StoreConfig selects the job store backend, same convention as QueueConfig.
type StoreConfig struct {
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`
}

// DefaultConfig returns a Config populated with the deployment defaults.
// Callers may modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Runner: RunnerConfig{
			URL:           DefaultRunnerURL,
			Identity:      "opentofu-runner",
			CheckInterval: 10 * time.Second,
			MaxTime:       120 * time.Second,
		},
		Processor: ProcessorConfig{WorkerCount: 5},
	}
}

// FromEnv builds a Config from the deployment environment, falling back to
// DefaultConfig for anything unset.
func FromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvRunnerURL); v != "" {
		cfg.Runner.URL = v
	}
	if v := os.Getenv(EnvRunnerToken); v != "" {
		cfg.Runner.Token = v
	}
	if secs, ok := envSeconds(EnvStackJobCheckSecs); ok {
		cfg.Runner.CheckInterval = secs
	}
	if secs, ok := envSeconds(EnvStackJobMaxTimeSecs); ok {
		cfg.Runner.MaxTime = secs
	}
	return cfg
}

// LoadConfig reads a YAML configuration from the given location (any
// afs-supported scheme), layered over the environment-derived defaults.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", URL, err)
	}
	cfg := FromEnv()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", URL, err)
	}
	return cfg, nil
}

func envSeconds(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Runner.URL == "" {
		return fmt.Errorf("runner.url is required")
	}
	if c.Processor.WorkerCount <= 0 {
		return fmt.Errorf("processor.workers must be > 0")
	}
	if c.Runner.CheckInterval <= 0 {
		return fmt.Errorf("runner.checkInterval must be > 0")
	}
	return nil
}
