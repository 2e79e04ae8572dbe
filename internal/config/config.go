package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted after the YAML file is applied.
const (
	EnvAPIKey1    = "VITE_GEMINI_API_KEY_1"
	EnvAPIKey2    = "VITE_GEMINI_API_KEY_2"
	EnvListenAddr = "NETSIGHT_LISTEN_ADDR"
	EnvNATSURL    = "NETSIGHT_NATS_URL"
)

// DefaultGeminiURL is the generateContent endpoint the insight proxy calls.
const DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// InsightConfig holds the upstream generative AI settings.
type InsightConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Timeout  string   `yaml:"timeout"`
	APIKeys  []string `yaml:"api_keys"`
}

// SimulatorConfig holds the event simulator settings.
type SimulatorConfig struct {
	Interval         string  `yaml:"interval"`
	AlertProbability float64 `yaml:"alert_probability"`
}

// CaptureConfig holds the recent-frame ring settings.
type CaptureConfig struct {
	RingSize int `yaml:"ring_size"`
}

// NATSConfig holds the optional event mirror settings. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Insight   InsightConfig   `yaml:"insight"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Capture   CaptureConfig   `yaml:"capture"`
	NATS      NATSConfig      `yaml:"nats"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  ":5000",
			CORSOrigins: []string{"*"},
		},
		Insight: InsightConfig{
			Endpoint: DefaultGeminiURL,
			Timeout:  "10s",
		},
		Simulator: SimulatorConfig{
			Interval:         "1s",
			AlertProbability: 0.2,
		},
		Capture: CaptureConfig{
			RingSize: 1000,
		},
		NATS: NATSConfig{
			SubjectPrefix: "netsight.events",
		},
	}
}

// LoadConfig reads the configuration from a YAML file on top of the defaults and
// then applies environment overrides. A missing file is not an error.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
			}
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment values. Both API key variables are always
// read when either is present; unset keys stay in the list as empty strings.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	key1, ok1 := lookup(EnvAPIKey1)
	key2, ok2 := lookup(EnvAPIKey2)
	if ok1 || ok2 || len(c.Insight.APIKeys) == 0 {
		c.Insight.APIKeys = []string{key1, key2}
	}
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		c.Server.ListenAddr = v
	}
	if v, ok := lookup(EnvNATSURL); ok {
		c.NATS.URL = v
	}
}

func (c *Config) validate() error {
	if _, err := c.Insight.RequestTimeout(); err != nil {
		return err
	}
	if _, err := c.Simulator.TickInterval(); err != nil {
		return err
	}
	if p := c.Simulator.AlertProbability; p < 0 || p > 1 {
		return fmt.Errorf("simulator.alert_probability must be within [0,1], got %v", p)
	}
	if c.Capture.RingSize < 0 {
		return fmt.Errorf("capture.ring_size must not be negative, got %d", c.Capture.RingSize)
	}
	return nil
}

// RequestTimeout parses the per-call upstream timeout.
func (c InsightConfig) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid insight.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("insight.timeout must be positive, got %s", d)
	}
	return d, nil
}

// TickInterval parses the simulator sleep between ticks.
func (c SimulatorConfig) TickInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid simulator.interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("simulator.interval must be positive, got %s", d)
	}
	return d, nil
}
