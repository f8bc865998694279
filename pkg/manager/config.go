package manager

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DriverConfig is one entry of the config file's `drivers` map: the pool
// policy, resource class, and backend endpoint for a single driver.
type DriverConfig struct {
	Class         string `yaml:"class"`
	Endpoint      string `yaml:"endpoint"`
	LowWatermark  int    `yaml:"low_watermark"`
	HighWatermark int    `yaml:"high_watermark"`
}

// Config is poolkeeperd's full startup configuration, loaded from a YAML
// file and overridable by CLI flags in cmd/poolkeeperd.
type Config struct {
	BindHost          string                  `yaml:"bind_host"`
	BindPort          int                     `yaml:"bind_port"`
	DataDir           string                  `yaml:"data_dir"`
	WorkersCount      int                     `yaml:"workers_count"`
	TaskQueueTimeout  int                     `yaml:"task_queue_timeout"`
	SleepTime         int                     `yaml:"sleep_time"`
	Drivers           map[string]DriverConfig `yaml:"drivers"`
}

// DefaultConfig returns the configuration poolkeeperd runs with if no flag
// or file overrides a given field.
func DefaultConfig() *Config {
	return &Config{
		BindHost:         "0.0.0.0",
		BindPort:         8080,
		DataDir:          "./data",
		WorkersCount:     4,
		TaskQueueTimeout: 5,
		SleepTime:        10,
		Drivers:          map[string]DriverConfig{},
	}
}

// LoadConfig reads and parses a YAML config file at path, starting from
// DefaultConfig so a file only needs to specify what it overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable. A failure here is
// Fatal: the process exits before any subsystem starts.
func (c *Config) Validate() error {
	if c.WorkersCount <= 0 {
		return fmt.Errorf("workers_count must be positive, got %d", c.WorkersCount)
	}
	if c.TaskQueueTimeout <= 0 {
		return fmt.Errorf("task_queue_timeout must be positive, got %d", c.TaskQueueTimeout)
	}
	if c.SleepTime <= 0 {
		return fmt.Errorf("sleep_time must be positive, got %d", c.SleepTime)
	}
	for name, d := range c.Drivers {
		if d.LowWatermark < 0 || d.HighWatermark < d.LowWatermark {
			return fmt.Errorf("driver %q: high_watermark must be >= low_watermark >= 0", name)
		}
	}
	return nil
}
