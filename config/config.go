package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/battopt/core/factory"
	"github.com/kilianp07/battopt/core/metrics"
	"github.com/kilianp07/battopt/core/model"
	"github.com/kilianp07/battopt/core/optimizer"
	"github.com/kilianp07/battopt/infra/logger"
	"github.com/kilianp07/battopt/infra/mqtt"
)

type Config struct {
	Server    ServerConfig         `json:"server"`
	Battery   model.BatteryParams  `json:"battery"`
	Optimizer optimizer.Config     `json:"optimizer"`
	MQTT      mqtt.Config          `json:"mqtt"`
	Forecast  ForecastConfig       `json:"forecast"`
	Schedule  ScheduleConfig       `json:"schedule"`
	Metrics   metrics.Config       `json:"metrics"`
	RunLog    factory.ModuleConfig `json:"runlog"`
	Logging   logger.Config        `json:"logging"`
	Sentry    SentryConfig         `json:"sentry"`
}

// Default returns the configuration used when no file is given. Keys missing
// from a loaded file keep these values.
func Default() *Config {
	cfg := &Config{Battery: model.DefaultBatteryParams()}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero fields of every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Optimizer.SetDefaults()
	c.Forecast.SetDefaults()
	c.Schedule.SetDefaults()
	c.Logging.SetDefaults()
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Battery.Validate(); err != nil {
		return fmt.Errorf("battery: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server: address is required")
	}
	return nil
}

// Load reads a YAML or JSON file, applies K_ prefixed environment overrides
// (K_MQTT__BROKER sets mqtt.broker) and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := &Config{Battery: model.DefaultBatteryParams()}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
