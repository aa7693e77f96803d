package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	corelogger "github.com/kilianp07/battopt/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// Config selects the logging backend, format and level.
type Config struct {
	// Backend is "zerolog" (default) or "logrus".
	Backend string `json:"backend"`
	// Format is "json" or "console". Empty follows APP_ENV: "dev" gives
	// console output.
	Format string `json:"format"`
	Level  string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "zerolog"
	}
	if c.Format == "" {
		c.Format = "json"
		if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
			c.Format = "console"
		}
	}
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the backend, format and level names.
func (c Config) Validate() error {
	switch c.Backend {
	case "zerolog", "logrus":
	default:
		return fmt.Errorf("unknown log backend %s", c.Backend)
	}
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %s", c.Format)
	}
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %s", c.Level)
	}
	return nil
}

var (
	mu      sync.RWMutex
	current = defaultConfig()
	out     io.Writer = os.Stdout
)

func defaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// Configure sets the configuration used by later calls to New.
func Configure(cfg Config) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	mu.Lock()
	current = cfg
	mu.Unlock()
	return nil
}

// SetOutput redirects loggers created afterwards.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// New returns a Logger for the given component using the configured backend.
func New(component string) Logger {
	mu.RLock()
	cfg, w := current, out
	mu.RUnlock()
	if cfg.Backend == "logrus" {
		return newLogrusLogger(component, cfg, w)
	}
	return newZerologLogger(component, cfg, w)
}
