package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kilianp07/battopt/auth"
	"github.com/kilianp07/battopt/infra/mqtt"
)

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Address string `json:"address"`
	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string `json:"cors_origins"`
	// APIToken and JWTSecret protect the /api routes. Either credential is
	// accepted when both are set.
	APIToken    string        `json:"api_token"`
	JWTSecret   string        `json:"jwt_secret"`
	ReadTimeout time.Duration `json:"read_timeout"`
	// ShutdownTimeout bounds the graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":5001"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// ForecastConfig defines where price forecasts are read from. When URL is
// set the forecast is fetched over HTTP instead of the broker topic.
type ForecastConfig struct {
	Topic   string        `json:"topic"`
	Timeout time.Duration `json:"timeout"`
	URL     string        `json:"url"`
	Auth    auth.Conf     `json:"auth"`
}

// Source names the forecast origin and its kind in logs and error responses,
// "price API <url>" or "MQTT topic <topic>".
func (c ForecastConfig) Source() string {
	if c.URL != "" {
		return "price API " + c.URL
	}
	return "MQTT topic " + c.Topic
}

// SetDefaults applies sane defaults.
func (c *ForecastConfig) SetDefaults() {
	if c.Topic == "" {
		c.Topic = mqtt.DefaultForecastTopic
	}
	if c.Timeout <= 0 {
		c.Timeout = mqtt.DefaultForecastTimeout
	}
}

// Validate rejects wildcard topics, which would deliver unrelated messages.
func (c ForecastConfig) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("forecast url %q must be http or https", c.URL)
		}
	}
	for _, r := range c.Topic {
		if r == '+' || r == '#' {
			return fmt.Errorf("topic %q must not contain wildcards", c.Topic)
		}
	}
	return nil
}

// ScheduleConfig defines where optimal plans are published.
type ScheduleConfig struct {
	Topic    string `json:"topic"`
	Retain   bool   `json:"retain"`
	Disabled bool   `json:"disabled"`
}

// SetDefaults applies sane defaults.
func (c *ScheduleConfig) SetDefaults() {
	if c.Topic == "" {
		c.Topic = mqtt.DefaultScheduleTopic
	}
}
