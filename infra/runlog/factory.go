package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/battopt/core/factory"
	core "github.com/kilianp07/battopt/core/runlog"
)

// init registers the built-in run history stores.
func init() {
	_ = core.RegisterStore("sqlite", func(conf map[string]any) (core.Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "battopt-runs.db"
		}
		return NewSQLiteStore(c.Path)
	})

	_ = core.RegisterStore("jsonl", func(conf map[string]any) (core.Store, error) {
		c := struct {
			Path       string `json:"path"`
			MaxSizeMB  int    `json:"max_size_mb"`
			MaxBackups int    `json:"max_backups"`
			MaxAgeDays int    `json:"max_age_days"`
		}{MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("runlog jsonl: path required")
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})

	_ = core.RegisterStore("postgres", func(conf map[string]any) (core.Store, error) {
		var c struct {
			ConnString string `json:"conn_string"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.ConnString == "" {
			return nil, fmt.Errorf("runlog postgres: conn_string required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return NewPostgresStore(ctx, c.ConnString)
	})
}
