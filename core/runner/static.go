package runner

import (
	"context"
	"os"
)

// StaticForecast serves a fixed forecast payload.
type StaticForecast []byte

// FetchForecast implements mqtt.ForecastSource.
func (s StaticForecast) FetchForecast(context.Context) ([]byte, error) { return s, nil }

// FileForecast reads the forecast from a file on every fetch.
type FileForecast string

// FetchForecast implements mqtt.ForecastSource.
func (f FileForecast) FetchForecast(context.Context) ([]byte, error) { return os.ReadFile(string(f)) }

// Topic reports the file path in forecast events.
func (f FileForecast) Topic() string { return "file:" + string(f) }
