package events

import "time"

// ForecastEvent reports a forecast fetch.
type ForecastEvent struct {
	RunID   string
	Topic   string
	Entries int
	Latency time.Duration
	Err     error
	Time    time.Time
}
