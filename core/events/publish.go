package events

import "time"

// PublishEvent reports the outcome of publishing a schedule.
type PublishEvent struct {
	RunID    string
	Topic    string
	Status   string
	Attempts int
	Steps    int
	Err      error
	Time     time.Time
}
