package mqtt

import "errors"

var (
	// ErrForecastTimeout is returned when no forecast arrives before the deadline.
	ErrForecastTimeout = errors.New("timeout waiting for forecast")
	// ErrForecastPayload is returned when the received message has no data key.
	ErrForecastPayload = errors.New("forecast payload has no data key")
	// ErrNotConnected is returned when the broker connection is down.
	ErrNotConnected = errors.New("mqtt client not connected")
	// ErrScheduleFormat is returned when a schedule cannot be encoded.
	ErrScheduleFormat = errors.New("schedule formatting error")
)
