package events

import (
	"time"

	"github.com/kilianp07/battopt/core/model"
)

// RunEvent is published once per optimization request.
type RunEvent struct {
	RunID string
	// Source names the entry point, "http" or "cli".
	Source        string
	Status        string
	Optimal       bool
	HorizonSteps  int
	ActionNow     float64
	TotalSavings  float64
	SolveDuration time.Duration
	Schedule      []model.ScheduleStep
	Err           error
	Time          time.Time
}
