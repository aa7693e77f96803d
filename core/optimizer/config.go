package optimizer

import (
	"time"

	"github.com/kilianp07/battopt/core/factory"
)

const (
	// StepHours is the duration of one horizon step.
	StepHours = 1.0
	// DefaultZeroThresholdKWh is the energy below which a step is a hold.
	DefaultZeroThresholdKWh = 0.01
	// DigestSteps is the number of steps summarized in the plan digest.
	DigestSteps = 12
	// DefaultSolveTimeout bounds a single solve.
	DefaultSolveTimeout = 30 * time.Second
)

// Config holds the optimizer settings.
type Config struct {
	// Solver selects the milp backend. It is consumed by the service wiring.
	Solver           factory.ModuleConfig `json:"solver"`
	ZeroThresholdKWh float64              `json:"zero_threshold_kwh"`
	DigestSteps      int                  `json:"digest_steps"`
	// SolveTimeout bounds the solver call. A negative value disables it.
	SolveTimeout time.Duration `json:"solve_timeout"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.ZeroThresholdKWh <= 0 {
		c.ZeroThresholdKWh = DefaultZeroThresholdKWh
	}
	if c.DigestSteps <= 0 {
		c.DigestSteps = DigestSteps
	}
	if c.SolveTimeout == 0 {
		c.SolveTimeout = DefaultSolveTimeout
	}
}
