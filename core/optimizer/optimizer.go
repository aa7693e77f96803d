package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/battopt/core/logger"
	"github.com/kilianp07/battopt/core/milp"
	"github.com/kilianp07/battopt/core/model"
)

// ErrNoSolver is returned by Optimize when the optimizer has no backend.
var ErrNoSolver = errors.New("no solver configured")

// Request is the input of one optimization.
type Request struct {
	Forecast          model.Forecast
	InitialSOCPercent float64
	CurrentIndex      int
	Battery           model.BatteryParams
}

// Result is the output of one optimization. Schedule is nil, ActionNow and
// TotalSavings are zero unless Status is milp.StatusOptimal.
type Result struct {
	Status   milp.Status          `json:"status"`
	Schedule []model.ScheduleStep `json:"schedule,omitempty"`
	// ActionNow is the energy for the first step: positive charges, negative
	// discharges, zero holds.
	ActionNow     float64       `json:"action_now"`
	TotalSavings  float64       `json:"total_savings"`
	Digest        string        `json:"digest,omitempty"`
	Bounds        Bounds        `json:"bounds"`
	HorizonStart  int           `json:"horizon_start"`
	HorizonEnd    int           `json:"horizon_end"`
	SolveDuration time.Duration `json:"solve_duration"`
}

// Optimal reports whether the result carries a schedule.
func (r Result) Optimal() bool { return r.Status == milp.StatusOptimal }

// Planner produces a battery plan from a forecast and battery parameters.
type Planner interface {
	Name() string
	Optimize(ctx context.Context, req Request) (Result, error)
}

// Optimizer plans with a mixed-integer program. It holds no per-call state.
type Optimizer struct {
	cfg    Config
	solver milp.Solver
	log    logger.Logger
}

var _ Planner = (*Optimizer)(nil)

// New returns an Optimizer using solver. A nil logger discards output.
func New(cfg Config, solver milp.Solver, log logger.Logger) *Optimizer {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Optimizer{cfg: cfg, solver: solver, log: log}
}

// Name implements Planner.
func (o *Optimizer) Name() string { return "milp" }

// Optimize runs one optimization. Validation, efficiency, horizon and solver
// backend failures are returned as errors. A solve that ends without an
// optimum is not an error: the returned Result carries the status and no
// schedule.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (Result, error) {
	if o.solver == nil {
		return Result{}, ErrNoSolver
	}
	if err := req.Battery.Validate(); err != nil {
		o.log.Errorf("battery parameters: %v", err)
		return Result{}, err
	}
	bounds, err := Normalize(req.Battery, req.InitialSOCPercent)
	if err != nil {
		o.log.Errorf("normalize: %v", err)
		return Result{}, err
	}
	if bounds.InitialClamped {
		o.log.Warnf("initial SOC %.2f%% outside [%.2f, %.2f] kWh, clamped to %.4f kWh",
			req.InitialSOCPercent, bounds.MinSOCKWh, bounds.MaxSOCKWh, bounds.InitialSOCKWh)
	}
	h, err := BuildHorizon(req.Forecast, req.CurrentIndex)
	if err != nil {
		o.log.Errorf("horizon: %v", err)
		return Result{}, err
	}

	res := Result{
		Bounds:       bounds,
		HorizonStart: h.OriginalIndex(0),
		HorizonEnd:   h.OriginalIndex(h.Len() - 1),
	}
	o.log.Debugw("optimization started", map[string]any{
		"capacity_kwh":       req.Battery.CapacityKWh,
		"min_soc_kwh":        bounds.MinSOCKWh,
		"max_rate_kw":        req.Battery.MaxRateKW,
		"one_way_efficiency": bounds.OneWayEfficiency,
		"initial_soc_kwh":    bounds.InitialSOCKWh,
		"current_index":      req.CurrentIndex,
		"horizon_steps":      h.Len(),
		"horizon_start":      res.HorizonStart,
		"horizon_end":        res.HorizonEnd,
	})

	f := formulate(bounds, h)

	solveCtx := ctx
	if o.cfg.SolveTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, o.cfg.SolveTimeout)
		defer cancel()
	}
	start := time.Now()
	sol, err := o.solver.Solve(solveCtx, f.problem)
	res.SolveDuration = time.Since(start)
	res.Status = sol.Status
	if err != nil && !errors.Is(err, milp.ErrLimitReached) {
		o.log.Errorf("solve: %v", err)
		return res, fmt.Errorf("solve: %w", err)
	}
	o.log.Infof("solver status: %s (%d nodes, %s)", sol.Status, sol.Nodes, res.SolveDuration)
	if sol.Status != milp.StatusOptimal {
		if err != nil {
			o.log.Warnf("solver stopped early: %v", err)
		}
		o.log.Warnf("no optimal schedule, status %s", sol.Status)
		return res, nil
	}
	if len(sol.Values) != len(f.problem.Vars) {
		return res, fmt.Errorf("solve: %d values for %d variables", len(sol.Values), len(f.problem.Vars))
	}

	ex := extract(f, sol, bounds, h, req.Battery.CapacityKWh, o.cfg)
	res.Schedule = ex.schedule
	res.ActionNow = ex.action
	res.TotalSavings = sol.Objective
	res.Digest = ex.digest
	o.log.Infof("optimal schedule, savings %.4f, action for index %d: %.4f", res.TotalSavings, res.HorizonStart, res.ActionNow)
	o.log.Infof("next %d-step plan: %s", min(o.cfg.DigestSteps, h.Len()), res.Digest)
	return res, nil
}
