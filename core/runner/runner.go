// Package runner executes optimization requests end to end: forecast fetch,
// optimization, schedule publication and run history.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/battopt/core/events"
	"github.com/kilianp07/battopt/core/logger"
	"github.com/kilianp07/battopt/core/model"
	"github.com/kilianp07/battopt/core/monitoring"
	"github.com/kilianp07/battopt/core/mqtt"
	"github.com/kilianp07/battopt/core/optimizer"
	"github.com/kilianp07/battopt/core/runlog"
	"github.com/kilianp07/battopt/internal/eventbus"
)

// Publish status values reported next to the solver status.
const (
	PublishSuccess   = "Success"
	PublishSkipped   = "Skipped: No optimal plan"
	PublishDisabled  = "Skipped: Publishing disabled"
	PublishBadFormat = "Failed: Formatting error"
	publishFailedFmt = "Failed: %v"
)

var (
	// ErrForecastUnavailable is returned when the forecast cannot be fetched.
	ErrForecastUnavailable = errors.New("forecast unavailable")
	// ErrInternal is returned for failures that are not caused by the request
	// or its forecast.
	ErrInternal = errors.New("internal optimization error")
)

// Request is one optimization request.
type Request struct {
	InitialSOCPercent float64
	CurrentIndex      int
	// Battery overrides the configured battery parameters when set.
	Battery *model.BatteryParams
	// Source names the entry point, "http" or "cli".
	Source string
}

// Outcome is the result of a request. Status holds the solver status when the
// optimization ran, or a descriptive message when the inputs were rejected.
type Outcome struct {
	RunID         string           `json:"run_id"`
	Status        string           `json:"status"`
	Optimal       bool             `json:"optimal"`
	ActionNow     float64          `json:"action_now"`
	TotalSavings  float64          `json:"total_savings"`
	PublishStatus string           `json:"publish_status"`
	Result        optimizer.Result `json:"result"`
}

// Runner ties the optimizer to its inputs and outputs.
type Runner struct {
	planner  optimizer.Planner
	forecast mqtt.ForecastSource
	schedule mqtt.SchedulePublisher
	battery  model.BatteryParams
	log      logger.Logger
	bus      eventbus.EventBus
	store    runlog.Store
	now      func() time.Time
	mu       sync.Mutex
}

// New creates a Runner. schedule may be nil to disable publication. battery
// is used for requests that carry no parameters of their own.
func New(planner optimizer.Planner, forecast mqtt.ForecastSource, schedule mqtt.SchedulePublisher, battery model.BatteryParams, bus eventbus.EventBus, log logger.Logger) (*Runner, error) {
	if planner == nil || forecast == nil {
		return nil, fmt.Errorf("runner: nil planner or forecast source")
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Runner{
		planner:  planner,
		forecast: forecast,
		schedule: schedule,
		battery:  battery,
		log:      log,
		bus:      bus,
		store:    runlog.NopStore{},
		now:      time.Now,
	}, nil
}

// SetRunStore configures the store used to persist run records.
func (r *Runner) SetRunStore(store runlog.Store) {
	if store == nil {
		store = runlog.NopStore{}
	}
	r.mu.Lock()
	r.store = store
	r.mu.Unlock()
}

// Store returns the configured run store.
func (r *Runner) Store() runlog.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store
}

// Battery returns the default battery parameters.
func (r *Runner) Battery() model.BatteryParams { return r.battery }

// Close releases the run store and the event bus.
func (r *Runner) Close() error {
	if r.bus != nil {
		r.bus.Close()
	}
	return r.Store().Close()
}

// Run fetches the forecast, optimizes and publishes the plan when it is
// optimal. Rejected inputs are not errors: the Outcome status describes them.
// The returned error wraps ErrForecastUnavailable or ErrInternal.
func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{RunID: uuid.NewString(), PublishStatus: PublishSkipped}
	battery := r.battery
	if req.Battery != nil {
		battery = *req.Battery
	}
	rec := runlog.Record{
		RunID:             out.RunID,
		Timestamp:         r.now(),
		Source:            req.Source,
		InitialSOCPercent: req.InitialSOCPercent,
		CurrentIndex:      req.CurrentIndex,
		Battery:           battery,
	}

	forecast, err := r.fetch(ctx, out.RunID)
	if errors.Is(err, ErrForecastUnavailable) {
		out.Status = "Forecast unavailable"
		r.finish(ctx, req, &out, rec, err)
		return out, err
	}
	if err != nil {
		out.Status = optimizer.StatusText(err)
		r.log.Errorf("run %s: %v", out.RunID, err)
		r.finish(ctx, req, &out, rec, err)
		return out, nil
	}

	res, err := r.planner.Optimize(ctx, optimizer.Request{
		Forecast:          forecast,
		InitialSOCPercent: req.InitialSOCPercent,
		CurrentIndex:      req.CurrentIndex,
		Battery:           battery,
	})
	out.Result = res
	if err != nil {
		out.Status = optimizer.StatusText(err)
		r.finish(ctx, req, &out, rec, err)
		if rejected(err) {
			return out, nil
		}
		monitoring.CaptureException(err, map[string]string{"module": "runner", "run_id": out.RunID})
		return out, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	out.Status = res.Status.String()
	out.Optimal = res.Optimal()
	if out.Optimal {
		out.ActionNow = res.ActionNow
		out.TotalSavings = res.TotalSavings
	}
	out.PublishStatus = r.publish(ctx, out.RunID, res)
	r.finish(ctx, req, &out, rec, nil)
	return out, nil
}

// rejected reports whether err is caused by the request or its forecast.
func rejected(err error) bool {
	return errors.Is(err, model.ErrInvalidForecast) ||
		errors.Is(err, model.ErrInvalidBattery) ||
		errors.Is(err, optimizer.ErrDomain) ||
		errors.Is(err, optimizer.ErrDivision) ||
		errors.Is(err, optimizer.ErrEmptyHorizon)
}

// fetch returns the decoded forecast. Transport failures wrap
// ErrForecastUnavailable, decoding failures wrap model.ErrInvalidForecast.
func (r *Runner) fetch(ctx context.Context, runID string) (model.Forecast, error) {
	start := time.Now()
	payload, err := r.forecast.FetchForecast(ctx)
	ev := events.ForecastEvent{
		RunID:   runID,
		Topic:   topicOf(r.forecast),
		Latency: time.Since(start),
		Err:     err,
		Time:    r.now(),
	}
	if err != nil {
		r.log.Errorf("run %s: fetch forecast from %s: %v", runID, ev.Topic, err)
		r.emit(ev)
		return model.Forecast{}, fmt.Errorf("%w: %w", ErrForecastUnavailable, err)
	}
	fc, err := model.ParseForecast(payload)
	if err != nil {
		ev.Err = err
	}
	ev.Entries = len(fc.Data)
	r.emit(ev)
	return fc, err
}

func (r *Runner) publish(ctx context.Context, runID string, res optimizer.Result) string {
	if !res.Optimal() {
		return PublishSkipped
	}
	if r.schedule == nil {
		return PublishDisabled
	}
	attempts, err := r.schedule.PublishSchedule(ctx, res.Schedule)
	status := PublishSuccess
	switch {
	case errors.Is(err, mqtt.ErrScheduleFormat):
		status = PublishBadFormat
		r.log.Errorf("run %s: format schedule: %v", runID, err)
	case err != nil:
		status = fmt.Sprintf(publishFailedFmt, err)
		r.log.Errorf("run %s: publish schedule: %v", runID, err)
	default:
		r.log.Infof("run %s: published %d steps to %s", runID, len(res.Schedule), topicOf(r.schedule))
	}
	r.emit(events.PublishEvent{
		RunID:    runID,
		Topic:    topicOf(r.schedule),
		Status:   status,
		Attempts: attempts,
		Steps:    len(res.Schedule),
		Err:      err,
		Time:     r.now(),
	})
	return status
}

// finish records the run and announces it on the bus.
func (r *Runner) finish(ctx context.Context, req Request, out *Outcome, rec runlog.Record, runErr error) {
	res := out.Result
	rec.Status = out.Status
	rec.Optimal = out.Optimal
	rec.HorizonStart = res.HorizonStart
	rec.HorizonEnd = res.HorizonEnd
	rec.ActionNow = out.ActionNow
	rec.TotalSavings = out.TotalSavings
	rec.SolveMS = float64(res.SolveDuration) / float64(time.Millisecond)
	rec.PublishStatus = out.PublishStatus
	rec.Schedule = res.Schedule
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := r.Store().Append(ctx, rec); err != nil {
		r.log.Errorf("run %s: store record: %v", out.RunID, err)
	}

	r.emit(events.RunEvent{
		RunID:         out.RunID,
		Source:        req.Source,
		Status:        out.Status,
		Optimal:       out.Optimal,
		HorizonSteps:  len(res.Schedule),
		ActionNow:     out.ActionNow,
		TotalSavings:  out.TotalSavings,
		SolveDuration: res.SolveDuration,
		Schedule:      res.Schedule,
		Err:           runErr,
		Time:          r.now(),
	})
}

func (r *Runner) emit(ev eventbus.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

func topicOf(v any) string {
	if t, ok := v.(interface{ Topic() string }); ok {
		return t.Topic()
	}
	return ""
}
