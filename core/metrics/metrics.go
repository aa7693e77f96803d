package metrics

import (
	"time"

	"github.com/kilianp07/battopt/core/model"
)

// RunMetric describes one optimization run.
type RunMetric struct {
	RunID         string
	Source        string
	Status        string
	Optimal       bool
	HorizonSteps  int
	ActionNow     float64
	TotalSavings  float64
	SolveDuration time.Duration
	Time          time.Time
}

// MetricsSink consumes optimization run metrics.
type MetricsSink interface {
	RecordRun(RunMetric) error
}

// ScheduleMetric carries the planned steps of an optimal run.
type ScheduleMetric struct {
	RunID string
	Steps []model.ScheduleStep
	Time  time.Time
}

// ScheduleRecorder records the individual steps of a plan.
type ScheduleRecorder interface {
	RecordSchedule(ScheduleMetric) error
}

// ForecastFetchMetric reports a forecast fetch over the message broker.
type ForecastFetchMetric struct {
	Topic   string
	Entries int
	Success bool
	Latency time.Duration
	Time    time.Time
}

// ForecastRecorder records forecast fetches.
type ForecastRecorder interface {
	RecordForecastFetch(ForecastFetchMetric) error
}

// PublishMetric reports a schedule publication.
type PublishMetric struct {
	RunID    string
	Topic    string
	Status   string
	Success  bool
	Attempts int
	Time     time.Time
}

// PublishRecorder records schedule publications.
type PublishRecorder interface {
	RecordSchedulePublish(PublishMetric) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunMetric) error                     { return nil }
func (NopSink) RecordSchedule(ScheduleMetric) error           { return nil }
func (NopSink) RecordForecastFetch(ForecastFetchMetric) error { return nil }
func (NopSink) RecordSchedulePublish(PublishMetric) error     { return nil }
