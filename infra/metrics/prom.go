package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/battopt/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records optimization runs in Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	savings  prometheus.Gauge
	action   prometheus.Gauge
	fetches  *prometheus.CounterVec
	fetchLat prometheus.Histogram
	publish  *prometheus.CounterVec
}

// NewPromSink registers optimizer metrics on the default Prometheus registerer.
// They are exposed by the service's /metrics endpoint.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battopt_runs_total",
		Help: "Total number of optimization runs",
	}, []string{"status", "source"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "battopt_solve_duration_seconds",
		Help:    "Time spent in the MILP solver",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	savings := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "battopt_estimated_savings",
		Help: "Objective value of the last optimal plan",
	})
	action := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "battopt_action_now_kwh",
		Help: "Energy planned for the current step of the last optimal plan",
	})
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battopt_forecast_fetches_total",
		Help: "Forecast fetches over MQTT",
	}, []string{"success"})
	fetchLat := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "battopt_forecast_fetch_seconds",
		Help:    "Time between subscribing and receiving a forecast",
		Buckets: prometheus.DefBuckets,
	})
	publish := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battopt_schedule_publish_total",
		Help: "Schedule publications by outcome",
	}, []string{"success"})

	var err error
	if runs, err = register(reg, runs); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if savings, err = register(reg, savings); err != nil {
		return nil, err
	}
	if action, err = register(reg, action); err != nil {
		return nil, err
	}
	if fetches, err = register(reg, fetches); err != nil {
		return nil, err
	}
	if fetchLat, err = register(reg, fetchLat); err != nil {
		return nil, err
	}
	if publish, err = register(reg, publish); err != nil {
		return nil, err
	}
	return &PromSink{
		runs:     runs,
		duration: duration,
		savings:  savings,
		action:   action,
		fetches:  fetches,
		fetchLat: fetchLat,
		publish:  publish,
	}, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun counts the run and updates the plan gauges for optimal runs.
func (s *PromSink) RecordRun(r coremetrics.RunMetric) error {
	s.runs.WithLabelValues(r.Status, r.Source).Inc()
	if r.SolveDuration > 0 {
		s.duration.WithLabelValues(r.Status).Observe(r.SolveDuration.Seconds())
	}
	if r.Optimal {
		s.savings.Set(r.TotalSavings)
		s.action.Set(r.ActionNow)
	}
	return nil
}

// RecordForecastFetch counts fetches and observes the latency of successful ones.
func (s *PromSink) RecordForecastFetch(f coremetrics.ForecastFetchMetric) error {
	s.fetches.WithLabelValues(strconv.FormatBool(f.Success)).Inc()
	if f.Success {
		s.fetchLat.Observe(f.Latency.Seconds())
	}
	return nil
}

// RecordSchedulePublish counts publications by outcome.
func (s *PromSink) RecordSchedulePublish(p coremetrics.PublishMetric) error {
	s.publish.WithLabelValues(strconv.FormatBool(p.Success)).Inc()
	return nil
}
