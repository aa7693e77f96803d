package metrics

// Package metrics defines the sinks that record optimization runs. Sinks like
// PromSink and InfluxSink in infra/metrics implement MetricsSink and any of
// the optional recorders (ScheduleRecorder, ForecastRecorder,
// PublishRecorder). The factory returns a MultiSink automatically when
// multiple sinks are configured.
