package metrics

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the run to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRun(r RunMetric) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordSchedule forwards plan steps to sinks that record them.
func (m *MultiSink) RecordSchedule(sm ScheduleMetric) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ScheduleRecorder); ok {
			if err := rec.RecordSchedule(sm); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordForecastFetch forwards forecast fetch metrics.
func (m *MultiSink) RecordForecastFetch(fm ForecastFetchMetric) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ForecastRecorder); ok {
			if err := rec.RecordForecastFetch(fm); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSchedulePublish forwards publication metrics.
func (m *MultiSink) RecordSchedulePublish(pm PublishMetric) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PublishRecorder); ok {
			if err := rec.RecordSchedulePublish(pm); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes the sinks that hold resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
