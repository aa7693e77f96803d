package metrics

import (
	"context"

	"github.com/kilianp07/battopt/core/events"
	coremetrics "github.com/kilianp07/battopt/core/metrics"
	"github.com/kilianp07/battopt/infra/logger"
	"github.com/kilianp07/battopt/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed. The returned
// channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.RunEvent:
		if err := sink.RecordRun(coremetrics.RunMetric{
			RunID:         e.RunID,
			Source:        e.Source,
			Status:        e.Status,
			Optimal:       e.Optimal,
			HorizonSteps:  e.HorizonSteps,
			ActionNow:     e.ActionNow,
			TotalSavings:  e.TotalSavings,
			SolveDuration: e.SolveDuration,
			Time:          e.Time,
		}); err != nil {
			return err
		}
		if r, ok := sink.(coremetrics.ScheduleRecorder); ok && e.Optimal && len(e.Schedule) > 0 {
			return r.RecordSchedule(coremetrics.ScheduleMetric{RunID: e.RunID, Steps: e.Schedule, Time: e.Time})
		}
	case events.ForecastEvent:
		if r, ok := sink.(coremetrics.ForecastRecorder); ok {
			return r.RecordForecastFetch(coremetrics.ForecastFetchMetric{
				Topic:   e.Topic,
				Entries: e.Entries,
				Success: e.Err == nil,
				Latency: e.Latency,
				Time:    e.Time,
			})
		}
	case events.PublishEvent:
		if r, ok := sink.(coremetrics.PublishRecorder); ok {
			return r.RecordSchedulePublish(coremetrics.PublishMetric{
				RunID:    e.RunID,
				Topic:    e.Topic,
				Status:   e.Status,
				Success:  e.Err == nil && e.Status == "Success",
				Attempts: e.Attempts,
				Time:     e.Time,
			})
		}
	}
	return nil
}
