package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/battopt/core/metrics"
	"github.com/kilianp07/battopt/infra/logger"
)

// InfluxSink writes optimization runs to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordRun writes one optimization_run point.
func (s *InfluxSink) RecordRun(r coremetrics.RunMetric) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("optimization_run").
		AddTag("run_id", r.RunID).
		AddTag("status", r.Status).
		AddTag("optimal", strconv.FormatBool(r.Optimal))
	if r.Source != "" {
		p = p.AddTag("source", r.Source)
	}
	p = p.AddField("horizon_steps", r.HorizonSteps).
		AddField("action_now_kwh", round3(r.ActionNow)).
		AddField("total_savings", round3(r.TotalSavings)).
		AddField("solve_ms", round3(r.SolveDuration.Seconds()*1000)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedule writes one schedule_step point per planned step. Points are
// stamped with the run time and distinguished by their horizon index tag.
func (s *InfluxSink) RecordSchedule(sm coremetrics.ScheduleMetric) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, st := range sm.Steps {
		p := write.NewPointWithMeasurement("schedule_step").
			AddTag("run_id", sm.RunID).
			AddTag("index", strconv.Itoa(st.Index)).
			AddTag("action", string(st.Action)).
			AddField("hour", st.Hour).
			AddField("date", st.Date).
			AddField("price", round3(st.Price)).
			AddField("energy_kwh", round3(st.EnergyKWh)).
			AddField("soc_end_percent", round3(st.SOCEndPercent)).
			AddField("hourly_saving", round3(st.HourlySaving)).
			SetTime(sm.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordForecastFetch writes a forecast_fetch point.
func (s *InfluxSink) RecordForecastFetch(f coremetrics.ForecastFetchMetric) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("forecast_fetch").
		AddTag("topic", f.Topic).
		AddTag("success", strconv.FormatBool(f.Success)).
		AddField("entries", f.Entries).
		AddField("latency_ms", round3(f.Latency.Seconds()*1000)).
		SetTime(f.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedulePublish writes a schedule_publish point.
func (s *InfluxSink) RecordSchedulePublish(pm coremetrics.PublishMetric) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_publish").
		AddTag("run_id", pm.RunID).
		AddTag("topic", pm.Topic).
		AddTag("success", strconv.FormatBool(pm.Success)).
		AddField("status", pm.Status).
		AddField("attempts", pm.Attempts).
		SetTime(pm.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
