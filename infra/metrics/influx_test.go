package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/battopt/core/metrics"
	"github.com/kilianp07/battopt/core/model"
)

// lineServer captures the line protocol bodies posted by the sink.
func lineServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordRun(t *testing.T) {
	srv, bodies := lineServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	rec := coremetrics.RunMetric{
		RunID:         "r1",
		Source:        "http",
		Status:        "Optimal",
		Optimal:       true,
		HorizonSteps:  3,
		ActionNow:     -5,
		TotalSavings:  250,
		SolveDuration: 1500 * time.Microsecond,
		Time:          now,
	}
	if err := sink.RecordRun(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("optimization_run").
		AddTag("run_id", "r1").
		AddTag("status", "Optimal").
		AddTag("optimal", "true").
		AddTag("source", "http").
		AddField("horizon_steps", 3).
		AddField("action_now_kwh", -5.0).
		AddField("total_savings", 250.0).
		AddField("solve_ms", 1.5).
		SetTime(now)
	got := bodies()
	if len(got) != 1 || got[0] != line(p) {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestInfluxSink_RecordSchedule(t *testing.T) {
	srv, bodies := lineServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	steps := []model.ScheduleStep{
		{Index: 4, Hour: 4, Date: "2025-04-01", Price: 10, Action: model.ActionCharge, EnergyKWh: 5, SOCEndPercent: 100, HourlySaving: -50},
		{Index: 5, Hour: 5, Date: "2025-04-01", Price: 50, Action: model.ActionDischarge, EnergyKWh: -5, SOCEndPercent: 50, HourlySaving: 250},
	}
	if err := sink.RecordSchedule(coremetrics.ScheduleMetric{RunID: "r1", Steps: steps, Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got := bodies()
	if len(got) != 2 {
		t.Fatalf("expected one write per step, got %d", len(got))
	}
	p := write.NewPointWithMeasurement("schedule_step").
		AddTag("run_id", "r1").
		AddTag("index", "5").
		AddTag("action", "Discharge").
		AddField("hour", 5).
		AddField("date", "2025-04-01").
		AddField("price", 50.0).
		AddField("energy_kwh", -5.0).
		AddField("soc_end_percent", 50.0).
		AddField("hourly_saving", 250.0).
		SetTime(now)
	if got[1] != line(p) {
		t.Errorf("unexpected body: %s", got[1])
	}
}

func TestInfluxSink_RecordForecastAndPublish(t *testing.T) {
	srv, bodies := lineServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	if err := sink.RecordForecastFetch(coremetrics.ForecastFetchMetric{Topic: "prices", Entries: 24, Success: true, Latency: time.Second, Time: now}); err != nil {
		t.Fatalf("record fetch: %v", err)
	}
	if err := sink.RecordSchedulePublish(coremetrics.PublishMetric{RunID: "r1", Topic: "plan", Status: "Success", Success: true, Attempts: 1, Time: now}); err != nil {
		t.Fatalf("record publish: %v", err)
	}
	fetch := write.NewPointWithMeasurement("forecast_fetch").
		AddTag("topic", "prices").
		AddTag("success", "true").
		AddField("entries", 24).
		AddField("latency_ms", 1000.0).
		SetTime(now)
	pub := write.NewPointWithMeasurement("schedule_publish").
		AddTag("run_id", "r1").
		AddTag("topic", "plan").
		AddTag("success", "true").
		AddField("status", "Success").
		AddField("attempts", 1).
		SetTime(now)
	got := bodies()
	if len(got) != 2 || got[0] != line(fetch) || got[1] != line(pub) {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
