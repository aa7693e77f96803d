package optimize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battopt/core/model"
	"github.com/kilianp07/battopt/core/optimizer"
	"github.com/kilianp07/battopt/core/runner"
	"github.com/kilianp07/battopt/infra/solver"
)

type fakeRunner struct {
	got   *runner.Request
	out   runner.Outcome
	err   error
	calls int
}

func (f *fakeRunner) Run(_ context.Context, req runner.Request) (runner.Outcome, error) {
	f.calls++
	f.got = &req
	return f.out, f.err
}

func newRouter(r Runner) *gin.Engine {
	return newRouterFrom(r, "MQTT topic prices/topic")
}

func newRouterFrom(r Runner, source string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(r, source, nil).Register(router)
	return router
}

func post(t *testing.T, router http.Handler, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["error"]
}

func TestOptimizeRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     string
	}{
		{"not json content type", "text/plain", `{}`, msgNotJSON},
		{"malformed", "application/json", `{"current_soc_percent":`, msgNotJSON},
		{"empty", "application/json", ``, msgNotJSON},
		{"missing soc", "application/json", `{"current_time_index":0}`, msgMissingFields},
		{"missing index", "application/json", `{"current_soc_percent":50}`, msgMissingFields},
		{"null index", "application/json", `{"current_soc_percent":50,"current_time_index":null}`, msgMissingFields},
		{"fractional index", "application/json", `{"current_soc_percent":50,"current_time_index":1.5}`, "current_time_index must be an integer"},
		{"partial battery", "application/json", `{"current_soc_percent":50,"current_time_index":0,"battery_params":{"capacity_kwh":10}}`, `missing key "max_rate_kw"`},
		{"battery not object", "application/json", `{"current_soc_percent":50,"current_time_index":0,"battery_params":[1]}`, "battery_params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{}
			rr := post(t, newRouter(fr), tt.contentType, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, errorOf(t, rr), tt.wantErr)
			assert.Zero(t, fr.calls)
		})
	}
}

func TestOptimizeDefaultsAndOverrides(t *testing.T) {
	fr := &fakeRunner{out: runner.Outcome{Status: "Optimal", Optimal: true}}
	router := newRouter(fr)

	rr := post(t, router, "application/json", `{"current_soc_percent":42.5,"current_time_index":3}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, fr.got)
	assert.Equal(t, 42.5, fr.got.InitialSOCPercent)
	assert.Equal(t, 3, fr.got.CurrentIndex)
	assert.Equal(t, "http", fr.got.Source)
	assert.Nil(t, fr.got.Battery)

	body := `{"current_soc_percent":10,"current_time_index":0,"battery_params":{"capacity_kwh":8,"max_rate_kw":2,"min_soc_percent":5,"efficiency_roundtrip":0.81}}`
	rr = post(t, router, "application/json; charset=utf-8", body)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, fr.got.Battery)
	assert.Equal(t, model.BatteryParams{CapacityKWh: 8, MaxRateKW: 2, MinSOCPercent: 5, EfficiencyRoundtrip: 0.81}, *fr.got.Battery)
}

func TestOptimizeResponses(t *testing.T) {
	tests := []struct {
		name     string
		out      runner.Outcome
		err      error
		wantCode int
		check    func(t *testing.T, rr *httptest.ResponseRecorder)
	}{
		{
			name:     "optimal",
			out:      runner.Outcome{RunID: "run-1", Status: "Optimal", Optimal: true, ActionNow: 5, TotalSavings: 350, PublishStatus: runner.PublishSuccess},
			wantCode: http.StatusOK,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				var resp Response
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, "Optimal", resp.SolverStatus)
				require.NotNil(t, resp.ActionNextHour)
				assert.Equal(t, 5.0, *resp.ActionNextHour)
				require.NotNil(t, resp.EstimatedTotalSavings)
				assert.Equal(t, 350.0, *resp.EstimatedTotalSavings)
				assert.Equal(t, "Success", resp.MQTTPublishStatus)
				assert.Equal(t, "run-1", rr.Header().Get("X-Run-ID"))
			},
		},
		{
			name:     "not optimal",
			out:      runner.Outcome{Status: "Infeasible", PublishStatus: runner.PublishSkipped},
			wantCode: http.StatusInternalServerError,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"solver_status":"Infeasible","action_next_hour":null,"estimated_total_savings":null,"mqtt_publish_status":"Skipped: No optimal plan"}`, rr.Body.String())
			},
		},
		{
			name:     "rejected input",
			out:      runner.Outcome{Status: "No future time steps found for optimization.", PublishStatus: runner.PublishSkipped},
			wantCode: http.StatusInternalServerError,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				var resp Response
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, "No future time steps found for optimization.", resp.SolverStatus)
				assert.Nil(t, resp.ActionNextHour)
			},
		},
		{
			name:     "forecast unavailable",
			err:      fmt.Errorf("%w: timeout", runner.ErrForecastUnavailable),
			wantCode: http.StatusServiceUnavailable,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				assert.Equal(t, "Failed to fetch forecast data from MQTT topic prices/topic", errorOf(t, rr))
			},
		},
		{
			name:     "internal",
			out:      runner.Outcome{Status: "Internal optimization error: boom"},
			err:      fmt.Errorf("%w: %w", runner.ErrInternal, errors.New("boom")),
			wantCode: http.StatusInternalServerError,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				assert.Equal(t, "Internal optimization error: boom", errorOf(t, rr))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{out: tt.out, err: tt.err}
			rr := post(t, newRouter(fr), "application/json", `{"current_soc_percent":50,"current_time_index":0}`)
			assert.Equal(t, tt.wantCode, rr.Code)
			tt.check(t, rr)
		})
	}
}

func TestOptimizeUnavailableNamesPriceAPI(t *testing.T) {
	fr := &fakeRunner{err: fmt.Errorf("%w: 502", runner.ErrForecastUnavailable)}
	rr := post(t, newRouterFrom(fr, "price API https://prices.example/today"), "application/json", `{"current_soc_percent":50,"current_time_index":0}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Failed to fetch forecast data from price API https://prices.example/today", errorOf(t, rr))
}

func TestOptimizeEndToEnd(t *testing.T) {
	payload := []byte(`{"data":[
		{"index":0,"hour":0,"date":"2024-05-01","adjustedPrice":"10.00"},
		{"index":1,"hour":1,"date":"2024-05-01","adjustedPrice":"50.00"},
		{"index":2,"hour":2,"date":"2024-05-01","adjustedPrice":"30.00"}]}`)
	planner := optimizer.New(optimizer.Config{}, solver.NewBranchAndBound(solver.BnBOptions{}), nil)
	battery := model.BatteryParams{CapacityKWh: 10, MaxRateKW: 5, MinSOCPercent: 0, EfficiencyRoundtrip: 1}
	r, err := runner.New(planner, runner.StaticForecast(payload), nil, battery, nil, nil)
	require.NoError(t, err)

	rr := post(t, newRouter(r), "application/json", `{"current_soc_percent":50,"current_time_index":0}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Optimal", resp.SolverStatus)
	assert.InDelta(t, 5, *resp.ActionNextHour, 1e-6)
	assert.InDelta(t, 350, *resp.EstimatedTotalSavings, 1e-6)
	assert.Equal(t, runner.PublishDisabled, resp.MQTTPublishStatus)
	assert.NotEmpty(t, rr.Header().Get("X-Run-ID"))
}
