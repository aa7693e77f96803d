// Package optimize serves POST /optimize.
package optimize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/battopt/core/logger"
	"github.com/kilianp07/battopt/core/model"
	"github.com/kilianp07/battopt/core/runner"
)

const (
	msgNotJSON       = "Request must be JSON"
	msgMissingFields = "Missing required fields: current_soc_percent, current_time_index"
)

var errMissingFields = errors.New("missing current_soc_percent or current_time_index")

// Runner executes one optimization request.
type Runner interface {
	Run(ctx context.Context, req runner.Request) (runner.Outcome, error)
}

// Request is the body of POST /optimize. battery_params is optional.
type Request struct {
	CurrentSOCPercent *float64        `json:"current_soc_percent"`
	CurrentTimeIndex  *float64        `json:"current_time_index"`
	BatteryParams     json.RawMessage `json:"battery_params"`
}

// Response is the body returned once the optimizer ran. Action and savings
// are null unless the plan is optimal.
type Response struct {
	SolverStatus          string   `json:"solver_status"`
	ActionNextHour        *float64 `json:"action_next_hour"`
	EstimatedTotalSavings *float64 `json:"estimated_total_savings"`
	MQTTPublishStatus     string   `json:"mqtt_publish_status"`
}

// Handler adapts a Runner to gin.
type Handler struct {
	runner Runner
	source string
	log    logger.Logger
}

// NewHandler returns a handler. source describes the forecast origin, such as
// "MQTT topic prices" or "price API https://...", and is named in 503
// responses.
func NewHandler(r Runner, source string, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop{}
	}
	return &Handler{runner: r, source: source, log: log}
}

// Register mounts the endpoint.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/optimize", h.Optimize)
}

// Optimize handles one request.
func (h *Handler) Optimize(c *gin.Context) {
	if c.ContentType() != gin.MIMEJSON {
		h.log.Debugf("request content type %q is not JSON", c.ContentType())
		abort(c, http.StatusBadRequest, msgNotJSON)
		return
	}
	req, err := decode(c.Request.Body)
	if err != nil {
		h.log.Errorf("decode request: %v", err)
		abort(c, http.StatusBadRequest, msgNotJSON)
		return
	}
	rreq, err := req.toRunRequest()
	if errors.Is(err, errMissingFields) {
		h.log.Errorf("%s", msgMissingFields)
		abort(c, http.StatusBadRequest, msgMissingFields)
		return
	}
	if err != nil {
		h.log.Errorf("invalid request: %v", err)
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.runner.Run(c.Request.Context(), rreq)
	c.Header("X-Run-ID", out.RunID)
	switch {
	case errors.Is(err, runner.ErrForecastUnavailable):
		abort(c, http.StatusServiceUnavailable, "Failed to fetch forecast data from "+h.source)
		return
	case err != nil:
		abort(c, http.StatusInternalServerError, out.Status)
		return
	}

	resp := Response{SolverStatus: out.Status, MQTTPublishStatus: out.PublishStatus}
	if !out.Optimal {
		h.log.Warnf("no optimal plan found, solver status: %s", out.Status)
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	resp.ActionNextHour = &out.ActionNow
	resp.EstimatedTotalSavings = &out.TotalSavings
	c.JSON(http.StatusOK, resp)
}

func decode(body io.Reader) (Request, error) {
	var req Request
	b, err := io.ReadAll(body)
	if err != nil {
		return req, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return req, errors.New("empty body")
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return req, err
	}
	return req, nil
}

func (r Request) toRunRequest() (runner.Request, error) {
	if r.CurrentSOCPercent == nil || r.CurrentTimeIndex == nil {
		return runner.Request{}, errMissingFields
	}
	idx := *r.CurrentTimeIndex
	if idx != math.Trunc(idx) || math.Abs(idx) > math.MaxInt32 {
		return runner.Request{}, fmt.Errorf("current_time_index must be an integer, got %v", idx)
	}
	out := runner.Request{
		InitialSOCPercent: *r.CurrentSOCPercent,
		CurrentIndex:      int(idx),
		Source:            "http",
	}
	raw := bytes.TrimSpace(r.BatteryParams)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	var partial model.PartialBatteryParams
	if err := json.Unmarshal(raw, &partial); err != nil {
		return runner.Request{}, fmt.Errorf("battery_params: %w", err)
	}
	params, err := partial.Resolve()
	if err != nil {
		return runner.Request{}, fmt.Errorf("battery_params: %w", err)
	}
	out.Battery = &params
	return out, nil
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
