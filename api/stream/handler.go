// Package stream pushes optimization events to WebSocket clients.
package stream

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/battopt/core/events"
	"github.com/kilianp07/battopt/core/logger"
	"github.com/kilianp07/battopt/core/monitoring"
	"github.com/kilianp07/battopt/internal/eventbus"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// Envelope is the message written to clients.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type runPayload struct {
	RunID        string    `json:"run_id"`
	Source       string    `json:"source,omitempty"`
	Status       string    `json:"status"`
	Optimal      bool      `json:"optimal"`
	HorizonSteps int       `json:"horizon_steps"`
	ActionNow    float64   `json:"action_now"`
	TotalSavings float64   `json:"total_savings"`
	SolveMS      float64   `json:"solve_ms"`
	Error        string    `json:"error,omitempty"`
	Time         time.Time `json:"time"`
}

type forecastPayload struct {
	RunID     string    `json:"run_id"`
	Topic     string    `json:"topic"`
	Entries   int       `json:"entries"`
	LatencyMS float64   `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

type publishPayload struct {
	RunID    string    `json:"run_id"`
	Topic    string    `json:"topic"`
	Status   string    `json:"status"`
	Attempts int       `json:"attempts"`
	Steps    int       `json:"steps"`
	Time     time.Time `json:"time"`
}

// Handler upgrades requests to WebSocket connections and forwards bus
// events until the client goes away.
type Handler struct {
	bus      eventbus.EventBus
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler returns a handler. An empty origins list accepts any origin.
func NewHandler(bus eventbus.EventBus, origins []string, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop{}
	}
	return &Handler{
		bus: bus,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return len(origins) == 0 || o == "" || slices.Contains(origins, o)
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	gone := make(chan struct{})
	monitoring.Go(map[string]string{"module": "stream"}, func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Warnf("websocket read: %v", err)
				}
				return
			}
		}
	})

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case ev, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
				return
			}
			env, ok := toEnvelope(ev)
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				h.log.Warnf("websocket write: %v", err)
				return
			}
		}
	}
}

func toEnvelope(ev eventbus.Event) (Envelope, bool) {
	switch e := ev.(type) {
	case events.RunEvent:
		return Envelope{Type: "run", Payload: runPayload{
			RunID:        e.RunID,
			Source:       e.Source,
			Status:       e.Status,
			Optimal:      e.Optimal,
			HorizonSteps: e.HorizonSteps,
			ActionNow:    e.ActionNow,
			TotalSavings: e.TotalSavings,
			SolveMS:      ms(e.SolveDuration),
			Error:        errText(e.Err),
			Time:         e.Time,
		}}, true
	case events.ForecastEvent:
		return Envelope{Type: "forecast", Payload: forecastPayload{
			RunID:     e.RunID,
			Topic:     e.Topic,
			Entries:   e.Entries,
			LatencyMS: ms(e.Latency),
			Error:     errText(e.Err),
			Time:      e.Time,
		}}, true
	case events.PublishEvent:
		return Envelope{Type: "publish", Payload: publishPayload{
			RunID:    e.RunID,
			Topic:    e.Topic,
			Status:   e.Status,
			Attempts: e.Attempts,
			Steps:    e.Steps,
			Time:     e.Time,
		}}, true
	}
	return Envelope{}, false
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
