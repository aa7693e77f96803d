package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kilianp07/battopt/core/model"
	coremqtt "github.com/kilianp07/battopt/core/mqtt"
)

// DefaultScheduleTopic receives the optimal plan.
const DefaultScheduleTopic = "battery/schedule/optimal"

type publisher interface {
	Publish(ctx context.Context, topic, kind string, retained bool, payload []byte) (int, error)
}

// scheduleEntry is one step of the published plan. changeRate is a string
// with two decimals, as the consuming scripts expect.
type scheduleEntry struct {
	Index      int    `json:"index"`
	Hour       int    `json:"hour"`
	Date       string `json:"date"`
	ChangeRate string `json:"changeRate"`
}

type scheduleMessage struct {
	Data []scheduleEntry `json:"data"`
}

// EncodeSchedule renders steps as {"data":[{index,hour,date,changeRate}]}.
func EncodeSchedule(steps []model.ScheduleStep) ([]byte, error) {
	msg := scheduleMessage{Data: make([]scheduleEntry, len(steps))}
	for i, st := range steps {
		msg.Data[i] = scheduleEntry{
			Index:      st.Index,
			Hour:       st.Hour,
			Date:       st.Date,
			ChangeRate: strconv.FormatFloat(st.ChangeRate, 'f', 2, 64),
		}
	}
	return json.Marshal(msg)
}

// SchedulePublisher publishes plans to a broker topic.
type SchedulePublisher struct {
	client publisher
	topic  string
	retain bool
}

var _ coremqtt.SchedulePublisher = (*SchedulePublisher)(nil)

// NewSchedulePublisher returns a publisher writing to topic. An empty topic
// takes the default.
func NewSchedulePublisher(client publisher, topic string, retain bool) *SchedulePublisher {
	if topic == "" {
		topic = DefaultScheduleTopic
	}
	return &SchedulePublisher{client: client, topic: topic, retain: retain}
}

// Topic returns the destination topic.
func (s *SchedulePublisher) Topic() string { return s.topic }

// PublishSchedule implements core/mqtt.SchedulePublisher.
func (s *SchedulePublisher) PublishSchedule(ctx context.Context, steps []model.ScheduleStep) (int, error) {
	payload, err := EncodeSchedule(steps)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", coremqtt.ErrScheduleFormat, err)
	}
	return s.client.Publish(ctx, s.topic, "schedule", s.retain, payload)
}
