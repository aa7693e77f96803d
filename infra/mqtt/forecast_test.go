package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battopt/core/model"
	coremqtt "github.com/kilianp07/battopt/core/mqtt"
)

type stubReceiver struct {
	payload  []byte
	err      error
	topic    string
	kind     string
	deadline bool
}

func (s *stubReceiver) Receive(ctx context.Context, topic, kind string) ([]byte, error) {
	s.topic, s.kind = topic, kind
	_, s.deadline = ctx.Deadline()
	return s.payload, s.err
}

func TestForecastSource_Fetch(t *testing.T) {
	rec := &stubReceiver{payload: []byte(`{"data": [{"index":0,"hour":0,"date":"2025-04-01","adjustedPrice":10}]}`)}
	src := NewForecastSource(rec, "", 0)
	got, err := src.FetchForecast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rec.payload, got)
	assert.Equal(t, DefaultForecastTopic, rec.topic)
	assert.Equal(t, "forecast", rec.kind)
	assert.True(t, rec.deadline, "fetch should be bounded by a timeout")
}

func TestForecastSource_RejectsPayloadWithoutData(t *testing.T) {
	src := NewForecastSource(&stubReceiver{payload: []byte(`{"prices":[]}`)}, "prices", time.Second)
	_, err := src.FetchForecast(context.Background())
	assert.ErrorIs(t, err, coremqtt.ErrForecastPayload)
}

func TestForecastSource_PropagatesTimeout(t *testing.T) {
	src := NewForecastSource(&stubReceiver{err: coremqtt.ErrForecastTimeout}, "prices", time.Second)
	_, err := src.FetchForecast(context.Background())
	assert.True(t, errors.Is(err, coremqtt.ErrForecastTimeout))
}

func TestForecastSource_ThroughPahoClient(t *testing.T) {
	mc := &mockClient{deliver: []byte(`{"data":[]}`)}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id"})
	require.NoError(t, err)
	src := NewForecastSource(cli, "prices", time.Second)
	payload, err := src.FetchForecast(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(payload))
	assert.Equal(t, []string{"prices"}, mc.unsubscribed)
}

func TestEncodeSchedule(t *testing.T) {
	steps := []model.ScheduleStep{
		{Index: 7, Hour: 7, Date: "2025-04-01", ChangeRate: 0.5},
		{Index: 8, Hour: 8, Date: "2025-04-01", ChangeRate: -0.8},
		{Index: 9, Hour: 9, Date: "2025-04-01"},
	}
	payload, err := EncodeSchedule(steps)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[
		{"index":7,"hour":7,"date":"2025-04-01","changeRate":"0.50"},
		{"index":8,"hour":8,"date":"2025-04-01","changeRate":"-0.80"},
		{"index":9,"hour":9,"date":"2025-04-01","changeRate":"0.00"}]}`, string(payload))

	empty, err := EncodeSchedule(nil)
	require.NoError(t, err)
	var msg map[string][]any
	require.NoError(t, json.Unmarshal(empty, &msg))
	assert.NotNil(t, msg["data"])
	assert.Empty(t, msg["data"])
}

func TestSchedulePublisher(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"schedule": 1}})
	require.NoError(t, err)
	pub := NewSchedulePublisher(cli, "", true)
	attempts, err := pub.PublishSchedule(context.Background(), []model.ScheduleStep{{Index: 0, Hour: 0, Date: "2025-04-01", ChangeRate: 0.8}})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	require.Len(t, mc.published, 1)
	p := mc.published[0]
	assert.Equal(t, DefaultScheduleTopic, p.topic)
	assert.Equal(t, byte(1), p.qos)
	assert.True(t, p.retained)
	assert.JSONEq(t, `{"data":[{"index":0,"hour":0,"date":"2025-04-01","changeRate":"0.80"}]}`, string(p.payload))
}
