package mqtt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	coremqtt "github.com/kilianp07/battopt/core/mqtt"
)

// DefaultForecastTopic is the price forecast topic of the home automation broker.
const DefaultForecastTopic = "iobroker/userdata/0/tibber-adjusted-prices"

// DefaultForecastTimeout bounds the wait for a forecast message.
const DefaultForecastTimeout = 5 * time.Second

type receiver interface {
	Receive(ctx context.Context, topic, kind string) ([]byte, error)
}

// ForecastSource fetches the latest forecast from a broker topic.
type ForecastSource struct {
	client  receiver
	topic   string
	timeout time.Duration
}

var _ coremqtt.ForecastSource = (*ForecastSource)(nil)

// NewForecastSource returns a source reading topic through client. Empty topic
// and non-positive timeout take the defaults.
func NewForecastSource(client receiver, topic string, timeout time.Duration) *ForecastSource {
	if topic == "" {
		topic = DefaultForecastTopic
	}
	if timeout <= 0 {
		timeout = DefaultForecastTimeout
	}
	return &ForecastSource{client: client, topic: topic, timeout: timeout}
}

// Topic returns the subscribed topic.
func (s *ForecastSource) Topic() string { return s.topic }

// FetchForecast implements core/mqtt.ForecastSource. Only the first message
// is considered; a payload without a "data" key is rejected.
func (s *ForecastSource) FetchForecast(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	payload, err := s.client.Receive(ctx, s.topic, "forecast")
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(payload, []byte(`"data":`)) {
		return nil, fmt.Errorf("%w: topic %s", coremqtt.ErrForecastPayload, s.topic)
	}
	return payload, nil
}
