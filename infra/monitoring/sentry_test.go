package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battopt/config"
	coremon "github.com/kilianp07/battopt/core/monitoring"
)

// captureTransport keeps events in memory instead of sending them.
type captureTransport struct {
	events []*sentry.Event
}

func (t *captureTransport) Configure(sentry.ClientOptions)        {}
func (t *captureTransport) SendEvent(e *sentry.Event)             { t.events = append(t.events, e) }
func (t *captureTransport) Flush(time.Duration) bool              { return true }
func (t *captureTransport) FlushWithContext(context.Context) bool { return true }
func (t *captureTransport) Close()                                {}

func TestNewSentryMonitor_EmptyDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestSentryMonitor_CaptureWithTags(t *testing.T) {
	tr := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "https://public@example.com/1", Transport: tr})
	require.NoError(t, err)
	hub := sentry.NewHub(client, sentry.NewScope())
	m := &sentryMonitor{hub: hub}

	m.CaptureException(nil, nil)
	m.CaptureException(errors.New("publish failed"), map[string]string{"module": "mqtt"})
	m.Flush(time.Second)

	require.Len(t, tr.events, 1)
	assert.Equal(t, "mqtt", tr.events[0].Tags["module"])
}

func TestSentryMonitor_CapturePanic(t *testing.T) {
	tr := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "https://public@example.com/1", Transport: tr})
	require.NoError(t, err)
	m := &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}

	m.CapturePanic(nil, nil)
	m.CapturePanic("index out of range", map[string]string{"module": "stream"})

	require.Len(t, tr.events, 1)
	assert.Equal(t, "stream", tr.events[0].Tags["module"])
	assert.Equal(t, sentry.LevelFatal, tr.events[0].Level)
}
