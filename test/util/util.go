// Package util provides helper functions shared across integration tests.
//
// WaitForHTTP polls an HTTP endpoint until it answers with 200.
//
// StartMosquitto launches a disposable Mosquitto broker in a Docker container
// for MQTT-based tests.
//
// WaitForMetric polls a Prometheus metrics endpoint until the desired metric
// appears in the output.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// Default timeouts for helper operations
	MosquittoReadyTimeout = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// WaitForHTTP polls url until it answers with HTTP 200 or the context is done.
func WaitForHTTP(ctx context.Context, url string) error {
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server not ready: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// WaitForMetric polls the given metrics URL until the provided substring is
// found in the output or the context is done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return fmt.Errorf("read metrics body: %w", rerr)
			}
			if strings.Contains(string(body), substr) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// mosquittoConf allows anonymous clients and keeps retained messages in
// memory only, so every test starts from an empty broker.
const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
retain_available true
log_dest stdout
log_type error
log_type warning
connection_messages true
`

// Broker is a disposable Mosquitto instance.
type Broker struct {
	// URL is the tcp:// address reachable from the host.
	URL  string
	cont tc.Container
	dir  string
}

// Terminate stops the container and removes its configuration.
func (b *Broker) Terminate() {
	if b.cont != nil {
		_ = b.cont.Terminate(context.Background())
	}
	_ = os.RemoveAll(b.dir)
}

// StartMosquitto launches a Mosquitto broker inside a Docker container and
// waits until it accepts MQTT connections.
func StartMosquitto(ctx context.Context) (*Broker, error) {
	dir, err := os.MkdirTemp("", "battopt-mosq")
	if err != nil {
		return nil, err
	}
	b := &Broker{dir: dir}
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0o644); err != nil {
		b.Terminate()
		return nil, err
	}

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	b.cont, err = tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		b.Terminate()
		return nil, fmt.Errorf("start mosquitto: %w", err)
	}

	host, err := b.cont.Host(ctx)
	if err != nil {
		b.Terminate()
		return nil, err
	}
	port, err := b.cont.MappedPort(ctx, "1883")
	if err != nil {
		b.Terminate()
		return nil, err
	}
	b.URL = fmt.Sprintf("tcp://%s:%s", host, port.Port())

	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, b.URL); err != nil {
		b.Terminate()
		return nil, fmt.Errorf("mosquitto not ready: %w", err)
	}
	return b, nil
}

// waitForMQTTReady retries a readiness connection until the broker answers.
func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("battopt-ready").
		SetConnectTimeout(time.Second)
	for {
		cli := paho.NewClient(opts)
		if token := cli.Connect(); token.Wait() && token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
