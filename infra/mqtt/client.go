package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/battopt/core/monitoring"
	coremqtt "github.com/kilianp07/battopt/core/mqtt"
	"github.com/kilianp07/battopt/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	AuthMethod string `json:"auth_method"`
	// QoS per traffic kind: "forecast" for the subscription, "schedule" for
	// publications.
	QoS              map[string]byte `json:"qos"`
	LWTTopic         string          `json:"lwt_topic"`
	LWTPayload       string          `json:"lwt_payload"`
	LWTQoS           byte            `json:"lwt_qos"`
	LWTRetain        bool            `json:"lwt_retain"`
	MaxRetries       int             `json:"max_retries"`
	BackoffMS        int             `json:"backoff_ms"`
	ConnectTimeoutMS int             `json:"connect_timeout_ms"`
	TLSConfig        *tls.Config     `json:"-"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "battopt-" + uuid.NewString()
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.ConnectTimeoutMS <= 0 {
		c.ConnectTimeoutMS = 5000
	}
}

// Validate checks the authentication settings.
func (c Config) Validate() error {
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	for k := range c.QoS {
		if c.QoS[k] > 2 {
			return fmt.Errorf("mqtt: qos %s must be 0, 1 or 2", k)
		}
	}
	return nil
}

// pahoClient is the subset of paho.Client used by PahoClient.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

// PahoClient is a long-lived broker connection shared by the forecast source
// and the schedule publisher.
type PahoClient struct {
	cli        pahoClient
	qos        map[string]byte
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration

	// subMu serializes Receive calls: paho keeps one handler per topic.
	subMu sync.Mutex
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_client")
	pc := &PahoClient{
		logger:     logger,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(paho.Client) {
		logger.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetConnectRetry(false)
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS || cfg.AuthMethod == "certificate" || cfg.AuthMethod == "both" {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// wait blocks until the token completes or ctx is done.
func wait(ctx context.Context, t paho.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sends payload to topic, retrying with exponential backoff. It
// returns the number of attempts made. The final failure is reported to the
// error monitor.
func (p *PahoClient) Publish(ctx context.Context, topic, kind string, retained bool, payload []byte) (int, error) {
	qos := p.qosFor(kind)
	var (
		publishErr error
		attempt    int
	)
	for attempt = 0; attempt <= p.maxRetries; attempt++ {
		publishErr = wait(ctx, p.cli.Publish(topic, qos, retained, payload))
		if publishErr == nil {
			p.logger.Infof("published %d bytes to %s", len(payload), topic)
			return attempt + 1, nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if ctx.Err() != nil || attempt == p.maxRetries {
			break
		}
		select {
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		case <-ctx.Done():
		}
	}
	coremon.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return attempt + 1, publishErr
}

// Receive subscribes to topic and returns the payload of the first message
// delivered, usually the retained one. The subscription is removed before
// returning.
func (p *PahoClient) Receive(ctx context.Context, topic, kind string) ([]byte, error) {
	if !p.cli.IsConnected() {
		return nil, coremqtt.ErrNotConnected
	}
	p.subMu.Lock()
	defer p.subMu.Unlock()

	msgs := make(chan []byte, 1)
	handler := func(_ paho.Client, msg paho.Message) {
		payload := append([]byte(nil), msg.Payload()...)
		select {
		case msgs <- payload:
		default:
		}
	}
	if err := wait(ctx, p.cli.Subscribe(topic, p.qosFor(kind), handler)); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: subscribe %s", coremqtt.ErrForecastTimeout, topic)
		}
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	defer func() {
		if t := p.cli.Unsubscribe(topic); t.WaitTimeout(time.Second) && t.Error() != nil {
			p.logger.Warnf("unsubscribe %s: %v", topic, t.Error())
		}
	}()

	select {
	case payload := <-msgs:
		p.logger.Infof("received %d bytes on %s", len(payload), topic)
		return payload, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", coremqtt.ErrForecastTimeout, topic)
	}
}

// IsConnected reports the broker connection state.
func (p *PahoClient) IsConnected() bool {
	return p.cli != nil && p.cli.IsConnected()
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
