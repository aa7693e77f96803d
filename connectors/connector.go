// Package connectors fetches price forecasts from HTTP price APIs.
package connectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/battopt/auth"
	coremqtt "github.com/kilianp07/battopt/core/mqtt"
)

// DefaultTimeout bounds one forecast request.
const DefaultTimeout = 10 * time.Second

// maxBody caps the forecast document size.
const maxBody = 4 << 20

// PriceAPI is a forecast source backed by an HTTP endpoint returning the
// forecast document ({"data":[...]}).
type PriceAPI struct {
	url    string
	cred   *auth.ClientCred
	client *http.Client
}

var _ coremqtt.ForecastSource = (*PriceAPI)(nil)

// NewPriceAPI returns a client for url. cred may be nil for public endpoints.
func NewPriceAPI(url string, cred *auth.ClientCred, timeout time.Duration) *PriceAPI {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PriceAPI{url: url, cred: cred, client: &http.Client{Timeout: timeout}}
}

// New returns a client for url, authenticated when creds are configured.
func New(url string, creds auth.Conf, timeout time.Duration) *PriceAPI {
	var cred *auth.ClientCred
	if creds.Enabled() {
		cred = auth.NewClientCred(creds)
	}
	return NewPriceAPI(url, cred, timeout)
}

// Topic returns the endpoint, used in logs and error responses.
func (p *PriceAPI) Topic() string { return p.url }

// FetchForecast performs one GET and returns the raw body.
func (p *PriceAPI) FetchForecast(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.cred != nil {
		if err := p.cred.SetAuthHeader(req); err != nil {
			return nil, fmt.Errorf("failed to set auth header: %w", err)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}
	return body, nil
}
