package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battopt/auth"
)

const doc = `{"data":[{"index":0,"hour":0,"date":"2024-05-01","adjustedPrice":"10.00"}]}`

func TestPriceAPIFetch(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokens.Close()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(doc))
	}))
	defer api.Close()

	cred := auth.NewClientCred(auth.Conf{ClientID: "id", ClientSecret: "s", TokenURL: tokens.URL})
	p := NewPriceAPI(api.URL, cred, time.Second)
	body, err := p.FetchForecast(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(body))
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, api.URL, p.Topic())
}

func TestPriceAPIErrors(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer api.Close()

	_, err := NewPriceAPI(api.URL, nil, 0).FetchForecast(context.Background())
	assert.ErrorContains(t, err, "unexpected status code: 502")

	api.Close()
	_, err = NewPriceAPI(api.URL, nil, time.Second).FetchForecast(context.Background())
	assert.Error(t, err)
}
