package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func tokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token%d","token_type":"bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGetTokenAndSetAuthHeader(t *testing.T) {
	var calls int32
	server := tokenServer(t, &calls)
	client := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", TokenURL: server.URL})

	token, err := client.GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken returned error: %v", err)
	}
	if token != "token1" {
		t.Fatalf("unexpected token %s", token)
	}

	req, _ := http.NewRequest("GET", "http://example.com", nil)
	if err := client.SetAuthHeader(req); err != nil {
		t.Fatalf("SetAuthHeader returned error: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer token1" {
		t.Fatalf("unexpected Authorization header %q", got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected cached token, got %d token requests", calls)
	}
}

func TestForceRefresh(t *testing.T) {
	var calls int32
	server := tokenServer(t, &calls)
	client := NewClientCred(Conf{ClientID: "id", TokenURL: server.URL})

	if _, err := client.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken returned error: %v", err)
	}
	token, err := client.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("ForceRefresh returned error: %v", err)
	}
	if token != "token2" {
		t.Fatalf("unexpected token %s", token)
	}
}

func TestConfEnabled(t *testing.T) {
	if (Conf{}).Enabled() {
		t.Fatal("empty conf must be disabled")
	}
	if !(Conf{ClientID: "id", TokenURL: "http://x"}).Enabled() {
		t.Fatal("conf with id and token url must be enabled")
	}
}

func TestGetTokenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientCred(Conf{ClientID: "id", TokenURL: server.URL})
	if _, err := client.GetToken(context.Background()); err == nil {
		t.Fatal("expected error from failing token endpoint")
	}
}
