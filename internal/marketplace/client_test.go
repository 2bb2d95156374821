package marketplace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		Name:    "amazon",
		BaseURL: srv.URL + "/",
		APIKey:  "secret",
		APIHost: "example.rapidapi.com",
		Timeout: timeout,
	}, zap.NewNop())
}

func TestFetchSendsQueryAndCredentials(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","data":{"product_title":"Echo Dot"}}`))
	}, time.Second)

	payload, err := c.Fetch(context.Background(), "B09B8V1LZ3", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"OK","data":{"product_title":"Echo Dot"}}`, string(payload))

	require.NotNil(t, got)
	assert.Equal(t, "/product-details", got.URL.Path)
	assert.Equal(t, "B09B8V1LZ3", got.URL.Query().Get("asin"))
	assert.Equal(t, "ES", got.URL.Query().Get("country"))
	assert.Equal(t, "secret", got.Header.Get("x-rapidapi-key"))
	assert.Equal(t, "example.rapidapi.com", got.Header.Get("x-rapidapi-host"))
}

func TestFetchClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		kind     Kind
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuthDenied, ErrAuthDenied},
		{"not subscribed", http.StatusForbidden, KindAuthDenied, ErrAuthDenied},
		{"rate limited", http.StatusTooManyRequests, KindRateLimited, ErrRateLimited},
		{"server error", http.StatusInternalServerError, KindUpstream, ErrUpstream},
		{"not found", http.StatusNotFound, KindUpstream, ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}, time.Second)

			payload, err := c.Fetch(context.Background(), "X1", "DE")
			require.Error(t, err)
			assert.Nil(t, payload)
			assert.True(t, errors.Is(err, tt.sentinel))

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, "X1", fe.ExternalID)
		})
	}
}

func TestFetchTimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := c.Fetch(context.Background(), "SLOW", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, kind)
}

func TestFetchUnreachableHost(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, zap.NewNop())

	_, err := c.Fetch(context.Background(), "X", "")
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrUpstream)
}

func TestNewClientCapsTimeout(t *testing.T) {
	c := NewClient(Config{Timeout: time.Minute}, zap.NewNop())
	assert.Equal(t, MaxTimeout, c.http.Timeout)
	assert.Equal(t, DefaultCountry, c.Country())
	assert.False(t, c.HasCredential())
}
