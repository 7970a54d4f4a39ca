package anchor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(config.AnchorConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestStartSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sessions", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("anchor-api-key"))

		var body map[string]map[string]map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body["browser"]["headless"]["active"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"s-1","cdp_url":"wss://cdp/s-1","live_view_url":"https://live/s-1"}}`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv.URL).StartSession(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.ID)
	assert.Equal(t, "wss://cdp/s-1", got.CDPURL)
	assert.Equal(t, "https://live/s-1", got.LiveViewURL)
}

func TestStartSessionRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"s-2","cdp_url":"wss://cdp/s-2"}}`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv.URL).StartSession(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "s-2", got.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestStartSessionDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).StartSession(context.Background(), 0)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStartSessionRejectsIncompleteData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"s-3"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).StartSession(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestEndSessions(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.EndSession(context.Background(), "s-1"))
	require.NoError(t, c.EndAllSessions(context.Background()))
	assert.Equal(t, []string{"/v1/sessions/s-1", "/v1/sessions/all"}, paths)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.AnchorConfig{}, logger.NewNop())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
