package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_SendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/v1/echo", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/v1/", BearerToken: "secret"})
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.PostJSON(context.Background(), "/echo", map[string]string{"a": "b"}, &out))
	assert.True(t, out.OK)
}

func TestGetJSON_EncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "q=blue+monday", r.URL.RawQuery)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"n":3}`))
	}))
	defer srv.Close()

	var out struct {
		N int `json:"n"`
	}
	c := New(Config{BaseURL: srv.URL})
	require.NoError(t, c.GetJSON(context.Background(), "search", url.Values{"q": {"blue monday"}}, &out))
	assert.Equal(t, 3, out.N)
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
		serverError bool
	}{
		{name: "429", status: http.StatusTooManyRequests, rateLimited: true},
		{name: "503", status: http.StatusServiceUnavailable, serverError: true},
		{name: "404", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "slow down", tt.status)
			}))
			defer srv.Close()

			err := New(Config{BaseURL: srv.URL}).GetJSON(context.Background(), "/", nil, nil)
			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.HTTPStatus())
			assert.Equal(t, tt.rateLimited, httpErr.IsRateLimited())
			assert.Equal(t, tt.serverError, httpErr.IsServerError())
			assert.Equal(t, "slow down", httpErr.Message)
		})
	}
}

func TestErrorBodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	err := New(Config{BaseURL: srv.URL}).PostJSON(context.Background(), "/", nil, nil)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Len(t, httpErr.Message, maxErrorBody)
}

func TestNoTransportRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	require.Error(t, New(Config{BaseURL: srv.URL}).GetJSON(context.Background(), "/", nil, nil))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(Config{BaseURL: "http://127.0.0.1:1"}).GetJSON(ctx, "/", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
