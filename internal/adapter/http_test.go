package adapter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/prize-indexer/internal/adapter"
)

func TestHTTPClient_GetBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Gold"}`))
	}))
	defer server.Close()

	body, err := adapter.NewHTTPClient(5*time.Second, 0).GetBytes(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Gold"}`, string(body))
}

func TestHTTPClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"moo_a"}]`))
	}))
	defer server.Close()

	var result []map[string]string
	require.NoError(t, adapter.NewHTTPClient(5*time.Second, 0).Get(context.Background(), server.URL, &result))
	assert.Equal(t, []map[string]string{{"id": "moo_a"}}, result)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	body, err := adapter.NewHTTPClient(5*time.Second, 30*time.Second).GetBytes(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPClient_PermanentErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		maxElapsed time.Duration
	}{
		{name: "not found", status: http.StatusNotFound, maxElapsed: 30 * time.Second},
		{name: "server error without retries", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := adapter.NewHTTPClient(5*time.Second, tt.maxElapsed).GetBytes(context.Background(), server.URL)
			assert.Error(t, err)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestHTTPClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := adapter.NewHTTPClient(5*time.Second, time.Minute).GetBytes(ctx, server.URL)
	assert.Error(t, err)
}
