package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApiClientCheckInventory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inventory", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "X-1", r.URL.Query().Get("partNumber"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"partNumber":"X-1","lineCode":"ABC","qtyTotal":4}]}`))
	}))
	defer server.Close()

	c := NewApiClient(server.URL, "test-key", NewRateGate(60), io.Discard)
	resp, err := c.CheckInventory(context.Background(), "X-1")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Success)
	assert.Equal(t, "X-1", resp.Data[0].PartNumber)
	assert.Equal(t, 4, resp.Data[0].Quantity)
}

func TestApiClientThrottleMarksGate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	gate := NewRateGate(60)
	c := NewApiClient(server.URL, "test-key", gate, io.Discard)

	_, err := c.GetPricing(context.Background(), "X-1")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, gate.IsRateLimited(EndpointPricing))

	// Follow-up calls fail fast without hitting the network.
	_, err = c.GetPricing(context.Background(), "X-1")
	require.ErrorIs(t, err, ErrRateLimited)

	cooldown := gate.RemainingCooldown(EndpointPricing)
	assert.Greater(t, cooldown, time.Minute)
}

func TestApiClientGatedLocally(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer server.Close()

	// A budget of 1 allows exactly one call before the limiter kicks in.
	c := NewApiClient(server.URL, "test-key", NewRateGate(1), io.Discard)

	_, err := c.Search(context.Background(), "widget")
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "widget")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, calls)
}

func TestApiClientBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewApiClient(server.URL, "test-key", NewRateGate(60), io.Discard)
	_, err := c.GetDetails(context.Background(), "X-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Minute, parseRetryAfter(""))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Minute, parseRetryAfter("garbage"))
}
