package carbon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agilewatch/agilewatch/internal/apperr"
	"github.com/agilewatch/agilewatch/internal/retry"
)

const intensityBody = `{
	"data": [
		{"from": "2025-10-04T13:30Z", "to": "2025-10-04T14:00Z", "intensity": {"forecast": 95, "actual": 90, "index": "low"}},
		{"from": "2025-10-04T14:00Z", "to": "2025-10-04T14:30Z", "intensity": {"forecast": 85, "index": "low"}}
	]
}`

func newCarbonTestClient(srv *httptest.Server) *Client {
	c := NewClient(srv.Client(), zap.NewNop())
	c.BaseURL = srv.URL
	c.Retry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
	return c
}

func TestFetchCurrentAndNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/intensity/date", r.URL.Path)
		fmt.Fprint(w, intensityBody)
	}))
	defer srv.Close()

	now := time.Date(2025, 10, 4, 14, 10, 0, 0, time.UTC)
	snap, err := newCarbonTestClient(srv).FetchCurrentAndNext(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 90, snap.Latest.BestIntensity())
	assert.Equal(t, 85, snap.Next.Intensity.Forecast)
}

func TestRetriesWholeFetchOnRateLimit(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, intensityBody)
	}))
	defer srv.Close()

	now := time.Date(2025, 10, 4, 14, 10, 0, 0, time.UTC)
	snap, err := newCarbonTestClient(srv).FetchCurrentAndNext(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, hits)
	assert.Equal(t, 90, snap.Latest.BestIntensity())
}

func TestUpstreamErrorNotRetried(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newCarbonTestClient(srv).FetchCurrentAndNext(context.Background(), time.Now().UTC())
	require.Error(t, err)
	assert.Equal(t, apperr.KindAPI, apperr.KindOf(err))
	assert.Equal(t, 1, hits)
}

func TestOpenBreakerFailsFastWithoutNetworkCall(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	c := newCarbonTestClient(srv)

	// The breaker opens after more than five consecutive transport failures.
	for i := 0; i < 6; i++ {
		_, err := c.FetchCurrentAndNext(context.Background(), time.Now().UTC())
		require.Error(t, err)
		assert.Equal(t, apperr.KindAPI, apperr.KindOf(err))
	}
	require.Equal(t, 6, hits)

	_, err := c.FetchCurrentAndNext(context.Background(), time.Now().UTC())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, 6, hits, "an open breaker must fail fast without a request")
}

func TestMissingActualDataIsDataError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [{"from": "2025-10-04T14:00Z", "to": "2025-10-04T14:30Z", "intensity": {"forecast": 85, "index": "low"}}]}`)
	}))
	defer srv.Close()

	now := time.Date(2025, 10, 4, 14, 10, 0, 0, time.UTC)
	_, err := newCarbonTestClient(srv).FetchCurrentAndNext(context.Background(), now)
	require.Error(t, err)
	assert.Equal(t, apperr.KindData, apperr.KindOf(err))
}
