package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agilewatch/agilewatch/internal/apperr"
	"github.com/agilewatch/agilewatch/internal/carbon"
	"github.com/agilewatch/agilewatch/internal/octopus"
	"github.com/agilewatch/agilewatch/internal/retry"
	"github.com/agilewatch/agilewatch/internal/store"
)

var testNow = time.Date(2025, 10, 4, 0, 15, 0, 0, time.UTC)

const tariffBody = `{
	"count": 4,
	"next": null,
	"results": [
		{"value_exc_vat": 12.92, "value_inc_vat": 15.5, "valid_from": "2025-10-04T00:00:00Z", "valid_to": "2025-10-04T00:30:00Z"},
		{"value_exc_vat": 16.92, "value_inc_vat": 20.3, "valid_from": "2025-10-04T00:30:00Z", "valid_to": "2025-10-04T01:00:00Z"},
		{"value_exc_vat": 15.58, "value_inc_vat": 18.7, "valid_from": "2025-10-04T01:00:00Z", "valid_to": "2025-10-04T01:30:00Z"},
		{"value_exc_vat": 10.0, "value_inc_vat": 12.0, "valid_from": "2025-10-04T01:30:00Z", "valid_to": "2025-10-04T02:00:00Z"}
	]
}`

const intensityBody = `{
	"data": [
		{"from": "2025-10-03T23:30Z", "to": "2025-10-04T00:00Z", "intensity": {"forecast": 95, "actual": 90, "index": "low"}},
		{"from": "2025-10-04T00:00Z", "to": "2025-10-04T00:30Z", "intensity": {"forecast": 85, "index": "low"}}
	]
}`

// newTestService wires a Service against stubbed upstreams with a fixed
// clock. Pass failing handlers to exercise the degraded paths.
func newTestService(t *testing.T, octoHandler, carbonHandler http.HandlerFunc) *Service {
	t.Helper()

	octoSrv := httptest.NewServer(octoHandler)
	t.Cleanup(octoSrv.Close)
	carbonSrv := httptest.NewServer(carbonHandler)
	t.Cleanup(carbonSrv.Close)

	cfg := octopus.NewConfig(octopus.RegionC)
	cfg.BaseURL = octoSrv.URL
	octo := octopus.NewClient(cfg, octoSrv.Client(), zap.NewNop())
	octo.Retry = retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 2}
	octo.PageDelay = 0

	cc := carbon.NewClient(carbonSrv.Client(), zap.NewNop())
	cc.BaseURL = carbonSrv.URL
	cc.Retry = retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 2}

	svc := New(octo, cc, store.NewMemory(), 7, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func serveTariffs(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, tariffBody)
}

func serveIntensity(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, intensityBody)
}

func failUpstream(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "down", http.StatusServiceUnavailable)
}

func TestRefreshAllAndQueries(t *testing.T) {
	svc := newTestService(t, serveTariffs, serveIntensity)
	require.NoError(t, svc.RefreshAll(context.Background()))

	stats, err := svc.CurrentStats(testNow)
	require.NoError(t, err)
	assert.Equal(t, 15.5, stats.Current)
	assert.Equal(t, 20.3, stats.Next)
	assert.Equal(t, 12.0, stats.Min)
	assert.Equal(t, 20.3, stats.Max)
	assert.Equal(t, "12.00p - 20.30p", stats.PriceRange)

	daily, err := svc.Daily(testNow)
	require.NoError(t, err)
	require.NotNil(t, daily.Today)
	assert.Equal(t, 4, daily.Today.Count)
	assert.Nil(t, daily.Tomorrow)

	cheapest, err := svc.Cheapest(testNow, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 12.0, cheapest.ValueIncVAT)

	shape, err := svc.Shape()
	require.NoError(t, err)
	assert.Len(t, shape, 48)
	assert.Equal(t, 15.5, shape[0].Avg)

	tracker, err := svc.Tracker(testNow)
	require.NoError(t, err)
	require.NotNil(t, tracker.Current)
	assert.Equal(t, 15.5, *tracker.Current)
	assert.Nil(t, tracker.NextDay)

	snap, err := svc.Carbon()
	require.NoError(t, err)
	assert.Equal(t, 90, snap.Latest.BestIntensity())

	assert.Equal(t, octopus.RegionC, svc.Region())
}

func TestQueriesBeforeFirstRefresh(t *testing.T) {
	svc := newTestService(t, serveTariffs, serveIntensity)

	_, err := svc.CurrentStats(testNow)
	require.Error(t, err)
	assert.Equal(t, apperr.KindData, apperr.KindOf(err))

	_, err = svc.Shape()
	assert.Equal(t, apperr.KindData, apperr.KindOf(err))

	_, err = svc.Tracker(testNow)
	assert.Equal(t, apperr.KindData, apperr.KindOf(err))

	_, err = svc.Carbon()
	assert.Equal(t, apperr.KindData, apperr.KindOf(err))
}

func TestRefreshAllToleratesSingleFailure(t *testing.T) {
	svc := newTestService(t, serveTariffs, failUpstream)

	// Carbon failed but the tariff cycles succeeded.
	require.NoError(t, svc.RefreshAll(context.Background()))

	_, err := svc.CurrentStats(testNow)
	assert.NoError(t, err)

	_, err = svc.Carbon()
	assert.Equal(t, apperr.KindData, apperr.KindOf(err))
}

func TestRefreshAllFailsWhenEverythingFails(t *testing.T) {
	svc := newTestService(t, failUpstream, failUpstream)

	err := svc.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all refresh cycles failed")
}

func TestRefreshKeepsLastGoodSnapshot(t *testing.T) {
	var failing bool
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if failing && strings.Contains(r.URL.Path, "AGILE") {
			failUpstream(w, r)
			return
		}
		serveTariffs(w, r)
	}, serveIntensity)

	require.NoError(t, svc.RefreshAgile(context.Background()))

	failing = true
	err := svc.RefreshAgile(context.Background())
	require.Error(t, err)

	// The previous index is still served.
	stats, err := svc.CurrentStats(testNow)
	require.NoError(t, err)
	assert.Equal(t, 15.5, stats.Current)
}
