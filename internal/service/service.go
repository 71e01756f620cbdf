// Package service orchestrates the fetch-and-index pipeline and fronts the
// store for the query edge. Wall-clock reads happen only here; the rate
// index and stats functions always take the instant explicitly.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agilewatch/agilewatch/internal/apperr"
	"github.com/agilewatch/agilewatch/internal/carbon"
	"github.com/agilewatch/agilewatch/internal/octopus"
	"github.com/agilewatch/agilewatch/internal/rates"
	"github.com/agilewatch/agilewatch/internal/store"
)

// Service runs refresh cycles against the upstreams and answers queries from
// the latest stored snapshots.
type Service struct {
	octo        *octopus.Client
	carbon      *carbon.Client
	store       *store.Memory
	historyDays int
	log         *zap.Logger
	now         func() time.Time
}

// New wires a Service. historyDays controls the window of the historical
// (shape curve) refresh.
func New(octo *octopus.Client, carbonClient *carbon.Client, st *store.Memory, historyDays int, log *zap.Logger) *Service {
	return &Service{
		octo:        octo,
		carbon:      carbonClient,
		store:       st,
		historyDays: historyDays,
		log:         log,
		now:         time.Now,
	}
}

// RefreshAgile rebuilds the agile rates index from the upstream.
func (s *Service) RefreshAgile(ctx context.Context) error {
	now := s.now().UTC()
	idx, err := s.octo.FetchAgileRates(ctx, now)
	if err != nil {
		return fmt.Errorf("refresh agile rates: %w", err)
	}
	s.store.SetIndex(store.SourceAgile, idx, now)
	s.log.Info("refreshed agile rates", zap.Int("records", idx.Len()))
	return nil
}

// RefreshTracker rebuilds the tracker rates index.
func (s *Service) RefreshTracker(ctx context.Context) error {
	now := s.now().UTC()
	idx, err := s.octo.FetchTrackerRates(ctx, now)
	if err != nil {
		return fmt.Errorf("refresh tracker rates: %w", err)
	}
	s.store.SetIndex(store.SourceTracker, idx, now)
	s.log.Info("refreshed tracker rates", zap.Int("records", idx.Len()))
	return nil
}

// RefreshHistorical rebuilds the historical index used for the shape curve.
func (s *Service) RefreshHistorical(ctx context.Context) error {
	now := s.now().UTC()
	idx, err := s.octo.FetchHistoricalRates(ctx, now, s.historyDays)
	if err != nil {
		return fmt.Errorf("refresh historical rates: %w", err)
	}
	s.store.SetIndex(store.SourceHistorical, idx, now)
	s.log.Info("refreshed historical rates",
		zap.Int("records", idx.Len()),
		zap.Int("days", s.historyDays),
	)
	return nil
}

// RefreshCarbon replaces the carbon intensity snapshot.
func (s *Service) RefreshCarbon(ctx context.Context) error {
	now := s.now().UTC()
	snap, err := s.carbon.FetchCurrentAndNext(ctx, now)
	if err != nil {
		return fmt.Errorf("refresh carbon intensity: %w", err)
	}
	s.store.SetCarbon(snap, now)
	s.log.Info("refreshed carbon intensity",
		zap.Int("latest", snap.Latest.BestIntensity()),
		zap.Int("next_forecast", snap.Next.Intensity.Forecast),
	)
	return nil
}

// RefreshAll runs the four refresh cycles concurrently. The cycles share no
// mutable state; each writes its own store slot. Individual failures are
// logged and the last good snapshot is kept; the error is non-nil only when
// every cycle failed.
func (s *Service) RefreshAll(ctx context.Context) error {
	cycles := []struct {
		name string
		run  func(context.Context) error
	}{
		{"agile", s.RefreshAgile},
		{"tracker", s.RefreshTracker},
		{"historical", s.RefreshHistorical},
		{"carbon", s.RefreshCarbon},
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, c := range cycles {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.run(ctx); err != nil {
				s.log.Error("refresh cycle failed", zap.String("source", c.name), zap.Error(err))
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if succeeded == 0 {
		return errors.New("all refresh cycles failed")
	}
	return nil
}

// CurrentStats answers "what is the price now" plus whole-window aggregates
// at t from the agile index.
func (s *Service) CurrentStats(t time.Time) (rates.PriceStats, error) {
	idx, err := s.agileIndex()
	if err != nil {
		return rates.PriceStats{}, err
	}
	return rates.StatsAt(idx, t)
}

// Daily answers today's (required) and tomorrow's (optional) day statistics
// at t.
func (s *Service) Daily(t time.Time) (rates.DailyStats, error) {
	idx, err := s.agileIndex()
	if err != nil {
		return rates.DailyStats{}, err
	}
	return rates.Daily(idx, t)
}

// Cheapest returns the cheapest rate starting within [t, t+window).
func (s *Service) Cheapest(t time.Time, window time.Duration) (*rates.Rate, error) {
	idx, err := s.agileIndex()
	if err != nil {
		return nil, err
	}
	r := rates.CheapestInWindow(idx, t, window)
	if r == nil {
		return nil, apperr.Data("no rates in the requested window")
	}
	return r, nil
}

// Shape returns the 48-point half-hour shape curve over the historical
// window.
func (s *Service) Shape() ([]rates.ShapePoint, error) {
	idx, err := s.store.Index(store.SourceHistorical)
	if err != nil {
		return nil, apperr.Data("no historical data available")
	}
	if idx.IsEmpty() {
		return nil, apperr.Data("no historical data available")
	}
	return rates.ShapeCurve(idx), nil
}

// Tracker returns today's and tomorrow's tracker prices at t.
func (s *Service) Tracker(t time.Time) (rates.TrackerPrices, error) {
	idx, err := s.store.Index(store.SourceTracker)
	if err != nil {
		return rates.TrackerPrices{}, apperr.Data("no tracker data available")
	}
	return rates.Tracker(idx, t), nil
}

// Carbon returns the latest carbon intensity snapshot.
func (s *Service) Carbon() (*carbon.Snapshot, error) {
	snap, err := s.store.Carbon()
	if err != nil {
		return nil, apperr.Data("no carbon intensity data available")
	}
	return snap, nil
}

// Region reports the configured distribution region.
func (s *Service) Region() octopus.Region {
	return s.octo.Config().Region
}

func (s *Service) agileIndex() (*rates.Index, error) {
	idx, err := s.store.Index(store.SourceAgile)
	if err != nil {
		return nil, apperr.Data("no data available")
	}
	return idx, nil
}
