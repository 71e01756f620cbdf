package store

import (
	"errors"
	"sync"
	"time"

	"github.com/agilewatch/agilewatch/internal/carbon"
	"github.com/agilewatch/agilewatch/internal/rates"
)

var (
	// ErrNotFound is returned when no snapshot has been stored yet for a
	// source. An empty store is a legitimate state between startup and the
	// first successful refresh.
	ErrNotFound = errors.New("no data for source")
)

// Source identifies an independently refreshed data slot.
type Source string

const (
	SourceAgile      Source = "agile"
	SourceTracker    Source = "tracker"
	SourceHistorical Source = "historical"
)

type indexSnapshot struct {
	index     *rates.Index
	fetchedAt time.Time
}

// Memory holds the latest snapshot per data source. Snapshots are replaced
// wholesale, never mutated, so an old index stays valid for in-flight
// readers after a refresh swaps it out.
type Memory struct {
	mu       sync.RWMutex
	indexes  map[Source]indexSnapshot
	carbon   *carbon.Snapshot
	carbonAt time.Time
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		indexes: make(map[Source]indexSnapshot),
	}
}

// SetIndex atomically replaces the index for src.
func (s *Memory) SetIndex(src Source, idx *rates.Index, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[src] = indexSnapshot{index: idx, fetchedAt: fetchedAt}
}

// Index returns the latest index for src.
func (s *Memory) Index(src Source) (*rates.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.indexes[src]
	if !ok {
		return nil, ErrNotFound
	}
	return snap.index, nil
}

// FetchedAt returns when the index for src was last replaced.
func (s *Memory) FetchedAt(src Source) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.indexes[src]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return snap.fetchedAt, nil
}

// SetCarbon atomically replaces the carbon intensity snapshot.
func (s *Memory) SetCarbon(snap *carbon.Snapshot, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carbon = snap
	s.carbonAt = fetchedAt
}

// Carbon returns the latest carbon intensity snapshot.
func (s *Memory) Carbon() (*carbon.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.carbon == nil {
		return nil, ErrNotFound
	}
	return s.carbon, nil
}
