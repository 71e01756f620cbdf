package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agilewatch/agilewatch/internal/carbon"
	"github.com/agilewatch/agilewatch/internal/rates"
)

func TestEmptyStore(t *testing.T) {
	s := NewMemory()

	_, err := s.Index(SourceAgile)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FetchedAt(SourceAgile)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Carbon()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetIndexReplaces(t *testing.T) {
	s := NewMemory()
	from := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)

	first := rates.NewIndex([]rates.Rate{{ValueIncVAT: 15.5, ValidFrom: from, ValidTo: from.Add(30 * time.Minute)}})
	fetched1 := time.Date(2025, 10, 4, 8, 0, 0, 0, time.UTC)
	s.SetIndex(SourceAgile, first, fetched1)

	got, err := s.Index(SourceAgile)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	second := rates.NewIndex([]rates.Rate{
		{ValueIncVAT: 15.5, ValidFrom: from, ValidTo: from.Add(30 * time.Minute)},
		{ValueIncVAT: 20.3, ValidFrom: from.Add(30 * time.Minute), ValidTo: from.Add(time.Hour)},
	})
	fetched2 := fetched1.Add(10 * time.Minute)
	s.SetIndex(SourceAgile, second, fetched2)

	got, err = s.Index(SourceAgile)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	at, err := s.FetchedAt(SourceAgile)
	require.NoError(t, err)
	assert.Equal(t, fetched2, at)
}

func TestSourcesAreIndependent(t *testing.T) {
	s := NewMemory()
	from := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)

	s.SetIndex(SourceTracker, rates.NewIndex(nil), from)

	_, err := s.Index(SourceAgile)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Index(SourceTracker)
	assert.NoError(t, err)
}

func TestSetCarbon(t *testing.T) {
	s := NewMemory()

	snap := &carbon.Snapshot{
		Latest: carbon.Period{Intensity: carbon.Intensity{Forecast: 95}},
		Next:   carbon.Period{Intensity: carbon.Intensity{Forecast: 85}},
	}
	s.SetCarbon(snap, time.Now().UTC())

	got, err := s.Carbon()
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}
