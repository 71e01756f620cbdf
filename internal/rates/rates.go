// Package rates holds the half-hourly tariff rate model and the immutable
// interval index the query layer is built on.
package rates

import (
	"sort"
	"time"
)

// SlotsPerDay is the number of half-hour slots in a calendar day.
const SlotsPerDay = 48

// Rate is one priced half-hour slot. The interval is half-open:
// [ValidFrom, ValidTo).
type Rate struct {
	ValueExcVAT float64   `json:"value_exc_vat"`
	ValueIncVAT float64   `json:"value_inc_vat"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`
}

// Index is a sorted, immutable collection of rates. A refresh builds a new
// Index and replaces the old one wholesale; an Index is never mutated after
// construction, so it is safe for concurrent readers.
type Index struct {
	rates []Rate
}

// NewIndex builds an Index from records, stable-sorting a copy ascending by
// ValidFrom. Overlapping or duplicate intervals are kept as-is; when several
// rates share a ValidFrom the one last in original order wins lookups, and
// callers should treat such input as ambiguous.
func NewIndex(records []Rate) *Index {
	rs := make([]Rate, len(records))
	copy(rs, records)
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].ValidFrom.Before(rs[j].ValidFrom)
	})
	return &Index{rates: rs}
}

// Len returns the number of rates in the index.
func (x *Index) Len() int {
	return len(x.rates)
}

// IsEmpty reports whether the index holds no rates.
func (x *Index) IsEmpty() bool {
	return len(x.rates) == 0
}

// All returns the full sorted sequence. The returned slice is a read-only
// view; callers must not modify it.
func (x *Index) All() []Rate {
	return x.rates
}

// RateAt returns the rate covering t, or nil when t falls in a gap or outside
// the indexed range. Binary search for the last rate with ValidFrom <= t,
// then the ValidTo check rejects expired candidates inside gaps.
func (x *Index) RateAt(t time.Time) *Rate {
	i := sort.Search(len(x.rates), func(i int) bool {
		return x.rates[i].ValidFrom.After(t)
	})
	if i == 0 {
		return nil
	}
	r := &x.rates[i-1]
	if !r.ValidTo.After(t) {
		return nil
	}
	return r
}

// NextRate returns the rate starting exactly where the rate covering t ends.
// It is nil when t itself is uncovered, or when a gap immediately follows.
func (x *Index) NextRate(t time.Time) *Rate {
	cur := x.RateAt(t)
	if cur == nil {
		return nil
	}
	return x.RateAt(cur.ValidTo)
}

// FilterFrom returns all rates with ValidFrom >= t, in index order.
// The result is a read-only view into the index.
func (x *Index) FilterFrom(t time.Time) []Rate {
	i := sort.Search(len(x.rates), func(i int) bool {
		return !x.rates[i].ValidFrom.Before(t)
	})
	return x.rates[i:]
}

// ForCalendarDay returns the rates belonging to the UTC calendar day of d:
// those with ValidFrom in [midnight, midnight+24h). A rate ending exactly at
// midnight belongs to the earlier day; one starting at midnight to the later.
func (x *Index) ForCalendarDay(d time.Time) []Rate {
	start := MidnightUTC(d)
	end := start.Add(24 * time.Hour)
	lo := sort.Search(len(x.rates), func(i int) bool {
		return !x.rates[i].ValidFrom.Before(start)
	})
	hi := sort.Search(len(x.rates), func(i int) bool {
		return !x.rates[i].ValidFrom.Before(end)
	})
	return x.rates[lo:hi]
}

// SlotBuckets groups prices by half-hour-of-day: bucket s holds every
// ValueIncVAT whose ValidFrom falls in slot s (= hour*2 + minute/30, UTC)
// across all indexed days. Slots outside [0, SlotsPerDay) are dropped.
func (x *Index) SlotBuckets() [SlotsPerDay][]float64 {
	var buckets [SlotsPerDay][]float64
	for _, r := range x.rates {
		ts := r.ValidFrom.UTC()
		slot := ts.Hour()*2 + ts.Minute()/30
		if slot < 0 || slot >= SlotsPerDay {
			continue
		}
		buckets[slot] = append(buckets[slot], r.ValueIncVAT)
	}
	return buckets
}

// MidnightUTC truncates t to the start of its UTC calendar day.
func MidnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
