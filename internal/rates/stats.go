package rates

import (
	"fmt"
	"time"

	"github.com/agilewatch/agilewatch/internal/apperr"
)

// PriceStats summarizes the whole loaded window plus the point-in-time
// current and next prices. Current/Next are 0.0 when no rate covers the
// reference instant; missing point coverage degrades gracefully while
// missing aggregate data does not.
type PriceStats struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Avg        float64 `json:"avg"`
	Current    float64 `json:"current"`
	Next       float64 `json:"next"`
	PriceRange string  `json:"price_range"`
}

// DayStats summarizes a single UTC calendar day.
type DayStats struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Avg        float64 `json:"avg"`
	Count      int     `json:"count"`
	PriceRange string  `json:"price_range"`
}

// DailyStats combines today's summary (required) with tomorrow's (nil until
// the upstream publishes day-ahead rates, typically in the afternoon).
type DailyStats struct {
	Today    DayStats  `json:"today"`
	Tomorrow *DayStats `json:"tomorrow,omitempty"`
	Current  float64   `json:"current"`
	Next     float64   `json:"next"`
}

// TrackerPrices holds the daily tracker tariff view: today's price,
// tomorrow's price, and the difference once both are known.
type TrackerPrices struct {
	Current    *float64 `json:"current,omitempty"`
	NextDay    *float64 `json:"next_day,omitempty"`
	Difference *float64 `json:"difference,omitempty"`
}

// ShapePoint is one half-hour slot of the multi-day daily shape curve.
type ShapePoint struct {
	Slot  int     `json:"slot"`
	Time  string  `json:"time"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// StatsAt computes min/max/avg over every rate in the index, with the
// current and next price at t. Returns a data error on an empty index.
func StatsAt(x *Index, t time.Time) (PriceStats, error) {
	if x.IsEmpty() {
		return PriceStats{}, apperr.Data("no data available")
	}

	min, max, avg := minMaxAvg(x.All())

	var current, next float64
	if r := x.RateAt(t); r != nil {
		current = r.ValueIncVAT
	}
	if r := x.NextRate(t); r != nil {
		next = r.ValueIncVAT
	}

	return PriceStats{
		Min:        min,
		Max:        max,
		Avg:        avg,
		Current:    current,
		Next:       next,
		PriceRange: priceRange(min, max),
	}, nil
}

// StatsForCalendarDay summarizes the UTC calendar day of d, or nil when the
// index holds no rates for that day.
func StatsForCalendarDay(x *Index, d time.Time) *DayStats {
	day := x.ForCalendarDay(d)
	if len(day) == 0 {
		return nil
	}
	min, max, avg := minMaxAvg(day)
	return &DayStats{
		Min:        min,
		Max:        max,
		Avg:        avg,
		Count:      len(day),
		PriceRange: priceRange(min, max),
	}
}

// Daily builds the two-tier day view at now: today's stats are load-bearing
// (data error when absent), tomorrow's are advisory (nil until published).
func Daily(x *Index, now time.Time) (DailyStats, error) {
	today := StatsForCalendarDay(x, now)
	if today == nil {
		return DailyStats{}, apperr.Data("no rates for today")
	}

	tomorrow := StatsForCalendarDay(x, MidnightUTC(now).Add(24*time.Hour))

	var current, next float64
	if r := x.RateAt(now); r != nil {
		current = r.ValueIncVAT
	}
	if r := x.NextRate(now); r != nil {
		next = r.ValueIncVAT
	}

	return DailyStats{
		Today:    *today,
		Tomorrow: tomorrow,
		Current:  current,
		Next:     next,
	}, nil
}

// CheapestInWindow returns the cheapest rate starting in [from, from+window),
// or nil when no rate starts inside the window. Ties resolve to the
// earliest-occurring rate.
func CheapestInWindow(x *Index, from time.Time, window time.Duration) *Rate {
	end := from.Add(window)
	candidates := x.FilterFrom(from)

	var best *Rate
	for i := range candidates {
		r := &candidates[i]
		if !r.ValidFrom.Before(end) {
			break
		}
		if best == nil || r.ValueIncVAT < best.ValueIncVAT {
			best = r
		}
	}
	return best
}

// ShapeCurve computes the 48-point daily shape curve: the mean price per
// half-hour-of-day slot across every day in the index. Slots with no data
// have Count 0 and Avg 0.
func ShapeCurve(x *Index) []ShapePoint {
	buckets := x.SlotBuckets()
	curve := make([]ShapePoint, SlotsPerDay)
	for slot, prices := range buckets {
		p := ShapePoint{
			Slot: slot,
			Time: fmt.Sprintf("%02d:%02d", slot/2, (slot%2)*30),
		}
		if len(prices) > 0 {
			var sum float64
			for _, v := range prices {
				sum += v
			}
			p.Avg = sum / float64(len(prices))
			p.Count = len(prices)
		}
		curve[slot] = p
	}
	return curve
}

// Tracker derives the tracker tariff view at now from a daily-granularity
// index: the rate covering now, the rate covering the next UTC midnight, and
// their difference when both exist.
func Tracker(x *Index, now time.Time) TrackerPrices {
	var out TrackerPrices

	if r := x.RateAt(now); r != nil {
		v := r.ValueIncVAT
		out.Current = &v
	}
	if r := x.RateAt(MidnightUTC(now).Add(24 * time.Hour)); r != nil {
		v := r.ValueIncVAT
		out.NextDay = &v
	}
	if out.Current != nil && out.NextDay != nil {
		d := *out.NextDay - *out.Current
		out.Difference = &d
	}
	return out
}

func minMaxAvg(rs []Rate) (min, max, avg float64) {
	min = rs[0].ValueIncVAT
	max = rs[0].ValueIncVAT
	var sum float64
	for _, r := range rs {
		v := r.ValueIncVAT
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(len(rs))
}

func priceRange(min, max float64) string {
	return fmt.Sprintf("%.2fp - %.2fp", min, max)
}
