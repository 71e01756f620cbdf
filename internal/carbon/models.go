// Package carbon fetches UK grid carbon intensity from the national Carbon
// Intensity API. Unlike the tariff listing this upstream is not paginated;
// the whole logical fetch is retried as one operation.
package carbon

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/agilewatch/agilewatch/internal/apperr"
)

// Intensity is the carbon intensity reading for one period. Actual is nil
// for periods the upstream has only forecast so far. Index is the upstream
// category ("very low" .. "very high").
type Intensity struct {
	Forecast int    `json:"forecast"`
	Actual   *int   `json:"actual,omitempty"`
	Index    string `json:"index"`
}

// Period is one half-hour carbon intensity window, half-open [From, To).
type Period struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Intensity Intensity `json:"intensity"`
}

// UnmarshalJSON accepts the upstream's two datetime forms: full RFC3339 and
// the seconds-less variant ("...T19:30Z") the live API actually emits.
func (p *Period) UnmarshalJSON(b []byte) error {
	var raw struct {
		From      string    `json:"from"`
		To        string    `json:"to"`
		Intensity Intensity `json:"intensity"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	from, err := parseFlexibleTime(raw.From)
	if err != nil {
		return err
	}
	to, err := parseFlexibleTime(raw.To)
	if err != nil {
		return err
	}

	p.From = from
	p.To = to
	p.Intensity = raw.Intensity
	return nil
}

// BestIntensity returns the actual value when present, otherwise the
// forecast.
func (p Period) BestIntensity() int {
	if p.Intensity.Actual != nil {
		return *p.Intensity.Actual
	}
	return p.Intensity.Forecast
}

// HasActual reports whether the period has a measured value.
func (p Period) HasActual() bool {
	return p.Intensity.Actual != nil
}

// Snapshot pairs the most recent period with measured data against the
// period covering or following the reference instant.
type Snapshot struct {
	Latest Period `json:"latest"`
	Next   Period `json:"next"`
}

// Change is the forecast intensity delta from the latest measured period to
// the next one.
func (s Snapshot) Change() int {
	return s.Next.Intensity.Forecast - s.Latest.BestIntensity()
}

// parseFlexibleTime parses strict RFC3339 first, then falls back to the
// same layout without seconds.
func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if strings.HasSuffix(s, "Z") {
		trimmed := strings.TrimSuffix(s, "Z")
		if t, err := time.Parse("2006-01-02T15:04:05", trimmed); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse("2006-01-02T15:04", trimmed); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.API("failed to parse datetime %q", s)
}
