// Package octopus fetches half-hourly tariff rates from the Octopus Energy
// REST API: URL construction per product and region, page fetching with
// response classification, and pagination with partial-success semantics.
package octopus

import (
	"fmt"
	"time"
)

const (
	defaultBaseURL        = "https://api.octopus.energy/v1/products"
	defaultAgileProduct   = "AGILE-24-10-01"
	defaultTrackerProduct = "SILVER-24-10-01"

	// timeLayout serializes period bounds at second precision with a
	// literal Z suffix, as the upstream expects.
	timeLayout = "2006-01-02T15:04:05Z"
)

// Config maps a region and product codes to fully-qualified, time-windowed
// request URLs. It is an immutable value: construct, use, discard.
type Config struct {
	BaseURL        string
	AgileProduct   string
	TrackerProduct string
	Region         Region
}

// NewConfig returns a Config with upstream defaults for region.
func NewConfig(region Region) Config {
	if region == "" {
		region = DefaultRegion
	}
	return Config{
		BaseURL:        defaultBaseURL,
		AgileProduct:   defaultAgileProduct,
		TrackerProduct: defaultTrackerProduct,
		Region:         region,
	}
}

// AgileURL is the live agile-rates URL: a [midnight, midnight+2d) window
// around now, covering today and any published day-ahead rates.
func (c Config) AgileURL(now time.Time) string {
	from := midnight(now)
	return c.tariffURL(c.AgileProduct, from, from.Add(48*time.Hour))
}

// TrackerURL is the live tracker-rates URL over the same 2-day window.
func (c Config) TrackerURL(now time.Time) string {
	from := midnight(now)
	return c.tariffURL(c.TrackerProduct, from, from.Add(48*time.Hour))
}

// HistoricalURL covers the days days before today's midnight:
// [midnight-days, midnight).
func (c Config) HistoricalURL(now time.Time, days int) string {
	to := midnight(now)
	return c.tariffURL(c.AgileProduct, to.AddDate(0, 0, -days), to)
}

func (c Config) tariffURL(product string, from, to time.Time) string {
	return fmt.Sprintf(
		"%s/%s/electricity-tariffs/E-1R-%s-%s/standard-unit-rates/?period_from=%s&period_to=%s",
		c.BaseURL,
		product,
		product,
		c.Region.Code(),
		from.UTC().Format(timeLayout),
		to.UTC().Format(timeLayout),
	)
}

func midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
