package octopus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/agilewatch/agilewatch/internal/apperr"
	"github.com/agilewatch/agilewatch/internal/rates"
	"github.com/agilewatch/agilewatch/internal/retry"
)

// DefaultPageDelay spaces successive page requests within one paginated
// fetch so bulk/historical pagination does not trip the upstream rate
// limiter. It is independent of retry backoff.
const DefaultPageDelay = 5 * time.Millisecond

// page is one response of the paginated standard-unit-rates listing. Next
// carries the follow-up URL; following it is the only fetch-state mutation
// across iterations.
type page struct {
	Count   int          `json:"count"`
	Next    *string      `json:"next"`
	Results []rates.Rate `json:"results"`
}

// Client fetches tariff rates with retrying pagination. Retry and PageDelay
// default to the upstream-tuned values and may be adjusted before first use.
type Client struct {
	Retry     retry.Policy
	PageDelay time.Duration

	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewClient builds a Client over httpClient. Request deadlines are the
// transport's responsibility; the client adds no deadline of its own.
func NewClient(cfg Config, httpClient *http.Client, log *zap.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "octopus",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		Retry:     retry.DefaultPolicy(),
		PageDelay: DefaultPageDelay,
		cfg:       cfg,
		http:      httpClient,
		breaker:   cb,
		log:       log,
	}
}

// Config returns the client's immutable URL configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// FetchAgileRates fetches the live agile window ([midnight, midnight+2d)
// around now) and builds an index from it.
func (c *Client) FetchAgileRates(ctx context.Context, now time.Time) (*rates.Index, error) {
	recs, err := c.fetchAll(ctx, c.cfg.AgileURL(now))
	if err != nil {
		return nil, err
	}
	return rates.NewIndex(recs), nil
}

// FetchTrackerRates fetches the live tracker window and builds an index.
func (c *Client) FetchTrackerRates(ctx context.Context, now time.Time) (*rates.Index, error) {
	recs, err := c.fetchAll(ctx, c.cfg.TrackerURL(now))
	if err != nil {
		return nil, err
	}
	return rates.NewIndex(recs), nil
}

// FetchHistoricalRates fetches the days days before today's midnight and
// builds an index.
func (c *Client) FetchHistoricalRates(ctx context.Context, now time.Time, days int) (*rates.Index, error) {
	recs, err := c.fetchAll(ctx, c.cfg.HistoricalURL(now, days))
	if err != nil {
		return nil, err
	}
	return rates.NewIndex(recs), nil
}

// fetchAll walks the next-link chain from firstURL, accumulating records.
// Each page is retried on 429 with backoff. A failure on page 1 propagates;
// a failure on a later page downgrades to a warning and the records
// accumulated so far are returned as a success. Cancellation discards any
// partial progress.
func (c *Client) fetchAll(ctx context.Context, firstURL string) ([]rates.Rate, error) {
	var all []rates.Rate
	url := firstURL

	for pageNum := 1; url != ""; pageNum++ {
		u := url
		p, err := retry.WithBackoff(ctx, c.log, c.Retry, func() (*page, error) {
			return c.fetchPage(ctx, u)
		})
		if err != nil {
			if pageNum == 1 || ctx.Err() != nil {
				return nil, err
			}
			c.log.Warn("pagination aborted, keeping records fetched so far",
				zap.String("url", u),
				zap.Int("page", pageNum),
				zap.Int("records", len(all)),
				zap.Error(err),
			)
			return all, nil
		}

		all = append(all, p.Results...)

		if p.Next == nil || *p.Next == "" {
			break
		}
		url = *p.Next

		if err := waitPageDelay(ctx, c.PageDelay); err != nil {
			return nil, err
		}
	}

	return all, nil
}

// fetchPage issues one GET and classifies the outcome. The circuit breaker
// guards transport failures only; HTTP statuses, including 429, are
// classified here so retry policy stays with the caller.
func (c *Client) fetchPage(ctx context.Context, url string) (*page, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return c.http.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperr.API("circuit breaker open: %v", err)
		}
		return nil, classifyTransport(err)
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(resp.StatusCode, string(body))
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, apperr.API("failed to parse response: %v", err)
	}
	return &p, nil
}

func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return apperr.RateLimited()
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Auth("authentication failed: %d", status)
	case status == http.StatusNotFound:
		return apperr.NotFound("resource not found: %s", body)
	default:
		return apperr.APIStatus(status, body)
	}
}

func classifyTransport(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return apperr.API("request timeout: %v", err)
	}
	return apperr.API("network error: %v", err)
}

func waitPageDelay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
