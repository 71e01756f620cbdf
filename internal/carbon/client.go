package carbon

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
	"github.com/agilewatch/agilewatch/internal/retry"
)

// DefaultBaseURL is the national Carbon Intensity API.
const DefaultBaseURL = "https://api.carbonintensity.org.uk"

type apiResponse struct {
	Data []Period `json:"data"`
}

// Client fetches carbon intensity periods. BaseURL and Retry default to the
// production values and may be adjusted before first use.
type Client struct {
	BaseURL string
	Retry   retry.Policy

	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewClient builds a Client over httpClient.
func NewClient(httpClient *http.Client, log *zap.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "carbon-intensity",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		BaseURL: DefaultBaseURL,
		Retry:   retry.DefaultPolicy(),
		http:    httpClient,
		breaker: cb,
		log:     log,
	}
}

// FetchCurrentAndNext fetches today's intensity periods and selects the most
// recent period with measured data plus the period covering or following
// now. The whole operation is retried on 429, not the single HTTP call.
func (c *Client) FetchCurrentAndNext(ctx context.Context, now time.Time) (*Snapshot, error) {
	return retry.WithBackoff(ctx, c.log, c.Retry, func() (*Snapshot, error) {
		return c.fetchOnce(ctx, now)
	})
}

func (c *Client) fetchOnce(ctx context.Context, now time.Time) (*Snapshot, error) {
	url := c.BaseURL + "/intensity/date"

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
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, apperr.API("request timeout: %v", err)
		}
		return nil, apperr.API("network error: %v", err)
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, apperr.RateLimited()
		}
		return nil, apperr.APIStatus(resp.StatusCode, string(body))
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperr.API("failed to parse response: %v", err)
	}

	return selectSnapshot(payload.Data, now)
}

// selectSnapshot picks the latest ended period carrying actual data, and the
// period that covers or follows now.
func selectSnapshot(periods []Period, now time.Time) (*Snapshot, error) {
	var latest *Period
	for i := range periods {
		p := &periods[i]
		if p.To.After(now) || !p.HasActual() {
			continue
		}
		if latest == nil || p.To.After(latest.To) {
			latest = p
		}
	}
	if latest == nil {
		return nil, apperr.Data("no period with actual data found in response")
	}

	var next *Period
	for i := range periods {
		p := &periods[i]
		if p.From.After(now) || now.Before(p.To) {
			next = p
			break
		}
	}
	if next == nil {
		return nil, apperr.Data("no next period found in response")
	}

	return &Snapshot{Latest: *latest, Next: *next}, nil
}
