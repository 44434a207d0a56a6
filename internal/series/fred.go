package series

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/sirupsen/logrus"
	cb "github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultFREDBaseURL       = "https://api.stlouisfed.org/fred"
	defaultObservationStart  = "2015-01-01"
	missingObservationMarker = "."
)

// ErrFREDNotConfigured is returned when no API key was supplied.
var ErrFREDNotConfigured = errors.New("fred api key is not configured")

// FREDOptions configures a FREDClient. Zero values take the defaults.
type FREDOptions struct {
	BaseURL          string
	APIKey           string
	ObservationStart string
	RatePerSecond    float64
	Burst            int
	Timeout          time.Duration
	HTTPClient       *http.Client
}

// FREDClient fetches series observations from the FRED API. Requests are
// rate limited and pass through a circuit breaker that opens after
// repeated upstream failures.
type FREDClient struct {
	httpClient       *http.Client
	baseURL          string
	apiKey           string
	observationStart string
	limiter          *rate.Limiter
	breaker          *cb.CircuitBreaker
	logger           *logrus.Logger
}

type fredObservationsResponse struct {
	Count        int `json:"count"`
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func NewFREDClient(opts FREDOptions, logger *logrus.Logger) *FREDClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultFREDBaseURL
	}
	if opts.ObservationStart == "" {
		opts.ObservationStart = defaultObservationStart
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	st := cb.Settings{Name: "fred"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}
	// A missing series is a caller problem, not an upstream outage.
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrUnknownSeries) || errors.Is(err, ErrNoObservations) || errors.Is(err, context.Canceled)
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		logger.WithFields(logrus.Fields{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("FRED circuit breaker changed state")
	}

	return &FREDClient{
		httpClient:       opts.HTTPClient,
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		apiKey:           opts.APIKey,
		observationStart: opts.ObservationStart,
		limiter:          rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		breaker:          cb.NewCircuitBreaker(st),
		logger:           logger,
	}
}

// Observations fetches the series from observation_start onwards. Missing
// values are skipped; the result is sorted and free of duplicate dates.
func (c *FREDClient) Observations(ctx context.Context, seriesID string) ([]models.Observation, error) {
	if c.apiKey == "" {
		return nil, ErrFREDNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fred rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, seriesID)
	})
	if err != nil {
		if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
			return nil, fmt.Errorf("fred unavailable for %s: %w", seriesID, err)
		}
		return nil, err
	}
	return result.([]models.Observation), nil
}

func (c *FREDClient) fetch(ctx context.Context, seriesID string) ([]models.Observation, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	params.Set("observation_start", c.observationStart)
	endpoint := c.baseURL + "/series/observations?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build FRED request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from FRED: %w", seriesID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read FRED response for %s: %w", seriesID, err)
	}

	var payload fredObservationsResponse
	decodeErr := json.Unmarshal(body, &payload)

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnknownSeries, seriesID, payload.ErrorMessage)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("FRED returned status %d for %s: %s", resp.StatusCode, seriesID, payload.ErrorMessage)
	case decodeErr != nil:
		return nil, fmt.Errorf("failed to decode FRED response for %s: %w", seriesID, decodeErr)
	}

	obs := make([]models.Observation, 0, len(payload.Observations))
	skipped := 0
	for _, raw := range payload.Observations {
		if raw.Value == missingObservationMarker {
			skipped++
			continue
		}
		date, err := time.Parse(models.DateLayout, raw.Date)
		if err != nil {
			skipped++
			continue
		}
		value, err := strconv.ParseFloat(raw.Value, 64)
		if err != nil {
			skipped++
			continue
		}
		obs = append(obs, models.Observation{Date: date, Value: value})
	}

	c.logger.WithFields(logrus.Fields{
		"series_id":   seriesID,
		"received":    len(payload.Observations),
		"skipped":     skipped,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Fetched FRED observations")

	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoObservations, seriesID)
	}
	return normalize(obs), nil
}

// BreakerState reports the circuit breaker state for health output.
func (c *FREDClient) BreakerState() string {
	return c.breaker.State().String()
}
