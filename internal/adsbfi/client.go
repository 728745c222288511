// Package adsbfi provides a client for the ADSB.fi open data API.
//
// The API returns live ADS-B derived position reports for aircraft within a
// radius of a lat/lon point. Requests are unauthenticated; the client applies
// its own rate limit so that an aggressive poll cadence cannot hammer the
// public endpoint.
//
// API documentation: https://github.com/adsbfi/opendata
package adsbfi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the ADSB.fi open data API v3 base URL.
	DefaultBaseURL = "https://opendata.adsb.fi/api/v3"

	// DefaultTimeout bounds a single API request.
	DefaultTimeout = 10 * time.Second

	// DefaultRequestsPerSecond is the client-side poll rate limit.
	DefaultRequestsPerSecond = 1.0

	// MaxDistanceNM is the largest search radius the API accepts.
	MaxDistanceNM = 250.0
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client queries the ADSB.fi open data API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Config contains configuration for the ADSB.fi client. Zero values fall
// back to the defaults above.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// NewClient creates a new ADSB.fi client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  cfg.Logger.Named("adsbfi"),
	}
}

// RateLimitError is returned when the API answers with HTTP 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("adsb.fi rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "adsb.fi rate limit exceeded"
}

// response is the envelope around the aircraft array.
type response struct {
	Aircraft []Aircraft `json:"ac"`
	Message  string     `json:"msg"`
	Now      int64      `json:"now"`
	Total    int        `json:"total"`
}

// NearbyAircraft returns all aircraft within distanceNM nautical miles of the
// given point. Distances above the API maximum are clamped. The call blocks
// on the client rate limiter, so ctx also bounds the wait.
func (c *Client) NearbyAircraft(ctx context.Context, lat, lon, distanceNM float64) ([]Aircraft, error) {
	if distanceNM > MaxDistanceNM {
		distanceNM = MaxDistanceNM
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	url := fmt.Sprintf("%s/lat/%s/lon/%s/dist/%s",
		c.baseURL, formatCoord(lat), formatCoord(lon), formatCoord(distanceNM))

	c.logger.Debug("Requesting nearby aircraft", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aircraft data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header)}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("adsb.fi returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse adsb.fi response: %w", err)
	}

	c.logger.Debug("Fetched aircraft", zap.Int("count", len(payload.Aircraft)))
	return payload.Aircraft, nil
}

// parseRetryAfter reads a delay-seconds Retry-After header. Zero means the
// header was absent or unparseable.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// formatCoord renders a coordinate without exponent notation or padding.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
