// Package geocode wraps the mapping API: forward geocoding, reverse
// geocoding, and a targeted county-only reverse lookup, integrated with the
// bounded TTL cache, the single-flight deduplicator, and the geocoding
// circuit breaker.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/couchcryptid/address-correction-service/internal/cache"
	"github.com/couchcryptid/address-correction-service/internal/domain"
	"github.com/couchcryptid/address-correction-service/internal/observability"
	"github.com/couchcryptid/address-correction-service/internal/resilience"
)

const upstreamName = "geocode"

// ErrNoCacheKey reports a caller error: neither an address nor coordinates
// were supplied to derive a cache key from.
var ErrNoCacheKey = errors.New("geocode: cache key needs an address or coordinates")

// Config carries the geocoding upstream settings.
type Config struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	CacheCapacity int
	CacheTTL      time.Duration
}

// Client implements forward and reverse geocoding against a Google-style
// geocoding endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics

	cache       *cache.Cache[*Result] // full forward/reverse results
	countyCache *cache.Cache[string]  // county-only reverse lookups
	flight      *resilience.Group
	breaker     *resilience.Breaker
}

// NewClient creates a geocoding client. The caches are owned by the client;
// the deduplicator and breaker are shared process singletons injected by the
// caller.
func NewClient(cfg Config, flight *resilience.Group, breaker *resilience.Breaker, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	}
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		metrics:     metrics,
		cache:       cache.New[*Result](cfg.CacheCapacity, cfg.CacheTTL),
		countyCache: cache.New[string](cfg.CacheCapacity, cfg.CacheTTL),
		flight:      flight,
		breaker:     breaker,
	}
}

// CacheKey derives the cache/dedup key for a lookup. Forward lookups key on
// the lowercased, whitespace-collapsed address; reverse lookups key on
// coordinates rounded to 5 decimal places (~1.1m). The distinct prefixes
// keep address-keyed and coordinate-keyed entries from ever colliding.
func CacheKey(address string, geo *domain.GeoPoint) (string, error) {
	if strings.TrimSpace(address) != "" {
		collapsed := strings.Join(strings.Fields(strings.ToLower(address)), " ")
		return "addr:" + collapsed, nil
	}
	if geo != nil {
		return fmt.Sprintf("coord:%.5f,%.5f", geo.Lat(), geo.Lng()), nil
	}
	return "", ErrNoCacheKey
}

// FetchCoordinates forward-geocodes a formatted address. A nil result with a
// nil error means the provider returned no usable match; only successes are
// cached so transient upstream errors cannot poison the cache.
func (c *Client) FetchCoordinates(ctx context.Context, formattedAddress string) (*Result, error) {
	key, err := CacheKey(formattedAddress, nil)
	if err != nil {
		return nil, err
	}
	if r, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("geocode", "hit").Inc()
		return r, nil
	}
	c.metrics.CacheLookups.WithLabelValues("geocode", "miss").Inc()

	r, err := c.execute(ctx, key, "forward", url.Values{"address": {formattedAddress}})
	if err != nil {
		return nil, err
	}
	if r != nil {
		c.cache.Set(key, r)
	}
	return r, nil
}

// FetchCoordinatesWithCounty forward-geocodes and, when the result lacks a
// county, backfills it with a county-only reverse lookup at the resolved
// coordinates. Forward geocoding alone frequently omits county.
func (c *Client) FetchCoordinatesWithCounty(ctx context.Context, formattedAddress string) (*Result, error) {
	r, err := c.FetchCoordinates(ctx, formattedAddress)
	if err != nil || r == nil {
		return r, err
	}
	if r.Components.County == "" {
		county, cerr := c.FetchCountyByCoordinates(ctx, r.Geo)
		if cerr != nil {
			c.logger.Warn("county backfill failed", "address", formattedAddress, "error", cerr)
		} else if county != "" {
			enriched := *r
			enriched.Components.County = county
			return &enriched, nil
		}
	}
	return r, nil
}

// FetchCountyByCoordinates reverse-geocodes constrained to county-level
// results. Returns "" when the provider has no county for the point.
func (c *Client) FetchCountyByCoordinates(ctx context.Context, geo domain.GeoPoint) (string, error) {
	key, err := CacheKey("", &geo)
	if err != nil {
		return "", err
	}
	key = "county:" + key
	if county, ok := c.countyCache.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("county", "hit").Inc()
		return county, nil
	}
	c.metrics.CacheLookups.WithLabelValues("county", "miss").Inc()

	params := url.Values{
		"latlng":      {fmt.Sprintf("%f,%f", geo.Lat(), geo.Lng())},
		"result_type": {"administrative_area_level_2"},
	}
	r, err := c.execute(ctx, key, "county", params)
	if err != nil || r == nil {
		return "", err
	}
	county := r.Components.County
	if county == "" {
		// County-restricted lookups put the name in the formatted address.
		county = domain.StripCountySuffix(strings.SplitN(r.FormattedAddress, ",", 2)[0])
	}
	if county != "" {
		c.countyCache.Set(key, county)
	}
	return county, nil
}

// FetchAddressFromCoordinates reverse-geocodes a point to a full address.
func (c *Client) FetchAddressFromCoordinates(ctx context.Context, geo domain.GeoPoint) (*Result, error) {
	key, err := CacheKey("", &geo)
	if err != nil {
		return nil, err
	}
	if r, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("geocode", "hit").Inc()
		return r, nil
	}
	c.metrics.CacheLookups.WithLabelValues("geocode", "miss").Inc()

	params := url.Values{"latlng": {fmt.Sprintf("%f,%f", geo.Lat(), geo.Lng())}}
	r, err := c.execute(ctx, key, "reverse", params)
	if err != nil {
		return nil, err
	}
	if r != nil {
		c.cache.Set(key, r)
	}
	return r, nil
}

// ReverseGeocode resolves a point to a textual address and administrative
// components. A nil result with nil error means no address was found.
func (c *Client) ReverseGeocode(ctx context.Context, geo domain.GeoPoint) (*domain.GeoResult, error) {
	r, err := c.FetchAddressFromCoordinates(ctx, geo)
	if err != nil || r == nil {
		return nil, err
	}
	return &domain.GeoResult{
		Geo:              r.Geo,
		FormattedAddress: r.FormattedAddress,
		StreetAddress:    r.Components.StreetAddress,
		StreetName:       r.Components.StreetName,
		City:             r.Components.City,
		County:           r.Components.County,
		State:            r.Components.State,
		ZipCode:          r.Components.ZipCode,
		Status:           true,
	}, nil
}

// EnsureValidGeo is the geocode reconciliation sub-pipeline. It never lets
// an error or panic escape: every outcome is a well-formed GeoResult.
func (c *Client) EnsureValidGeo(ctx context.Context, in domain.GeoInput) (out domain.GeoResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("geo validation panic", "panic", r)
			out = domain.GeoResult{
				Geo:              domain.SentinelPoint(),
				FormattedAddress: in.FormattedAddress,
				Status:           false,
				Error:            fmt.Sprintf("unexpected error validating geo coordinates: %v", r),
			}
		}
	}()

	geo := in.Geo
	if geo.IsSentinel() && in.Lat != nil && in.Lng != nil {
		geo = domain.NewGeoPoint(*in.Lng, *in.Lat)
	}

	if !geo.IsSentinel() {
		if in.FormattedAddress != "" {
			// The caller already has a description; skip the redundant
			// reverse lookup.
			return domain.GeoResult{Geo: geo, FormattedAddress: in.FormattedAddress, Status: true}
		}
		r, err := c.FetchAddressFromCoordinates(ctx, geo)
		if err != nil || r == nil {
			// Coordinates are already known-good: the absence of a textual
			// address is not a hard failure.
			res := domain.GeoResult{Geo: geo, Status: true}
			if err != nil {
				res.Error = fmt.Sprintf("failed to fetch address from coordinates: %v", err)
			} else {
				res.Error = "no address found for coordinates"
			}
			return res
		}
		return domain.GeoResult{
			Geo:              geo,
			FormattedAddress: r.FormattedAddress,
			StreetAddress:    r.Components.StreetAddress,
			StreetName:       r.Components.StreetName,
			City:             r.Components.City,
			County:           r.Components.County,
			State:            r.Components.State,
			ZipCode:          r.Components.ZipCode,
			Status:           true,
		}
	}

	var failure string
	if in.FormattedAddress != "" {
		r, err := c.FetchCoordinatesWithCounty(ctx, in.FormattedAddress)
		if err == nil && r != nil && !r.Geo.IsSentinel() {
			return domain.GeoResult{
				Geo:              r.Geo,
				FormattedAddress: r.FormattedAddress,
				StreetAddress:    r.Components.StreetAddress,
				StreetName:       r.Components.StreetName,
				City:             r.Components.City,
				County:           r.Components.County,
				State:            r.Components.State,
				ZipCode:          r.Components.ZipCode,
				Status:           true,
			}
		}
		failure = fmt.Sprintf("failed to fetch valid geo coordinates for address %q", in.FormattedAddress)
		if err != nil {
			failure = fmt.Sprintf("%s: %v", failure, err)
		}
	} else {
		failure = "no geo coordinates or address provided"
	}

	return domain.GeoResult{
		Geo:              domain.SentinelPoint(),
		FormattedAddress: in.FormattedAddress,
		Status:           false,
		Error:            failure,
	}
}

// GetStats reports the client's cache utilization.
func (c *Client) GetStats() (geocode, county cache.Stats) {
	return c.cache.GetStats(), c.countyCache.GetStats()
}

// CleanExpired sweeps expired entries from both caches.
func (c *Client) CleanExpired() int {
	return c.cache.CleanExpired() + c.countyCache.CleanExpired()
}

// Clear drops both caches; used during graceful shutdown.
func (c *Client) Clear() {
	c.cache.Clear()
	c.countyCache.Clear()
}

// execute runs one upstream request with the resilience stack composed in
// fixed order: retry innermost, then the circuit breaker, then single-flight
// deduplication outermost.
func (c *Client) execute(ctx context.Context, key, operation string, params url.Values) (*Result, error) {
	return resilience.Do(c.flight, key, func() (*Result, error) {
		v, err := c.breaker.Execute(func() (any, error) {
			return resilience.WithRetry(func() (any, error) {
				return c.doRequest(ctx, operation, params)
			}, domain.IsTimeout, 2)
		})
		c.observeBreakerState()
		if err != nil {
			c.metrics.UpstreamRequests.WithLabelValues(upstreamName, operation, "error").Inc()
			return nil, err
		}
		r := v.(*Result)
		if r == nil {
			c.metrics.UpstreamRequests.WithLabelValues(upstreamName, operation, "empty").Inc()
		} else {
			c.metrics.UpstreamRequests.WithLabelValues(upstreamName, operation, "success").Inc()
		}
		return r, nil
	})
}

func (c *Client) doRequest(ctx context.Context, operation string, params url.Values) (*Result, error) {
	start := time.Now()
	defer func() {
		c.metrics.UpstreamDuration.WithLabelValues(upstreamName, operation).Observe(time.Since(start).Seconds())
	}()

	params = cloneValues(params)
	params.Set("key", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.ClassifyTransportError(upstreamName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := domain.KindServerError
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = domain.KindClientRejection
		}
		return nil, domain.NewUpstreamError(upstreamName, kind, resp.StatusCode,
			fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	var apiResp apiResponse
	if err := gojson.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, resilience.ClassifyTransportError(upstreamName, fmt.Errorf("decode response: %w", err))
	}

	r, ok := parseFirstResult(apiResp)
	if !ok {
		// Zero or ambiguous results are "no result", not an exception.
		return nil, nil
	}
	return r, nil
}

func (c *Client) observeBreakerState() {
	stats := c.breaker.GetStats()
	var v float64
	switch stats.State {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	c.metrics.BreakerState.WithLabelValues(upstreamName).Set(v)
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
