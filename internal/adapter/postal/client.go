// Package postal wraps the postal-standardization authority: bearer-token
// acquisition, address lookup, and the ZIP-only retry fallback on validation
// rejection.
package postal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/address-correction-service/internal/domain"
	"github.com/couchcryptid/address-correction-service/internal/observability"
	"github.com/couchcryptid/address-correction-service/internal/resilience"
)

const upstreamName = "postal"

// Config carries the postal upstream settings.
type Config struct {
	BaseURL      string // address-lookup endpoint
	TokenURL     string // client-credentials token endpoint
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client standardizes street addresses against the postal authority.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     *observability.Metrics
	corrections *domain.Corrections
	tokens      *TokenManager
	flight      *resilience.Group
	breaker     *resilience.Breaker
}

// NewClient creates a postal standardization client. The deduplicator and
// breaker are shared with the token manager so postal-API health is tracked
// in one place.
func NewClient(cfg Config, corrections *domain.Corrections, tokens *TokenManager, flight *resilience.Group, breaker *resilience.Breaker, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		metrics:     metrics,
		corrections: corrections,
		tokens:      tokens,
		flight:      flight,
		breaker:     breaker,
	}
}

// apiResponse is the authority's success shape.
type apiResponse struct {
	Address apiAddress `json:"address"`
}

type apiAddress struct {
	StreetAddress             string `json:"streetAddress"`
	StreetAddressAbbreviation string `json:"streetAddressAbbreviation"`
	City                      string `json:"city"`
	State                     string `json:"state"`
	ZIPCode                   string `json:"ZIPCode"`
}

// CorrectAddress standardizes the given address. It never returns an error:
// every failure mode is a well-formed AddressResult with Status=false and a
// diagnostic Error.
func (c *Client) CorrectAddress(ctx context.Context, in domain.AddressInput) domain.AddressResult {
	// The unformatted snapshot freezes the raw input before any correction.
	unformatted := domain.JoinNonEmpty(", ", in.StreetAddress, in.City, in.State, in.ZipCode)

	pre, _ := c.corrections.PreprocessAddress(in)

	if pre.StreetAddress == "" || (pre.City == "" && pre.ZipCode == "") {
		return domain.AddressResult{
			Location: suppliedLocation(pre, unformatted),
			Status:   false,
			Error:    "missing required fields for address standardization: need a street address and a city or ZIP code",
		}
	}

	token, ok := c.tokens.GetToken(ctx)
	if !ok {
		return domain.AddressResult{
			Location: suppliedLocation(pre, unformatted),
			Status:   false,
			Error:    "could not retrieve token for address standardization",
		}
	}

	addr, err := c.lookup(ctx, token, pre)
	if err != nil && domain.ShouldRetryWithoutCity(err, pre.City != "", pre.ZipCode != "") {
		// A mismatched city name should not block standardization when the
		// ZIP alone is sufficient for the postal lookup.
		retryInput := pre
		retryInput.City = ""
		c.logger.Info("retrying postal lookup without city",
			"street_address", pre.StreetAddress, "zip_code", pre.ZipCode)
		addr, err = c.lookup(ctx, token, retryInput)
	}
	if err != nil {
		return domain.AddressResult{
			Location: suppliedLocation(pre, unformatted),
			Status:   false,
			Error:    fmt.Sprintf("address standardization failed: %v", err),
		}
	}

	street := addr.StreetAddressAbbreviation
	if street == "" {
		street = addr.StreetAddress
	}
	formatted := domain.JoinNonEmpty(", ",
		titleCase(street),
		titleCase(addr.City),
		domain.JoinNonEmpty(" ", addr.State, addr.ZIPCode),
	)

	return domain.AddressResult{
		Location: domain.Location{
			StreetAddress:      titleCase(addr.StreetAddress),
			City:               titleCase(addr.City),
			State:              addr.State,
			ZipCode:            addr.ZIPCode,
			FormattedAddress:   formatted,
			UnformattedAddress: unformatted,
		},
		Status: true,
	}
}

// lookup executes one address query under deduplication (keyed by the exact
// field tuple) and the postal circuit breaker, with one transparent retry on
// transient transport failures.
func (c *Client) lookup(ctx context.Context, token string, in domain.AddressInput) (apiAddress, error) {
	key := strings.Join([]string{"postal:lookup", in.StreetAddress, in.City, in.State, in.ZipCode}, "|")

	return resilience.Do(c.flight, key, func() (apiAddress, error) {
		v, err := c.breaker.Execute(func() (any, error) {
			return resilience.WithRetry(func() (any, error) {
				return c.doRequest(ctx, token, in)
			}, domain.IsTimeout, 2)
		})
		c.observeBreakerState()
		if err != nil {
			c.metrics.UpstreamRequests.WithLabelValues(upstreamName, "lookup", "error").Inc()
			return apiAddress{}, err
		}
		c.metrics.UpstreamRequests.WithLabelValues(upstreamName, "lookup", "success").Inc()
		return v.(apiAddress), nil
	})
}

func (c *Client) doRequest(ctx context.Context, token string, in domain.AddressInput) (apiAddress, error) {
	start := time.Now()
	defer func() {
		c.metrics.UpstreamDuration.WithLabelValues(upstreamName, "lookup").Observe(time.Since(start).Seconds())
	}()

	params := url.Values{"streetAddress": {in.StreetAddress}, "state": {in.State}}
	if in.City != "" {
		params.Set("city", in.City)
	}
	if in.ZipCode != "" {
		params.Set("ZIPCode", in.ZipCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return apiAddress{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiAddress{}, resilience.ClassifyTransportError(upstreamName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := domain.KindServerError
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = domain.KindClientRejection
		}
		return apiAddress{}, domain.NewUpstreamError(upstreamName, kind, resp.StatusCode,
			fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	var apiResp apiResponse
	if err := gojson.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return apiAddress{}, resilience.ClassifyTransportError(upstreamName, fmt.Errorf("decode response: %w", err))
	}
	if apiResp.Address == (apiAddress{}) {
		return apiAddress{}, domain.NewUpstreamError(upstreamName, domain.KindNoResult, 0,
			fmt.Errorf("response contained no address"))
	}
	return apiResp.Address, nil
}

// suppliedLocation builds the failure-shape location: whatever fields were
// supplied, title-cased, with empty fields stripped by omitempty.
func suppliedLocation(in domain.AddressInput, unformatted string) domain.Location {
	return domain.Location{
		StreetAddress:      titleCase(in.StreetAddress),
		City:               titleCase(in.City),
		State:              in.State,
		ZipCode:            in.ZipCode,
		UnformattedAddress: unformatted,
	}
}

// titleCase lowercases the whole string and capitalizes the first letter of
// each word, so presentation is consistent regardless of source casing.
func titleCase(s string) string {
	if s == "" {
		return ""
	}
	return cases.Title(language.AmericanEnglish).String(strings.ToLower(s))
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
