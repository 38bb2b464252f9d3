package postal

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/couchcryptid/address-correction-service/internal/observability"
	"github.com/couchcryptid/address-correction-service/internal/resilience"
)

// tokenFlightKey is constant so at most one token request is ever in flight
// regardless of how many concurrent pipeline invocations need a token.
const tokenFlightKey = "postal:token"

// tokenRefreshSkew refreshes tokens this long before their recorded expiry.
const tokenRefreshSkew = 60 * time.Second

// TokenManager owns the cached postal API bearer token. It replaces any
// module-global token state: one instance per process, injected into the
// postal client.
type TokenManager struct {
	cc         clientcredentials.Config
	httpClient *http.Client
	clock      clockwork.Clock
	flight     *resilience.Group
	breaker    *resilience.Breaker
	metrics    *observability.Metrics
	logger     *slog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewTokenManager creates a token manager performing client-credentials
// exchanges against the postal token endpoint, deduplicated and protected by
// the postal circuit breaker.
func NewTokenManager(cfg Config, flight *resilience.Group, breaker *resilience.Breaker, metrics *observability.Metrics, logger *slog.Logger, clock clockwork.Clock) *TokenManager {
	return &TokenManager{
		cc: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		clock:      clock,
		flight:     flight,
		breaker:    breaker,
		metrics:    metrics,
		logger:     logger,
	}
}

// GetToken returns a valid bearer token, acquiring one if the cache is empty
// or within the refresh skew of expiry. The second return is false when no
// token could be acquired; callers must treat that as "standardization
// unavailable", not as a hard error.
func (m *TokenManager) GetToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	if m.token != nil && m.clock.Now().Before(m.token.Expiry.Add(-tokenRefreshSkew)) {
		token := m.token.AccessToken
		m.mu.Unlock()
		return token, true
	}
	m.mu.Unlock()

	tok, err := resilience.Do(m.flight, tokenFlightKey, func() (*oauth2.Token, error) {
		v, err := m.breaker.Execute(func() (any, error) {
			return m.cc.Token(context.WithValue(ctx, oauth2.HTTPClient, m.httpClient))
		})
		if err != nil {
			return nil, err
		}
		return v.(*oauth2.Token), nil
	})
	if err != nil {
		m.metrics.TokenRefreshes.WithLabelValues("error").Inc()
		m.logger.Warn("postal token acquisition failed", "error", err)
		return "", false
	}

	m.metrics.TokenRefreshes.WithLabelValues("success").Inc()
	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()
	return tok.AccessToken, true
}

// Invalidate drops the cached token, forcing the next GetToken to refresh.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}
