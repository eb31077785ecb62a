package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/breaker"
)

// redirectCircuit is the breaker name shared by all short-link
// resolution calls.
const redirectCircuit = "redirect-resolve"

// Resolver implements urlnorm.RedirectResolver with a non-following
// HTTP client so each hop is observed individually.
type Resolver struct {
	client    *http.Client
	userAgent string
	breakers  *breaker.Registry
	logger    *zap.Logger
}

// NewResolver builds a Resolver with the given per-hop timeout.
func NewResolver(timeout time.Duration, userAgent string, breakers *breaker.Registry, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client: &http.Client{
			Timeout:   timeout,
			Transport: newHTTPTransport(),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
		breakers:  breakers,
		logger:    logger,
	}
}

// Resolve returns the Location header of rawURL's response, or "" when
// the URL does not redirect.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	circuit := r.breakers.Get(redirectCircuit)
	return breaker.Do(ctx, circuit, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
		if err != nil {
			return "", fmt.Errorf("build redirect probe: %w", err)
		}
		req.Header = browserHeaders(r.userAgent)

		resp, err := r.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("redirect probe %s: %w", rawURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			return resp.Header.Get("Location"), nil
		}
		return "", nil
	}, nil)
}
