// Package fetch implements the resilient outbound retrieval layer:
// a Colly-backed HTTP client wrapped with per-host circuit breakers,
// retry with exponential backoff and per-domain rate limiting.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/breaker"
	"github.com/arview/product-crawler/internal/metrics"
	"github.com/arview/product-crawler/internal/product"
)

// Config controls client behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Limiter     LimiterConfig
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	return c
}

// Client implements product.Fetcher using the Colly collector.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	retry         *RetryPolicy
	limiter       *Limiter
	breakers      *breaker.Registry
	logger        *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg Config, breakers *breaker.Registry, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Client{
		cfg:           cfg,
		baseCollector: c,
		retry:         NewRetryPolicy(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffMax),
		limiter:       NewLimiter(cfg.Limiter),
		breakers:      breakers,
		logger:        logger,
	}
}

// Fetch retrieves rawURL with retries, rate limiting and circuit
// protection. Returned errors are always classified.
func (c *Client) Fetch(ctx context.Context, rawURL string) (product.Page, error) {
	host := hostOf(rawURL)
	circuit := c.breakers.Get("fetch:" + host)

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts(); attempt++ {
		if err := c.limiter.Wait(ctx, rawURL); err != nil {
			return product.Page{}, product.ClassifyErr(err, rawURL)
		}

		start := time.Now()
		page, err := breaker.Do(ctx, circuit, func(ctx context.Context) (product.Page, error) {
			return c.fetchOnce(ctx, rawURL)
		}, nil)
		if err == nil {
			if statusErr := product.ClassifyStatus(page.StatusCode, rawURL); statusErr != nil {
				// The upstream answered; the circuit stays healthy but
				// the caller still gets a classified failure.
				lastErr = statusErr
				metrics.ObserveFetch(outcomeFor(statusErr), time.Since(start))
				if c.retry.ShouldRetry(statusErr, attempt) {
					c.logRetry(rawURL, attempt, statusErr)
					if serr := c.retry.Sleep(ctx, attempt); serr != nil {
						return product.Page{}, product.ClassifyErr(serr, rawURL)
					}
					continue
				}
				return product.Page{}, statusErr
			}
			metrics.ObserveFetch("ok", time.Since(start))
			return page, nil
		}

		lastErr = product.ClassifyErr(err, rawURL)
		metrics.ObserveFetch(outcomeFor(lastErr), time.Since(start))
		if !c.retry.ShouldRetry(lastErr, attempt) {
			return product.Page{}, lastErr
		}
		c.logRetry(rawURL, attempt, lastErr)
		if serr := c.retry.Sleep(ctx, attempt); serr != nil {
			return product.Page{}, product.ClassifyErr(serr, rawURL)
		}
	}
	return product.Page{}, lastErr
}

func (c *Client) logRetry(rawURL string, attempt int, err error) {
	c.logger.Warn("fetch retry",
		zap.String("url", rawURL),
		zap.Int("attempt", attempt+1),
		zap.Error(err),
	)
}

// fetchOnce executes a single GET through a cloned collector. Transport
// failures and 5xx responses surface as errors (and count against the
// circuit); other statuses return as pages for classification upstream.
func (c *Client) fetchOnce(ctx context.Context, rawURL string) (product.Page, error) {
	collector := c.baseCollector.Clone()
	collector.UserAgent = c.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(c.cfg.Timeout)

	var (
		page     product.Page
		fetchErr error
	)
	start := time.Now()

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range browserHeaders(c.cfg.UserAgent) {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		page = pageFromResponse(rawURL, r, start)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 && r.StatusCode < http.StatusInternalServerError {
			// Upstream spoke; keep the page so the status can be
			// classified without tripping the circuit.
			page = pageFromResponse(rawURL, r, start)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		// The in-flight visit is abandoned, not interrupted.
		return product.Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return product.Page{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
		if page.StatusCode == 0 {
			if err != nil {
				return product.Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
			}
			return product.Page{}, fmt.Errorf("fetch %s: no response received", rawURL)
		}
		return page, nil
	}
}

func pageFromResponse(rawURL string, r *colly.Response, start time.Time) product.Page {
	finalURL := rawURL
	if r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}
	var headers http.Header
	if r.Headers != nil {
		headers = r.Headers.Clone()
	}
	return product.Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(start),
	}
}

func outcomeFor(err error) string {
	switch product.KindOf(err) {
	case product.KindRateLimited:
		return "rate_limited"
	case product.KindForbidden, product.KindUnauthorized:
		return "forbidden"
	case product.KindTimeout:
		return "timeout"
	case product.KindServiceUnavailable:
		return "circuit_open"
	default:
		return "error"
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
