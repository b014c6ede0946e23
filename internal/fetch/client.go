// Package fetch implements the page retrieval client using gocolly.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Retry     RetryPolicy
}

// Client implements books.Fetcher using the Colly collector.
// Transport-level failures are retried internally per the configured
// policy; HTTP status errors propagate to the caller immediately.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(newHTTPTransport())

	return &Client{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch retrieves the full response body for url, retrying transport
// failures with exponential backoff. The last error surfaces once the
// attempt budget is exhausted.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !c.cfg.Retry.ShouldRetry(err, attempt) {
			return nil, lastErr
		}
		delay := c.cfg.Retry.Backoff(attempt)
		c.logger.Warn("transient fetch failure, backing off",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	collector := c.baseCollector.Clone()

	var (
		body   []byte
		status int
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
	case err := <-done:
		if err != nil {
			if status >= http.StatusBadRequest {
				return nil, &StatusError{URL: url, StatusCode: status}
			}
			return nil, &TransportError{URL: url, Err: err}
		}
		return body, nil
	}
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
