// Package scraper handles fetching and parsing product pages from source sites.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/time/rate"

	"pricewatch/pkg/tracker"
)

// Adapter parses one source site's product pages. New sites are added by
// registering another adapter, keyed by host.
type Adapter interface {
	// Host is the exact URL host the adapter handles.
	Host() string
	// Parse extracts a price sample from a fetched document.
	Parse(doc *goquery.Document, pageURL string) (tracker.PriceSample, error)
}

// Client fetches product pages and dispatches them to the matching adapter.
type Client struct {
	client   *http.Client
	logger   *slog.Logger
	adapters map[string]Adapter
	limiters map[string]*rate.Limiter
}

// New creates a scrape client. minGap is the minimum spacing between requests
// to the same host; source sites rate-limit aggressively.
func New(client *http.Client, logger *slog.Logger, minGap time.Duration, adapters ...Adapter) *Client {
	c := &Client{
		client:   client,
		logger:   logger,
		adapters: make(map[string]Adapter, len(adapters)),
		limiters: make(map[string]*rate.Limiter, len(adapters)),
	}
	for _, a := range adapters {
		c.adapters[a.Host()] = a
		c.limiters[a.Host()] = rate.NewLimiter(rate.Every(minGap), 1)
	}
	return c
}

// Supports reports whether any registered adapter handles the link's host.
func (c *Client) Supports(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	_, ok := c.adapters[u.Hostname()]
	return ok
}

// Sample fetches one product page and returns its price sample. All failures
// are per-source: the caller excludes the sample and carries on.
func (c *Client) Sample(ctx context.Context, link string) (tracker.PriceSample, error) {
	u, err := url.Parse(link)
	if err != nil {
		return tracker.PriceSample{}, &ConnectionError{URL: link, Err: err}
	}

	adapter, ok := c.adapters[u.Hostname()]
	if !ok {
		return tracker.PriceSample{}, &HostMismatchError{URL: link, Host: u.Hostname()}
	}

	if limiter := c.limiters[u.Hostname()]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return tracker.PriceSample{}, &ConnectionError{URL: link, Err: err}
		}
	}

	var sample tracker.PriceSample

	err = retry.Do(
		func() error {
			c.logger.Info("HTTP request starting",
				"method", "GET",
				"url", link,
				"purpose", "fetch_product_page")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			setBrowserHeaders(req)

			startTime := time.Now()
			resp, err := c.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				c.logger.Warn("HTTP request failed, will retry",
					"url", link,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			c.logger.Info("HTTP request completed",
				"url", link,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"content_length", resp.ContentLength)

			if resp.StatusCode != http.StatusOK {
				httpErr := &HTTPError{URL: link, Code: resp.StatusCode}
				// Client errors won't heal on retry; server errors might.
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return retry.Unrecoverable(httpErr)
				}
				return httpErr
			}

			doc, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			sample, err = adapter.Parse(doc, link)
			if err != nil {
				c.logger.Warn("Failed to parse product page", "url", link, "error", err)
				return retry.Unrecoverable(err)
			}

			c.logger.Info("Product page parsed",
				"url", link,
				"price", sample.Price,
				"available", sample.Available)

			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying fetch after error", "attempt", n, "url", link, "error", err)
		}),
	)
	if err != nil {
		return tracker.PriceSample{}, classifyFetchError(link, err)
	}

	sample.CapturedAt = time.Now()
	sample.SourceLink = link
	return sample, nil
}

// classifyFetchError keeps typed errors as-is and folds everything else
// (dial failures, timeouts, body reads) into ConnectionError.
func classifyFetchError(link string, err error) error {
	var httpErr *HTTPError
	var parseErr *ParseError
	if errors.As(err, &httpErr) || errors.As(err, &parseErr) {
		return err
	}
	return &ConnectionError{URL: link, Err: err}
}

func setBrowserHeaders(req *http.Request) {
	// Essential browser-like headers to avoid getting blocked
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Cache-Control", "max-age=0")
}
