// Package fetcher performs the single outbound GET used to confirm that a course page
// exists before its URL is converted.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/joeychilson/cisurl/config"
	urlutil "github.com/joeychilson/cisurl/url"
)

// Response represents the fetched page.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// StatusError is returned together with the Response when the server answers with a
// non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Fetcher fetches pages using the provided configuration.
type Fetcher struct {
	config config.FetchConfig
	client *http.Client
}

// ssrfProtectedTransport wraps a RoundTripper with SSRF protection.
type ssrfProtectedTransport struct {
	base http.RoundTripper
}

// RoundTrip validates that the destination IP is not private/internal before making the request.
func (t *ssrfProtectedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := urlutil.ValidateNotPrivate(req.URL.Host); err != nil {
		return nil, err
	}

	return t.base.RoundTrip(req)
}

// New creates a new Fetcher with the given configuration.
func New(cfg config.FetchConfig) (*Fetcher, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0")
	}

	maxRedirects := cfg.GetMaxRedirects()

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.EnableSSRFProtection {
		transport = &ssrfProtectedTransport{
			base: http.DefaultTransport,
		}
	}

	client := &http.Client{
		Timeout:   cfg.GetTimeout(),
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if maxRedirects == 0 {
				return http.ErrUseLastResponse
			}
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Fetcher{
		config: cfg,
		client: client,
	}, nil
}

// Fetch issues one GET for urlStr. Transport failures return a nil Response. A non-2xx
// status returns the Response along with a *StatusError. Nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range f.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	maxBodySize := f.config.GetMaxBodySize()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > maxBodySize {
		return nil, fmt.Errorf("response body exceeds maximum size of %d bytes", maxBodySize)
	}

	result := &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	if !f.isSuccessfulResponse(resp.StatusCode) {
		return result, &StatusError{URL: urlStr, StatusCode: resp.StatusCode}
	}

	return result, nil
}

// isSuccessfulResponse determines if a status code represents a successful fetch.
func (f *Fetcher) isSuccessfulResponse(statusCode int) bool {
	if statusCode >= 200 && statusCode < 300 {
		return true
	}

	if statusCode >= 300 && statusCode < 400 && f.config.GetMaxRedirects() == 0 {
		return true
	}

	return false
}
