// Package client converts catalog URLs. It offers the documentation fixer and both
// course converters: the strict, offline one and the one that confirms the course page
// exists on the catalog server first.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/joeychilson/cisurl/config"
	"github.com/joeychilson/cisurl/fetcher"
	"github.com/joeychilson/cisurl/logger"
	"github.com/joeychilson/cisurl/ratelimit"
	urlutil "github.com/joeychilson/cisurl/url"
)

// sectionsMarker must appear in the body of every real course page.
var sectionsMarker = []byte("<sections>")

// Mode selects how a course URL is converted.
type Mode string

const (
	// ModeStrict validates the URL shape offline and normalises its case.
	ModeStrict Mode = "strict"
	// ModeVerify accepts any explorer URL and fetches it to confirm it is a course.
	ModeVerify Mode = "verify"
)

// ParseMode returns the Mode named by s. An empty string selects ModeStrict.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModeVerify:
		return ModeVerify, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeStrict, ModeVerify)
	}
}

// Fetcher retrieves a page. *fetcher.Fetcher is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Result is a converted course URL.
type Result struct {
	URL    string          `json:"url"`
	Mode   Mode            `json:"mode"`
	Course *urlutil.Course `json:"course,omitempty"`
	// Set in ModeVerify from the fetched course page, when present.
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	Sections    int    `json:"sections,omitempty"`
}

// Client converts catalog URLs.
type Client struct {
	config  *config.Config
	fetcher Fetcher
	limiter *ratelimit.Limiter
	logger  logger.Logger
}

// New creates a new Client with the given configuration.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.New()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	f, err := fetcher.New(cfg.Fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	return &Client{
		config:  cfg,
		fetcher: f,
		limiter: ratelimit.New(cfg.RateLimit),
		logger:  logger.Noop(),
	}, nil
}

// NewFromFile creates a new Client by loading configuration from a YAML file.
func NewFromFile(path string) (*Client, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return New(cfg)
}

// WithFetcher replaces the fetcher used by ModeVerify.
func (c *Client) WithFetcher(f Fetcher) *Client {
	c.fetcher = f
	return c
}

// WithLogger sets the logger for the client.
func (c *Client) WithLogger(log logger.Logger) *Client {
	if log == nil {
		log = logger.Noop()
	}
	c.logger = log
	return c
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.limiter.Close()
	return nil
}

// Fix converts a CIS API documentation URL into a CIS explorer URL.
func (c *Client) Fix(rawURL string, addCascade bool) (string, error) {
	fixed, err := urlutil.FixDocumentationURL(rawURL, addCascade)
	if err != nil {
		c.logger.Debug("fix rejected", "url", rawURL, "kind", urlutil.KindOf(err))
		return "", err
	}

	c.logger.Debug("fix completed", "url", rawURL, "fixed", fixed, "cascade", addCascade)
	return fixed, nil
}

// Convert converts an explorer course URL into a search URL using the given mode.
func (c *Client) Convert(ctx context.Context, rawURL string, mode Mode) (*Result, error) {
	switch mode {
	case ModeStrict, "":
		return c.ConvertStrict(rawURL)
	case ModeVerify:
		return c.VerifyCourseURL(ctx, rawURL)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// ConvertStrict converts a course URL without network access.
func (c *Client) ConvertStrict(rawURL string) (*Result, error) {
	course, err := urlutil.ParseCourseURL(rawURL)
	if err != nil {
		c.logger.Debug("convert rejected", "url", rawURL, "mode", ModeStrict, "kind", urlutil.KindOf(err))
		return nil, err
	}

	result := &Result{
		URL:    course.SearchURL(),
		Mode:   ModeStrict,
		Course: course,
	}

	c.logger.Debug("convert completed", "url", rawURL, "mode", ModeStrict, "search_url", result.URL)
	return result, nil
}

// VerifyCourseURL fetches an explorer URL once and, if the page lists sections,
// converts it into a search URL. The explorer path is only checked loosely; the fetched
// page decides whether the URL is a course.
func (c *Client) VerifyCourseURL(ctx context.Context, rawURL string) (*Result, error) {
	if _, err := urlutil.Parse(rawURL); err != nil {
		return nil, err
	}

	if !urlutil.IsExplorerURL(rawURL) {
		return nil, urlutil.NewError(urlutil.KindNotExplorerURL, nil)
	}

	release, err := c.limiter.Acquire(ctx, rawURL)
	if err != nil {
		return nil, urlutil.NewError(urlutil.KindNetworkError, err)
	}
	defer release()

	c.logger.Debug("verifying course url", "url", rawURL)

	resp, err := c.fetcher.Fetch(ctx, rawURL)
	if resp != nil {
		c.limiter.Observe(rawURL, resp.Headers)
	}

	if isNotFound(resp, err) {
		c.logger.Info("course not found", "url", rawURL)
		return nil, urlutil.NewError(urlutil.KindCourseNotFound, nil)
	}
	if err != nil {
		c.logger.Warn("course verification failed", "url", rawURL, "error", err)
		return nil, urlutil.NewError(urlutil.KindNetworkError, err)
	}
	if resp == nil {
		return nil, urlutil.NewError(urlutil.KindNetworkError, errors.New("fetcher returned no response"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("course verification failed", "url", rawURL, "status_code", resp.StatusCode)
		return nil, urlutil.NewError(urlutil.KindNetworkError, &fetcher.StatusError{URL: rawURL, StatusCode: resp.StatusCode})
	}

	if !bytes.Contains(resp.Body, sectionsMarker) {
		c.logger.Info("course page has no sections", "url", rawURL, "status_code", resp.StatusCode)
		return nil, urlutil.NewError(urlutil.KindMissingSectionsMarker, nil)
	}

	searchURL, err := urlutil.ToSearchURL(rawURL)
	if err != nil {
		return nil, err
	}

	info := inspectCourse(resp.Body)
	result := &Result{
		URL:         searchURL,
		Mode:        ModeVerify,
		Label:       info.label,
		Description: info.description,
		Sections:    info.sections,
	}
	if course, err := urlutil.ParseCourseURL(rawURL); err == nil {
		result.Course = course
	}

	c.logger.Debug("convert completed", "url", rawURL, "mode", ModeVerify, "search_url", searchURL, "sections", info.sections)
	return result, nil
}

// isNotFound reports whether a fetch ended in HTTP 404, either as a status error or as
// a plain response.
func isNotFound(resp *fetcher.Response, err error) bool {
	var statusErr *fetcher.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusNotFound
	}
	return resp != nil && resp.StatusCode == http.StatusNotFound
}
