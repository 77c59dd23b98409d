// Package ratelimit spaces out verification requests per host so that many concurrent
// conversions do not flood the catalog server.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/joeychilson/cisurl/config"
	urlutil "github.com/joeychilson/cisurl/url"
)

const (
	cleanupInterval = 10 * time.Minute
	idleTimeout     = 30 * time.Minute
)

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("limiter is closed")

// Limiter manages rate limiting for multiple hosts.
type Limiter struct {
	config    config.RateLimitConfig
	mu        sync.Mutex
	hosts     map[string]*hostLimiter
	closed    bool
	stopCh    chan struct{}
	closeOnce sync.Once
}

// hostLimiter holds rate limiting state for a single host.
type hostLimiter struct {
	limiter    *rate.Limiter
	semaphore  chan struct{}
	mu         sync.Mutex
	retryAfter time.Time
	lastAccess time.Time
}

// New creates a new rate limiter with the given configuration.
func New(cfg config.RateLimitConfig) *Limiter {
	l := &Limiter{
		config: cfg,
		hosts:  make(map[string]*hostLimiter),
		stopCh: make(chan struct{}),
	}
	go l.cleanupInactiveHosts()
	return l
}

// Acquire blocks until a request to urlStr may start. The returned release func must be
// called once the request has finished.
func (l *Limiter) Acquire(ctx context.Context, urlStr string) (release func(), err error) {
	noop := func() {}

	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return noop, ErrClosed
	}

	if !l.config.IsEnabled() {
		return noop, nil
	}

	host, err := urlutil.ExtractHost(urlStr)
	if err != nil {
		return noop, fmt.Errorf("failed to extract host: %w", err)
	}

	hl := l.hostLimiter(host)
	if err := hl.wait(ctx); err != nil {
		return noop, err
	}

	var once sync.Once
	return func() { once.Do(hl.release) }, nil
}

// Observe records a Retry-After header from a response so later requests to the same
// host wait until the server is ready again.
func (l *Limiter) Observe(urlStr string, headers http.Header) {
	if !l.config.RespectRetryAfter || headers == nil {
		return
	}

	retryAfter := parseRetryAfter(headers.Get("Retry-After"))
	if retryAfter.IsZero() {
		return
	}

	host, err := urlutil.ExtractHost(urlStr)
	if err != nil {
		return
	}

	l.hostLimiter(host).setRetryAfter(retryAfter)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.stopCh)
	})
}

// hostLimiter retrieves or creates the limiter for host.
func (l *Limiter) hostLimiter(host string) *hostLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	hl, ok := l.hosts[host]
	if !ok {
		hl = newHostLimiter(l.config)
		l.hosts[host] = hl
	}
	return hl
}

func newHostLimiter(cfg config.RateLimitConfig) *hostLimiter {
	hl := &hostLimiter{
		lastAccess: time.Now(),
	}

	if delay := cfg.GetDelay(); delay > 0 {
		burst := cfg.Burst
		if burst == 0 {
			burst = 1
		}
		hl.limiter = rate.NewLimiter(rate.Every(delay), burst)
	}

	if cfg.MaxConcurrent > 0 {
		hl.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}

	return hl
}

// wait blocks until rate limiting allows the request.
func (hl *hostLimiter) wait(ctx context.Context) error {
	hl.mu.Lock()
	hl.lastAccess = time.Now()
	retryAfter := hl.retryAfter
	hl.mu.Unlock()

	if d := time.Until(retryAfter); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if hl.semaphore != nil {
		select {
		case hl.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if hl.limiter != nil {
		if err := hl.limiter.Wait(ctx); err != nil {
			hl.release()
			return err
		}
	}

	return nil
}

func (hl *hostLimiter) release() {
	if hl.semaphore == nil {
		return
	}
	select {
	case <-hl.semaphore:
	default:
	}
}

func (hl *hostLimiter) setRetryAfter(retryAfter time.Time) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if retryAfter.After(hl.retryAfter) {
		hl.retryAfter = retryAfter
	}
}

func (hl *hostLimiter) idleSince(now time.Time) time.Duration {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return now.Sub(hl.lastAccess)
}

// parseRetryAfter parses a Retry-After header value in seconds or HTTP-date form.
func parseRetryAfter(value string) time.Time {
	if value == "" {
		return time.Time{}
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Now().Add(time.Duration(seconds) * time.Second)
	}

	if t, err := http.ParseTime(value); err == nil {
		return t
	}

	return time.Time{}
}

// cleanupInactiveHosts periodically drops limiters for hosts that have not been used recently.
func (l *Limiter) cleanupInactiveHosts() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for host, hl := range l.hosts {
				if hl.idleSince(now) > idleTimeout {
					delete(l.hosts, host)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}
