package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v2"
)

const (
	DefaultUserAgent = "cisurl/1.0 (course catalog url converter; +https://github.com/joeychilson/cisurl)"
	DefaultAddr      = ":8080"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Config is the top-level configuration for the converter service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Fetch     FetchConfig     `yaml:"fetch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// New returns a new Config with sensible defaults.
func New() *Config {
	return &Config{
		Fetch: FetchConfig{
			FollowRedirects: true,
		},
	}
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr      string               `yaml:"addr,omitempty"`
	RedisURL  string               `yaml:"redis_url,omitempty" validate:"omitempty,url"`
	RateLimit ServerRateLimitConfig `yaml:"rate_limit"`
}

// GetAddr returns the listen address with a default of :8080
func (s *ServerConfig) GetAddr() string {
	if s.Addr != "" {
		return s.Addr
	}
	return DefaultAddr
}

// ServerRateLimitConfig limits inbound API requests per client IP.
type ServerRateLimitConfig struct {
	Requests int           `yaml:"requests,omitempty" validate:"gte=0"`
	Window   time.Duration `yaml:"window,omitempty" validate:"gte=0"`
}

// GetRequests returns the requests allowed per window with a default of 100
func (r *ServerRateLimitConfig) GetRequests() int {
	if r.Requests > 0 {
		return r.Requests
	}
	return 100
}

// GetWindow returns the rate limit window with a default of one minute
func (r *ServerRateLimitConfig) GetWindow() time.Duration {
	if r.Window > 0 {
		return r.Window
	}
	return time.Minute
}

// FetchConfig defines how course pages are requested during verification.
type FetchConfig struct {
	Timeout              time.Duration     `yaml:"timeout,omitempty" validate:"gte=0"`
	UserAgent            string            `yaml:"user_agent,omitempty"`
	Headers              map[string]string `yaml:"headers,omitempty"`
	MaxBodySize          int64             `yaml:"max_body_size,omitempty" validate:"gte=0"`
	FollowRedirects      bool              `yaml:"follow_redirects,omitempty"`
	MaxRedirects         int               `yaml:"max_redirects,omitempty" validate:"gte=0"`
	EnableSSRFProtection bool              `yaml:"enable_ssrf_protection,omitempty"`
}

// GetTimeout returns the request timeout with a default of 30 seconds
func (f *FetchConfig) GetTimeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return 30 * time.Second
}

// GetHeaders returns the headers to use for a request
func (f *FetchConfig) GetHeaders() map[string]string {
	headers := make(map[string]string)
	if f.UserAgent != "" {
		headers["User-Agent"] = f.UserAgent
	} else {
		headers["User-Agent"] = DefaultUserAgent
	}
	maps.Copy(headers, f.Headers)
	return headers
}

// GetMaxBodySize returns the response size limit with a default of 10MB
func (f *FetchConfig) GetMaxBodySize() int64 {
	if f.MaxBodySize > 0 {
		return f.MaxBodySize
	}
	return 10 * 1024 * 1024
}

// GetMaxRedirects returns the max number of redirects with a default of 10
func (f *FetchConfig) GetMaxRedirects() int {
	if f.MaxRedirects > 0 {
		return f.MaxRedirects
	}
	if !f.FollowRedirects {
		return 0
	}
	return 10
}

// RateLimitConfig keeps verification requests polite to the catalog host.
type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty" validate:"gte=0"`
	Burst             int           `yaml:"burst,omitempty" validate:"gte=0"`
	Delay             time.Duration `yaml:"delay,omitempty" validate:"gte=0"`
	MaxConcurrent     int           `yaml:"max_concurrent,omitempty" validate:"gte=0"`
	RespectRetryAfter bool          `yaml:"respect_retry_after,omitempty"`
}

// GetDelay returns the minimum delay between requests based on rate limits
func (r *RateLimitConfig) GetDelay() time.Duration {
	if r.Delay > 0 {
		return r.Delay
	}
	if r.RequestsPerSecond > 0 {
		return time.Duration(float64(time.Second) / r.RequestsPerSecond)
	}
	return 0
}

// IsEnabled returns true if any rate limiting is configured
func (r *RateLimitConfig) IsEnabled() bool {
	return r.RequestsPerSecond > 0 || r.Delay > 0 || r.MaxConcurrent > 0 || r.RespectRetryAfter
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=json text"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults from New.
func Parse(data []byte) (*Config, error) {
	cfg := New()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors and conflicts
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s: failed '%s' validation (got %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return err
	}

	rl := c.RateLimit
	if rl.Delay > 0 && rl.RequestsPerSecond > 0 {
		return fmt.Errorf("rate_limit: cannot specify both 'delay' and 'requests_per_second'")
	}
	if rl.Burst > 0 && rl.RequestsPerSecond == 0 && rl.Delay == 0 {
		return fmt.Errorf("rate_limit: 'burst' requires either 'requests_per_second' or 'delay'")
	}

	if c.Fetch.MaxRedirects > 0 && !c.Fetch.FollowRedirects {
		return fmt.Errorf("fetch: 'max_redirects' requires 'follow_redirects'")
	}

	return nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
