package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/joanabot/joana-weather/internal/weather"
)

// BackoffConfig controls exponential backoff between same-provider retries.
// MaxRetries of 0 means a single attempt; the resolver's fallback to the
// next provider is the primary recovery path.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
	errMissingAPIKey = errors.New("api key is not configured")
)

// statusError carries the HTTP status of a non-2xx response.
type statusError struct {
	Code int
	Err  error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", e.Err, e.Code)
}

func (e *statusError) Unwrap() error {
	return e.Err
}

func newStatusError(code int) *statusError {
	switch {
	case code == http.StatusNotFound:
		return &statusError{Code: code, Err: weather.ErrCityNotFound}
	case code == http.StatusTooManyRequests:
		return &statusError{Code: code, Err: errRateLimited}
	case code >= 500:
		return &statusError{Code: code, Err: errServerError}
	default:
		return &statusError{Code: code, Err: errUnexpected}
	}
}

// retryable reports whether another attempt against the same provider
// could succeed. Client errors other than 429 are final.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// Default backoff bounds for WithRetries.
const (
	DefaultRetryInterval    = 500 * time.Millisecond
	DefaultMaxRetryInterval = 5 * time.Second
)

// Option tunes a provider. The zero set of options targets the public API
// with a single attempt per call.
type Option func(*settings)

type settings struct {
	baseURL string
	lang    string
	backoff BackoffConfig
}

// WithBaseURL points the provider at another host, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(s *settings) {
		s.baseURL = u
	}
}

// WithLang sets the description language sent to the provider.
func WithLang(lang string) Option {
	return func(s *settings) {
		s.lang = lang
	}
}

// WithRetries enables bounded same-provider retries with exponential backoff.
func WithRetries(maxRetries int, initial, maxInterval time.Duration) Option {
	return func(s *settings) {
		s.backoff = BackoffConfig{
			MaxRetries:      maxRetries,
			InitialInterval: initial,
			MaxInterval:     maxInterval,
		}
	}
}

func newSettings(baseURL string, opts []Option) settings {
	s := settings{
		baseURL: baseURL,
		lang:    "pt",
		backoff: BackoffConfig{
			InitialInterval: DefaultRetryInterval,
			MaxInterval:     DefaultMaxRetryInterval,
		},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// getRequest returns a builder for GET base+path?values.
func getRequest(base, path string, values url.Values) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		u := fmt.Sprintf("%s%s?%s", base, path, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}
}

// doRequestWithResilience executes the HTTP request with optional retries,
// exponential backoff, and a circuit breaker. Non-2xx responses are closed
// and returned as *statusError.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			// Only rate limiting and server errors count against the breaker.
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, newStatusError(resp.StatusCode)
			}
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, newStatusError(resp.StatusCode)
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		if attempt >= cfg.Backoff.MaxRetries || !retryable(err) || ctx.Err() != nil {
			return nil, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// getJSON performs a resilient GET and decodes the body into out.
func getJSON(ctx context.Context, cfg HTTPClientConfig, cb *gobreaker.CircuitBreaker, build func() (*http.Request, error), out any) error {
	resp, err := doRequestWithResilience(ctx, cfg, cb, build)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", weather.ErrMalformedResponse, err)
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// providerErr wraps err as a *weather.ProviderError, keeping the HTTP
// status when one was received.
func providerErr(src weather.Source, op string, err error) error {
	pe := &weather.ProviderError{Provider: src, Op: op, Err: err}
	var se *statusError
	if errors.As(err, &se) {
		pe.StatusCode = se.Code
	}
	return pe
}

func msToKph(v float64) float64  { return v * 3.6 }
func mphToKph(v float64) float64 { return v * 1.609344 }

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
