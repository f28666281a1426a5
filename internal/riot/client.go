// Package riot implements the throttled, retrying client for the remote
// game-statistics service.
package riot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRetryBase     = time.Second
	defaultRetryMax      = 5 * time.Minute
	defaultRetryAfter    = time.Second
	maxResponseBodyBytes = 16 << 20
)

// Attempt describes one round trip to the remote service.
type Attempt struct {
	Path    string
	Status  int
	Latency time.Duration
	Attempt int
	Err     error
}

// Observer is notified after every attempt, including retried ones.
type Observer func(Attempt)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string

	// RequestsPerSecond bounds the call rate. Zero or less disables throttling.
	RequestsPerSecond float64

	// RetryBaseInterval is the first 5xx backoff; each later attempt doubles it
	// up to RetryMaxInterval.
	RetryBaseInterval time.Duration
	RetryMaxInterval  time.Duration

	HTTPClient *http.Client
	Observer   Observer
	Logger     *zap.Logger
}

// Client serializes calls to the remote service under a request quota.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryBase  time.Duration
	retryMax   time.Duration
	observer   Observer
	logger     *zap.SugaredLogger
}

// NewClient creates a client. Connections are pooled and reused.
func NewClient(cfg Config) *Client {
	if cfg.RetryBaseInterval <= 0 {
		cfg.RetryBaseInterval = defaultRetryBase
	}
	if cfg.RetryMaxInterval < cfg.RetryBaseInterval {
		cfg.RetryMaxInterval = defaultRetryMax
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		retryBase:  cfg.RetryBaseInterval,
		retryMax:   cfg.RetryMaxInterval,
		observer:   cfg.Observer,
		logger:     cfg.Logger.Sugar(),
	}
	if c.observer == nil {
		c.observer = c.logAttempt
	}
	return c
}

// Call issues a GET for path and returns the response body.
//
// A 404 returns ErrNotFound. A 429 waits for the server supplied Retry-After
// and repeats the call. A 5xx or transport failure repeats the call after an
// exponential backoff with no attempt limit; cancel ctx to give up. Any other
// non-2xx status returns a *StatusError wrapping ErrFatal.
func (c *Client) Call(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL, err := c.buildURL(path, params)
	if err != nil {
		return nil, err
	}

	bo := newBackOff(c.retryBase, c.retryMax)

	// lastTransient classifies a cancellation that interrupts a retry,
	// whichever wait or attempt it lands in.
	var lastTransient error
	cancelled := func(err error) error {
		if lastTransient != nil {
			return fmt.Errorf("%s: %w: %w", path, lastTransient, err)
		}
		return fmt.Errorf("%s: %w", path, err)
	}

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			return nil, fmt.Errorf("%s: quota wait: %w", path, err)
		}

		start := time.Now()
		status, body, header, err := c.do(ctx, reqURL)
		c.observer(Attempt{Path: path, Status: status, Latency: time.Since(start), Attempt: attempt, Err: err})

		var wait time.Duration
		var transient error
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			apiRetries.WithLabelValues("transport").Inc()
			wait, transient = nextBackOff(bo, c.retryMax), ErrServiceUnavailable
		case status >= 200 && status < 300:
			return body, nil
		case status == http.StatusNotFound:
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		case status == http.StatusTooManyRequests:
			apiRetries.WithLabelValues("rate_limited").Inc()
			wait, transient = retryAfter(header), ErrRateLimited
		case status >= 500:
			apiRetries.WithLabelValues("server_error").Inc()
			wait, transient = nextBackOff(bo, c.retryMax), ErrServiceUnavailable
		default:
			return nil, &StatusError{StatusCode: status, Path: path, Body: string(body)}
		}

		lastTransient = transient
		if err := sleep(ctx, wait); err != nil {
			return nil, cancelled(err)
		}
	}
}

func (c *Client) buildURL(path string, params url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, reqURL string) (int, []byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, resp.Header, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, resp.Header, nil
}

func (c *Client) logAttempt(a Attempt) {
	recordAttempt(a)
	if a.Err != nil {
		c.logger.Warnw("API attempt failed", "path", a.Path, "attempt", a.Attempt, "latency", a.Latency, "error", a.Err)
		return
	}
	c.logger.Debugw("API attempt", "path", a.Path, "status", a.Status, "attempt", a.Attempt, "latency", a.Latency)
}

func recordAttempt(a Attempt) {
	status := "error"
	if a.Err == nil {
		status = strconv.Itoa(a.Status)
	}
	apiRequests.WithLabelValues(status).Inc()
	apiRequestDuration.Observe(a.Latency.Seconds())
}

// newBackOff doubles from base up to ceiling without jitter.
func newBackOff(base, ceiling time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.MaxInterval = ceiling
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()
	return bo
}

func nextBackOff(bo *backoff.ExponentialBackOff, ceiling time.Duration) time.Duration {
	d := bo.NextBackOff()
	if d == backoff.Stop {
		d = ceiling
	}
	return d
}

// retryAfter reads the server supplied wait, in seconds or as an HTTP date.
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return defaultRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
