package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/neox5/ghexporter/internal/clock"
	"github.com/neox5/ghexporter/internal/ratelimit"
)

const (
	// DefaultBaseURL is the base URL of the public GitHub API.
	DefaultBaseURL = "https://api.github.com"
	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 10 * time.Second

	githubAPIVersion = "2022-11-28"
	maxResponseBytes = 8 << 20
)

// Config holds configuration for creating a Client.
type Config struct {
	BaseURL    string
	Token      string
	UserAgent  string
	Timeout    time.Duration
	Retry      RetryPolicy
	HTTPClient *http.Client
	Budget     *ratelimit.Tracker
	Clock      clock.Clock
	Logger     *slog.Logger
	Metrics    *Metrics
}

// Client issues budgeted, classified GET requests against the REST API.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	timeout    time.Duration
	retry      RetryPolicy
	httpClient *http.Client
	budget     *ratelimit.Tracker
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *Metrics

	expiryWarned sync.Once
}

// NewClient creates a client, applying defaults for unset fields.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "https://") && !strings.HasPrefix(baseURL, "http://") {
		return nil, fmt.Errorf("github base url %q must be http(s)", cfg.BaseURL)
	}

	c := &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		retry:      cfg.Retry,
		httpClient: cfg.HTTPClient,
		budget:     cfg.Budget,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if c.userAgent == "" {
		c.userAgent = "ghexporter"
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retry.Attempts == 0 {
		c.retry = DefaultRetryPolicy
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.budget == nil {
		c.budget = ratelimit.New(c.clock)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// validator is implemented by response shapes that reject payloads
// missing required fields.
type validator interface {
	validate() error
}

// get performs a GET against path, retrying transient failures, and
// decodes the JSON body into v. Returns the final response headers.
func (c *Client) get(ctx context.Context, path string, v any) (http.Header, error) {
	var header http.Header
	err := c.retry.do(ctx, c.clock, func() error {
		h, err := c.getOnce(ctx, path, v)
		header = h
		return err
	})
	return header, err
}

func (c *Client) getOnce(ctx context.Context, path string, v any) (http.Header, error) {
	if _, err := c.budget.Reserve(1); err != nil {
		c.metrics.request("budget_exhausted")
		c.metrics.rateLimited()
		fe := &FetchError{Kind: ErrRateLimited, Err: err}
		var be *ratelimit.BudgetError
		if errors.As(err, &be) {
			fe.ResetAt = be.ResetAt
		}
		return nil, fe
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("querying github api", "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, path, err)
	}
	defer resp.Body.Close()

	c.budget.RecordHeaders(resp.Header)
	c.checkTokenExpiration(resp.Header)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.transportError(ctx, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		fe := classifyResponse(resp, body, c.clock.Now())
		c.metrics.request(ClassName(fe))
		if fe.Kind == ErrRateLimited {
			c.metrics.rateLimited()
			// Secondary limits carry no budget headers; stop every
			// fetcher until the server's retry instant.
			c.budget.Record(0, fe.ResetAt)
			c.logger.Warn("rate limited by github", "path", path, "retry_at", fe.ResetAt)
		} else {
			c.logger.Debug("github error response", "path", path, "status", resp.StatusCode, "message", fe.Err)
		}
		return nil, fe
	}

	if v != nil {
		if err := decode(body, v); err != nil {
			c.metrics.request("transient")
			return nil, &FetchError{Kind: ErrTransient, Err: fmt.Errorf("%s: %w", path, err)}
		}
	}
	c.metrics.request("ok")
	return resp.Header, nil
}

// transportError classifies a failed round trip. Cancellation of the
// parent context is passed through unclassified so it is never retried.
func (c *Client) transportError(ctx context.Context, path string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.metrics.request("transient")
	return &FetchError{Kind: ErrTransient, Err: fmt.Errorf("GET %s: %w", path, err)}
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unexpected response shape: %w", err)
	}
	if val, ok := v.(validator); ok {
		if err := val.validate(); err != nil {
			return fmt.Errorf("unexpected response shape: %w", err)
		}
	}
	return nil
}

// checkTokenExpiration warns once when the token expires within ten days.
func (c *Client) checkTokenExpiration(header http.Header) {
	expiration := header.Get("Github-Authentication-Token-Expiration")
	if expiration == "" {
		return
	}
	expires, err := time.Parse("2006-01-02 15:04:05 -0700", expiration)
	if err != nil {
		return
	}
	if left := expires.Sub(c.clock.Now()); left < 10*24*time.Hour {
		c.expiryWarned.Do(func() {
			c.logger.Warn("github token expires soon",
				slog.Time("expires", expires),
				slog.Int("days_left", int(left.Hours()/24)))
		})
	}
}
