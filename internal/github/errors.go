package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Failure classes of a fetch. A *FetchError wraps exactly one of them.
var (
	// ErrNotFound means the target was renamed or deleted. Permanent
	// until the next scheduled cycle.
	ErrNotFound = errors.New("github resource not found")
	// ErrRateLimited covers server-side rate limiting and local budget
	// exhaustion alike.
	ErrRateLimited = errors.New("github rate limit exhausted")
	// ErrTransient covers 5xx responses, timeouts, connection failures
	// and payloads of an unexpected shape.
	ErrTransient = errors.New("transient github failure")
	// ErrAuth is a credential problem that affects every target.
	ErrAuth = errors.New("github authentication failed")
)

// FetchError is a classified failure of one API call or one fetch.
type FetchError struct {
	Target  string
	Kind    error
	ResetAt time.Time // earliest retry instant for ErrRateLimited
	Err     error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	if e.Target != "" {
		fmt.Fprintf(&b, "fetch %s: ", e.Target)
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if !e.ResetAt.IsZero() {
		fmt.Fprintf(&b, " (retry after %s)", e.ResetAt.Format(time.RFC3339))
	}
	return b.String()
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Classify returns the failure class of err, or nil when err carries none.
func Classify(err error) error {
	for _, kind := range []error{ErrAuth, ErrRateLimited, ErrNotFound, ErrTransient} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ClassName is the short label used for a failure class in metrics.
func ClassName(err error) string {
	switch Classify(err) {
	case ErrNotFound:
		return "not_found"
	case ErrRateLimited:
		return "rate_limited"
	case ErrTransient:
		return "transient"
	case ErrAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// ResetAt returns the retry instant carried by a rate limited error.
func ResetAt(err error) (time.Time, bool) {
	var fe *FetchError
	if errors.As(err, &fe) && !fe.ResetAt.IsZero() {
		return fe.ResetAt, true
	}
	return time.Time{}, false
}

// APIError represents a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// parseAPIError decodes GitHub's JSON error body, falling back to the
// raw body when it is not JSON.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var wire struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiErr.Message = wire.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// isRateLimitMessage checks whether a 403 body describes a rate limit
// rather than a permission problem.
func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "abuse detection")
}

// classifyResponse maps a non-2xx response onto a failure class.
func classifyResponse(resp *http.Response, body []byte, now time.Time) *FetchError {
	apiErr := parseAPIError(resp.StatusCode, body)
	fe := &FetchError{Err: apiErr}

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		fe.Kind = ErrAuth
	case code == http.StatusTooManyRequests,
		code == http.StatusForbidden && isRateLimited(resp.Header, apiErr.Message):
		fe.Kind = ErrRateLimited
		fe.ResetAt = retryAt(resp.Header, now)
	case code == http.StatusForbidden:
		fe.Kind = ErrAuth
	case code == http.StatusNotFound, code == http.StatusGone:
		fe.Kind = ErrNotFound
	default:
		fe.Kind = ErrTransient
	}
	return fe
}

func isRateLimited(header http.Header, message string) bool {
	return header.Get("X-RateLimit-Remaining") == "0" ||
		header.Get("Retry-After") != "" ||
		isRateLimitMessage(message)
}

// retryAt computes the earliest retry instant. Secondary rate limits use
// Retry-After in seconds; primary limits use X-RateLimit-Reset. Falls
// back to one minute when neither is usable.
func retryAt(header http.Header, now time.Time) time.Time {
	if s := header.Get("Retry-After"); s != "" {
		if seconds, err := strconv.Atoi(s); err == nil && seconds > 0 {
			return now.Add(time.Duration(seconds) * time.Second)
		}
	}
	if s := header.Get("X-RateLimit-Reset"); s != "" {
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			if reset := time.Unix(unix, 0); reset.After(now) {
				return reset
			}
		}
	}
	return now.Add(time.Minute)
}
