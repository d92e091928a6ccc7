package github

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryOptions configures retry behavior for API calls. Retries apply only
// to the reporting channel; tool invocations are never retried.
type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryOptions returns sensible defaults for retry behavior.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// WithRetry executes an operation with exponential backoff, respecting
// context cancellation and GitHub's Retry-After hint. Only transient errors
// (429, 5xx, network) retry.
func WithRetry[T any](ctx context.Context, op func() (T, error), opts RetryOptions) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result, lastErr = op()
		if lastErr == nil {
			return result, nil
		}
		if !isRetryableError(lastErr) || attempt >= opts.MaxRetries {
			return result, lastErr
		}

		delay := opts.BaseDelay * time.Duration(1<<uint(attempt))
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}

		// A rate-limited response says when to come back; that overrides
		// the computed backoff.
		if retryAfter := extractRetryAfter(lastErr); retryAfter > 0 {
			delay = retryAfter
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	return result, lastErr
}

// WithRetryVoid is like WithRetry for operations without a return value.
func WithRetryVoid(ctx context.Context, op func() error, opts RetryOptions) error {
	_, err := WithRetry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, opts)
	return err
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, status := range []string{"status 429", "status 500", "status 502", "status 503", "status 504"} {
		if strings.Contains(msg, status) {
			return true
		}
	}
	// Transport-level failures surface without a status code.
	return strings.Contains(msg, "failed to execute request")
}

var retryAfterRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry.after[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)rate.limit.*?(\d+)\s*seconds?`),
}

// extractRetryAfter pulls a Retry-After duration out of a rate-limit error
// body. Returns 0 when the error carries no retry hint; a bare 429 defaults
// to GitHub's one-minute rate limit window.
func extractRetryAfter(err error) time.Duration {
	if err == nil {
		return 0
	}
	msg := err.Error()

	for _, re := range retryAfterRes {
		if m := re.FindStringSubmatch(msg); len(m) > 1 {
			if seconds, parseErr := strconv.Atoi(m[1]); parseErr == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	if strings.Contains(msg, "status 429") {
		return 60 * time.Second
	}
	return 0
}
