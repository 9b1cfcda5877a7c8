package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RateLimitError is returned when the provider answers 429.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// parseRetryAfter accepts either delay-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ErrorType classifies an error for ChatResult.ErrorType and metrics labels.
func ErrorType(err error) string {
	var rl *RateLimitError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rl):
		return "rate_limit"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "context_cancelled"
	default:
		return "api_error"
	}
}
