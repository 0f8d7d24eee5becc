package mirror

import (
	"errors"
	"io"
	"time"

	"github.com/slack-go/slack"
)

// withRetry runs fn up to attempts times with linear backoff, stopping early
// when fn reports the error is not retryable.
func withRetry(attempts int, baseDelay time.Duration, fn func() (retryable bool, err error)) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && baseDelay > 0 {
			time.Sleep(time.Duration(i) * baseDelay)
		}
		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

// retryDecision classifies a Slack API error. Rate limits honor the server's
// Retry-After before retrying; truncated reads retry immediately.
func retryDecision(err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) && rle != nil {
		if rle.RetryAfter > 0 {
			time.Sleep(rle.RetryAfter)
		}
		return true, err
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true, err
	}
	return false, err
}

func sleepForRateLimit(err error) {
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) && rle != nil && rle.RetryAfter > 0 {
		time.Sleep(rle.RetryAfter)
	}
}
