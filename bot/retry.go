package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultRetryWait = 2 * time.Second

var retryAfterRe = regexp.MustCompile(`retry after (\d+)`)

// withRetry runs call up to maxAttempts times. Only Telegram flood-control
// errors (429) are retried, waiting for the advertised retry-after period.
func withRetry(ctx context.Context, op string, maxAttempts int, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := call()
		if err == nil {
			if attempt > 1 {
				log.Info().Str("op", op).Int("attempt", attempt).Msg("Succeeded after retry")
			}
			return nil
		}
		lastErr = err

		errStr := err.Error()
		if !strings.Contains(errStr, "Too Many Requests") && !strings.Contains(errStr, "429") {
			return fmt.Errorf("%s: %w", op, err)
		}

		wait := defaultRetryWait
		if secs, ok := parseRetryAfter(errStr); ok {
			wait = time.Duration(secs) * time.Second
		}
		log.Warn().Str("op", op).Int("attempt", attempt).Int("max_attempts", maxAttempts).Dur("wait", wait).Msg("Rate limit hit, waiting")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: context cancelled during rate limit wait: %w", op, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s: max attempts (%d) exceeded: %w", op, maxAttempts, lastErr)
}

// parseRetryAfter extracts the retry duration in seconds from a Telegram error string.
func parseRetryAfter(errorString string) (int, bool) {
	m := retryAfterRe.FindStringSubmatch(errorString)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil || secs <= 0 {
		return 0, false
	}
	return secs, true
}
