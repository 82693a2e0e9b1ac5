package kobo

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/JonMunkholm/kobosync/internal/metrics"
	"github.com/JonMunkholm/kobosync/internal/record"
)

// FetchAllWithRetry re-runs the whole fetch from the first page with
// exponential backoff. Only retryable transport failures are retried, and
// at most maxRetries times; pages from a failed attempt are discarded.
func (c *Client) FetchAllWithRetry(ctx context.Context) ([]record.Record, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryInitial
	expo.MaxInterval = c.retryMax
	expo.MaxElapsedTime = 0

	var policy backoff.BackOff = expo
	if c.maxRetries >= 0 {
		policy = backoff.WithMaxRetries(expo, uint64(c.maxRetries))
	}
	policy = backoff.WithContext(policy, ctx)

	var recs []record.Record
	op := func() error {
		out, err := c.FetchAll(ctx)
		if err != nil {
			if ctx.Err() != nil || !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		recs = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.FetchRetries.Inc()
		slog.Warn("kobo fetch failed, retrying",
			"error", err,
			"retry_in_ms", wait.Milliseconds(),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return recs, nil
}
