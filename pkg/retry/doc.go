// Package retry wraps transient operations, primarily document store
// writes, with bounded retry and backoff.
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return gateway.UpsertRecord(ctx, rec)
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	err := retry.Do(operation, cfg)
//
// The default predicate follows the pipeline error taxonomy: persistence,
// network and rate-limit errors retry; auth, extraction, setup and
// not-found errors fail immediately, as does context cancellation.
package retry
