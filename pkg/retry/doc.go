// Package retry provides backoff and retry logic for transient failures in
// network operations.
//
// Features:
//   - Exponential and constant backoff strategies
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Error-type specific backoff (transport failures vs throttling)
//
// Basic usage:
//
//	body, err := retry.DoWithResult(ctx, func() ([]byte, error) {
//		return client.Get(ctx, pageURL, nil)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		RetryIf:     retry.DefaultRetryIf,
//		Logger:      logger.GetLogger(),
//	})
//
// A MaxAttempts of one runs the operation exactly once.
package retry
