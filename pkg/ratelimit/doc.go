// Package ratelimit provides the rate limiters used by postmedia.
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Guards the HTTP service, one bucket per client address via Keyed
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - Paces outbound embed page fetches so a busy service does not get
//     the host blocked
//
// Usage:
//
//	// 60 requests per minute for each client
//	clients := ratelimit.NewKeyed(func() ratelimit.Limiter {
//	    return ratelimit.NewTokenBucket(60, time.Minute)
//	})
//	if !clients.Allow(remoteAddr) {
//	    // reject with 429
//	}
//
//	// Block until allowed, or until ctx ends
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
