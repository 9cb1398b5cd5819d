// Package resilience provides fault tolerance for upstream feeds and the
// snapshot database.
//
// Subpackages:
//   - circuitbreaker: gobreaker wrappers, a per-feed breaker registry and a
//     guarded *sql.DB
//   - retry: exponential backoff with jitter that honors Retry-After
//
// Usage Example:
//
//	breakers := circuitbreaker.NewRegistry(circuitbreaker.FeedFetchConfig)
//	body, err := circuitbreaker.Do(breakers.Get(feedURL), func() ([]byte, error) {
//	    var out []byte
//	    err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//	        var err error
//	        out, err = download(ctx, feedURL)
//	        return err
//	    })
//	    return out, err
//	})
package resilience
