// Package retry re-runs failed requests with backoff.
//
// Only transient failures are retried: network errors, 429 and 5xx.
// Rate limits get their own, slower schedule through ErrorTypeBackoff.
//
//	cfg := retry.FromConfig(appCfg.Retry, log)
//	resp, err := retry.DoWithResult(ctx, func(ctx context.Context) (*Response, error) {
//		return send(ctx, req)
//	}, cfg)
package retry
