// Package instagram is the request engine used by the crawler.
//
// A Client owns one cookie jar (public-suffix aware) shared by every request
// it sends, paces requests with a ratelimit.Limiter and retries network
// failures, 429 and 5xx responses through pkg/retry. Non-2xx responses are
// returned together with a typed *errors.Error.
//
//	client, err := instagram.NewClientFromConfig(cfg, log)
//	resp, err := client.Do(ctx, instagram.Get(cfg.Endpoints.BaseURL))
//	token, ok := client.Cookie(cfg.Endpoints.BaseURL, "csrftoken")
package instagram
