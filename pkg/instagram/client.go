package instagram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"igcrawler/pkg/config"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/ratelimit"
	"igcrawler/pkg/retry"
)

// maxBodySize caps how much of a response body is kept in memory.
const maxBodySize = 32 << 20

// Request is one outbound call. A non-nil Form is sent as an
// application/x-www-form-urlencoded body.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Form   url.Values
}

// Get builds a GET request for rawURL.
func Get(rawURL string) *Request {
	return &Request{Method: http.MethodGet, URL: rawURL}
}

// PostForm builds a form POST request.
func PostForm(rawURL string, form url.Values) *Request {
	return &Request{Method: http.MethodPost, URL: rawURL, Form: form}
}

// Response is a fully read HTTP response.
type Response struct {
	Status  int
	Body    []byte
	Header  http.Header
	Cookies []*http.Cookie
	// URL is the final URL after redirects
	URL string
}

// Client is the request engine shared by every crawl job of a process.
// Cookies set by any response are kept in one jar and sent on later requests.
type Client struct {
	httpClient *http.Client
	jar        http.CookieJar
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger

	mu      sync.RWMutex
	headers map[string]string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its jar is replaced by
// the client's own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter sets the request pacing
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry sets the retry policy. A nil config disables retries.
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// WithUserAgent overrides the default browser user agent
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.headers["User-Agent"] = ua
		}
	}
}

// NewClient creates a request engine with a fresh cookie jar
func NewClient(timeout time.Duration, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		jar:        jar,
		limiter:    ratelimit.NewUnlimited(),
		logger:     logger.GetLogger(),
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Jar = jar
	if c.logger == nil {
		c.logger = logger.NewNopLogger()
	}
	if c.limiter == nil {
		c.limiter = ratelimit.NewUnlimited()
	}
	return c, nil
}

// NewClientFromConfig wires pacing, retries and the user agent from cfg.
func NewClientFromConfig(cfg *config.Config, log logger.Logger, opts ...Option) (*Client, error) {
	base := []Option{
		WithLogger(log),
		WithLimiter(ratelimit.FromConfig(cfg.RateLimit)),
		WithRetry(retry.FromConfig(cfg.Retry, log)),
		WithUserAgent(cfg.Instagram.UserAgent),
	}
	return NewClient(cfg.Crawl.RequestTimeout, append(base, opts...)...)
}

// SetHeader sets a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// Jar returns the shared cookie jar
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// Cookie returns the value of the named cookie the jar would send to rawURL.
func (c *Client) Cookie(rawURL, name string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	for _, ck := range c.jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

type inFlightKey struct{}

// FinishInFlight returns a context under which a request that has already
// been sent completes after ctx is cancelled. Rate limit waits, retry
// backoff and further attempts still stop as soon as ctx is done.
func FinishInFlight(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), inFlightKey{}, ctx)
}

// Do sends req, retrying transient failures. For a non-2xx status the
// response is returned together with a typed error so callers can still
// inspect the body.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	live := ctx
	if parent, ok := ctx.Value(inFlightKey{}).(context.Context); ok {
		live = parent
	}
	if c.retry == nil || c.retry.MaxAttempts == 1 {
		return c.send(live, ctx, req)
	}
	return retry.DoWithResult(live, func(wait context.Context) (*Response, error) {
		return c.send(wait, ctx, req)
	}, c.retry)
}

// send paces on waitCtx and performs the round trip on reqCtx.
func (c *Client) send(waitCtx, reqCtx context.Context, req *Request) (*Response, error) {
	if err := c.limiter.Wait(waitCtx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	httpReq, err := c.newHTTPRequest(reqCtx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   httpReq.Method,
			"url":      req.URL,
			"error":    err.Error(),
			"duration": duration,
		})
		if ctxErr := reqCtx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.NewNetworkError(fmt.Sprintf("%s %s", httpReq.Method, req.URL), err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, errs.NewNetworkError("failed to read response body", err)
	}

	logger.LogRequest(c.logger, httpReq.Method, req.URL, httpResp.StatusCode, duration)

	resp := &Response{
		Status:  httpResp.StatusCode,
		Body:    body,
		Header:  httpResp.Header,
		Cookies: httpResp.Cookies(),
		URL:     httpResp.Request.URL.String(),
	}

	if statusErr := errs.FromStatus(resp.Status); statusErr != nil {
		statusErr.Message = fmt.Sprintf("%s (%s %s)", statusErr.Message, httpReq.Method, req.URL)
		if statusErr.Type == errs.ErrorTypeRateLimit {
			statusErr.RetryAfter = retryAfter(httpResp.Header)
			logger.LogRateLimit(c.logger, req.URL, statusErr.RetryAfter)
		}
		return resp, statusErr
	}
	return resp, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	c.mu.RUnlock()

	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	var d time.Duration
	if secs, err := time.ParseDuration(v + "s"); err == nil {
		d = secs
	} else if t, err := http.ParseTime(v); err == nil {
		d = time.Until(t)
	}
	return max(d, 0)
}
