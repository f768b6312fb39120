package instagram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcrawler/pkg/config"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/retry"
)

func fastRetry(attempts int) *retry.Config {
	return &retry.Config{
		MaxAttempts: attempts,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(5*time.Second, append([]Option{WithLogger(logger.NewNopLogger())}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	log := logger.NewTestLogger()
	c, err := NewClient(30*time.Second, WithLogger(log), WithUserAgent("igcrawler-test"))
	require.NoError(t, err)

	assert.NotNil(t, c.Jar())
	assert.Equal(t, "igcrawler-test", c.headers["User-Agent"])
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.Nil(t, c.retry)
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Instagram.UserAgent = "ua/1.0"
	cfg.Retry.MaxAttempts = 4

	c, err := NewClientFromConfig(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, "ua/1.0", c.headers["User-Agent"])
	require.NotNil(t, c.retry)
	assert.Equal(t, 4, c.retry.MaxAttempts)
	assert.Equal(t, cfg.Crawl.RequestTimeout, c.httpClient.Timeout)
}

func TestDoGetSendsHeadersAndReadsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "custom", r.Header.Get("X-Test"))
		assert.Equal(t, "en-US,en;q=0.9", r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(t)
	req := Get(server.URL + "/web/")
	req.Header = http.Header{"X-Test": {"custom"}}

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, server.URL+"/web/", resp.URL)
}

func TestDoPostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "crawler", r.PostForm.Get("username"))
		assert.Equal(t, "p@ss word", r.PostForm.Get("password"))
		w.Write([]byte(`{"authenticated":true}`))
	}))
	defer server.Close()

	c := newTestClient(t)
	resp, err := c.Do(context.Background(), PostForm(server.URL, url.Values{
		"username": {"crawler"},
		"password": {"p@ss word"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestCookiesPersistAcrossRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok123", Path: "/"})
		case "/check":
			ck, err := r.Cookie("csrftoken")
			if assert.NoError(t, err) {
				assert.Equal(t, "tok123", ck.Value)
			}
		}
	}))
	defer server.Close()

	c := newTestClient(t)
	resp, err := c.Do(context.Background(), Get(server.URL+"/"))
	require.NoError(t, err)
	require.Len(t, resp.Cookies, 1)

	token, ok := c.Cookie(server.URL+"/", "csrftoken")
	assert.True(t, ok)
	assert.Equal(t, "tok123", token)

	_, ok = c.Cookie(server.URL+"/", "sessionid")
	assert.False(t, ok)

	_, err = c.Do(context.Background(), Get(server.URL+"/check"))
	require.NoError(t, err)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected errs.ErrorType
	}{
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusBadRequest, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"status":"fail"}`))
			}))
			defer server.Close()

			c := newTestClient(t)
			resp, err := c.Do(context.Background(), Get(server.URL))
			require.Error(t, err)
			assert.True(t, errs.IsType(err, tt.expected), "got %v", err)
			require.NotNil(t, resp, "response is returned with the status error")
			assert.Equal(t, tt.status, resp.Status)
			assert.JSONEq(t, `{"status":"fail"}`, string(resp.Body))
		})
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := newTestClient(t, WithRetry(fastRetry(3)))
	resp, err := c.Do(context.Background(), Get(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, WithRetry(fastRetry(5)))
	_, err := c.Do(context.Background(), Get(server.URL))
	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryExhaustedKeepsLastResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "down")
	}))
	defer server.Close()

	c := newTestClient(t, WithRetry(fastRetry(2)))
	resp, err := c.Do(context.Background(), Get(server.URL))
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeServerError))
	require.NotNil(t, resp)
	assert.Equal(t, "down", string(resp.Body))
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	c := newTestClient(t)
	resp, err := c.Do(context.Background(), Get(addr))
	assert.Nil(t, resp)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
}

func TestCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, WithRetry(fastRetry(3)))
	_, err := c.Do(ctx, Get(server.URL))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestsAreLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/limited" {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	c, err := NewClient(time.Second, WithLogger(log))
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Get(server.URL+"/ok"))
	require.NoError(t, err)
	_, err = c.Do(context.Background(), Get(server.URL+"/limited"))
	require.Error(t, err)

	assert.True(t, log.HasMessage("HTTP request completed"))
	assert.True(t, log.HasMessage("Rate limit reached, backing off"))

	warns := log.GetMessagesByLevel("WARN")
	require.NotEmpty(t, warns)
	last := warns[len(warns)-1]
	assert.Equal(t, 30*time.Second, last.Fields["retry_after"])
}

func TestRateLimitCarriesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(t)
	_, err := c.Do(context.Background(), Get(server.URL))

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeRateLimit, apiErr.Type)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
}

func TestRetryWaitsForRetryAfter(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := newTestClient(t, WithRetry(fastRetry(2)))
	start := time.Now()
	resp, err := c.Do(context.Background(), Get(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "the 1ms backoff is raised to the server's Retry-After")
}

func TestRetryAfterHeaderForms(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(http.Header{}))
	assert.Equal(t, 30*time.Second, retryAfter(http.Header{"Retry-After": {"30"}}))
	assert.Equal(t, time.Duration(0), retryAfter(http.Header{"Retry-After": {"-5"}}))
	assert.Equal(t, time.Duration(0), retryAfter(http.Header{"Retry-After": {"soon"}}))

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), retryAfter(http.Header{"Retry-After": {past}}))
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.InDelta(t, float64(time.Hour), float64(retryAfter(http.Header{"Retry-After": {future}})), float64(2*time.Second))
}

func TestFinishInFlightCompletesSentRequest(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	c := newTestClient(t, WithRetry(fastRetry(3)))
	resp, err := c.Do(FinishInFlight(ctx), Get(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "late", string(resp.Body))
}

func TestFinishInFlightStopsRetrying(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	unlimited := &retry.Config{
		MaxAttempts: 0,
		Backoff:     &retry.ConstantBackoff{Delay: 20 * time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
	c := newTestClient(t, WithRetry(unlimited))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Do(FinishInFlight(ctx), Get(server.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	sent := atomic.LoadInt32(&calls)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, sent, atomic.LoadInt32(&calls), "no attempts after the context is done")
}
