// Package yahoo fetches financial statement history and quote summaries
// from the Yahoo Finance JSON endpoints.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://query2.finance.yahoo.com"
	defaultCookieURL = "https://fc.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) fscore-cli"
)

// Frequency selects annual or quarterly statement history.
type Frequency string

const (
	Annual    Frequency = "annual"
	Quarterly Frequency = "quarterly"
)

// Client fetches statement and summary data for one provider symbol
// (e.g. "SAP.DE", "AAPL").
type Client interface {
	Statements(ctx context.Context, symbol string, freq Frequency) (*Statements, error)
	Summary(ctx context.Context, symbol string) (*Summary, error)
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("yahoo: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// SessionError is a failure to obtain the cookie and crumb every data
// request needs. No symbol can be fetched until it clears.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return "yahoo: session: " + e.Err.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithCookieURL overrides the page visited to obtain session cookies.
func WithCookieURL(url string) Option {
	return func(c *httpClient) {
		c.cookieURL = url
	}
}

// WithHTTPClient overrides the default http.Client. A client without a
// cookie jar gets one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	baseURL   string
	cookieURL string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter

	mu    sync.Mutex
	crumb string
}

// NewClient creates a Yahoo Finance client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		cookieURL: defaultCookieURL,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http.Jar == nil {
		jar, _ := cookiejar.New(nil)
		hc := *c.http
		hc.Jar = jar
		c.http = &hc
	}
	return c
}

// session returns the crumb, visiting the cookie page and fetching a new
// crumb on first use.
func (c *httpClient) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.crumb != "" {
		return c.crumb, nil
	}

	// The cookie page answers 404 but still sets the session cookie.
	if _, _, err := c.do(ctx, c.cookieURL); err != nil {
		var se *StatusError
		if !errors.As(err, &se) {
			return "", &SessionError{Err: eris.Wrap(err, "yahoo: fetch session cookie")}
		}
	}

	status, body, err := c.do(ctx, c.baseURL+"/v1/test/getcrumb")
	if err != nil {
		return "", &SessionError{Err: eris.Wrap(err, "yahoo: fetch crumb")}
	}
	crumb := strings.TrimSpace(string(body))
	if status != http.StatusOK || crumb == "" {
		return "", &SessionError{Err: eris.Errorf("yahoo: empty crumb (status %d)", status)}
	}
	c.crumb = crumb
	return crumb, nil
}

func (c *httpClient) resetSession() {
	c.mu.Lock()
	c.crumb = ""
	c.mu.Unlock()
}

// get issues an authenticated GET for path with query params.
func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	crumb, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	params.Set("crumb", crumb)

	_, body, err := c.do(ctx, c.baseURL+path+"?"+params.Encode())
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
			c.resetSession()
		}
		return nil, err
	}
	return body, nil
}

// do performs one rate-limited GET. Non-2xx responses return a *StatusError
// together with the body.
func (c *httpClient) do(ctx context.Context, rawURL string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, eris.Wrap(err, "yahoo: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, eris.Wrap(err, "yahoo: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, eris.Wrap(err, "yahoo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, eris.Wrap(err, "yahoo: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return resp.StatusCode, body, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Path, Body: snippet}
	}
	return resp.StatusCode, body, nil
}
