package client

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Doer sends a single request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient forwards requests to a real HTTP transport.
type HTTPClient struct {
	doer           Doer
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	logger         zerolog.Logger
}

type HTTPOption func(*HTTPClient)

func NewHTTPClient(opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		logger:         zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.doer == nil {
		c.doer = c.newTransport()
	}

	return c
}

func (c *HTTPClient) newTransport() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy,
	}
}

// WithDoer replaces the transport. Transport options are ignored when set.
func WithDoer(d Doer) HTTPOption {
	return func(c *HTTPClient) {
		c.doer = d
	}
}

func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) HTTPOption {
	return func(c *HTTPClient) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) HTTPOption {
	return func(c *HTTPClient) {
		c.maxRedirects = max
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) HTTPOption {
	return func(c *HTTPClient) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) HTTPOption {
	return func(c *HTTPClient) {
		c.proxyURL = proxyURL
	}
}

func WithHTTPLogger(l zerolog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// MakeRequest sends the request through the transport. Transport errors are
// returned unchanged.
func (c *HTTPClient) MakeRequest(ctx context.Context, method, uri string, headers map[string]string, body *string) (*Response, error) {
	req, err := c.createRequest(ctx, method, uri, headers, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.doer.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}

	resp, err := FromHTTPResponse(httpResp)
	if err != nil {
		return nil, err
	}
	resp.Duration = duration

	c.logger.Debug().
		Str("method", method).
		Str("uri", uri).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("http request sent")

	return resp, nil
}

func (c *HTTPClient) createRequest(ctx context.Context, method, uri string, headers map[string]string, body *string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(*body)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return nil, err
	}

	// Direct assignment keeps the caller's casing; Header.Set would canonicalize.
	for k, v := range headers {
		req.Header[k] = []string{v}
	}

	return req, nil
}
