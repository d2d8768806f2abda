package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Browser is an in-process simulated browser. packages/browser provides one
// that drives an http.Handler.
type Browser interface {
	Request(method, uri string, parameters url.Values, server map[string]string, headers map[string]string, body *string) error
	Response() *http.Response
	CookieJar() CookieJar
}

// CookieJar is the cookie store of a Browser.
type CookieJar interface {
	Set(cookie *http.Cookie)
}

// KernelClient routes requests into a bound Browser instead of the network.
// The browser keeps its cookie jar between calls, so cookies accumulate for
// the lifetime of the binding.
type KernelClient struct {
	browser         Browser
	responseFactory ResponseFactory
	logger          zerolog.Logger
}

type KernelOption func(*KernelClient)

func NewKernelClient(opts ...KernelOption) *KernelClient {
	c := &KernelClient{
		responseFactory: FromHTTPResponse,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithResponseFactory sets the converter applied to the browser's response.
func WithResponseFactory(f ResponseFactory) KernelOption {
	return func(c *KernelClient) {
		c.responseFactory = f
	}
}

func WithKernelLogger(l zerolog.Logger) KernelOption {
	return func(c *KernelClient) {
		c.logger = l
	}
}

// SetBrowser binds the browser used by MakeRequest.
func (c *KernelClient) SetBrowser(b Browser) {
	c.browser = b
}

// Browser returns the bound browser, or nil.
func (c *KernelClient) Browser() Browser {
	return c.browser
}

// MakeRequest normalizes the request, dispatches it to the bound browser and
// converts the browser's last response. ctx is accepted for Client
// compatibility; an in-process dispatch cannot be cancelled.
func (c *KernelClient) MakeRequest(_ context.Context, method, uri string, headers map[string]string, body *string) (*Response, error) {
	if c.browser == nil {
		return nil, ErrBrowserNotSet
	}

	normalized := NormalizeHeaders(headers)

	if cookie, ok := CookieHeader(headers); ok {
		jar := c.browser.CookieJar()
		for _, ck := range ParseCookieHeader(cookie) {
			jar.Set(ck)
		}
	}

	params, fwdBody := SplitFormBody(method, normalized, body)

	start := time.Now()
	if err := c.browser.Request(method, uri, params, map[string]string{}, normalized, fwdBody); err != nil {
		return nil, err
	}
	duration := time.Since(start)

	native := c.browser.Response()
	if native == nil {
		return nil, ErrNoResponse
	}

	resp, err := c.responseFactory(native)
	if err != nil {
		return nil, err
	}
	if err := resp.Rewind(); err != nil {
		return nil, err
	}
	resp.Duration = duration

	c.logger.Debug().
		Str("method", method).
		Str("uri", uri).
		Int("params", len(params)).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("kernel request dispatched")

	return resp, nil
}
