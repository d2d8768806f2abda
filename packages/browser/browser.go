package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/testclient/packages/client"
)

const (
	// DefaultBaseURL resolves relative request URIs
	DefaultBaseURL = "http://localhost"
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultRemoteAddr is used when no REMOTE_ADDR server variable is given
	DefaultRemoteAddr = "127.0.0.1:0"
)

// ErrTooManyRedirects is returned when a redirect chain exceeds the limit.
var ErrTooManyRedirects = errors.New("too many redirects")

type serverVarsKey struct{}

// ServerVars returns the server variables a Browser attached to r.
func ServerVars(r *http.Request) map[string]string {
	vars, _ := r.Context().Value(serverVarsKey{}).(map[string]string)
	return vars
}

// Browser drives an http.Handler in-process. It is not safe for concurrent use.
type Browser struct {
	handler        http.Handler
	baseURL        *url.URL
	followRedirect bool
	maxRedirects   int
	jar            *Jar
	logger         zerolog.Logger

	request  *http.Request
	response *http.Response
	body     []byte
}

type Option func(*Browser)

// New returns a Browser for handler. It panics if the base URL option is not
// an absolute URL.
func New(handler http.Handler, opts ...Option) *Browser {
	base, _ := url.Parse(DefaultBaseURL)
	b := &Browser{
		handler:      handler,
		baseURL:      base,
		maxRedirects: DefaultMaxRedirects,
		jar:          NewJar(),
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if !b.baseURL.IsAbs() {
		panic(fmt.Sprintf("browser: base URL %q is not absolute", b.baseURL))
	}
	return b
}

func WithBaseURL(raw string) Option {
	return func(b *Browser) {
		u, err := url.Parse(raw)
		if err != nil {
			u = &url.URL{Path: raw}
		}
		b.baseURL = u
	}
}

func WithFollowRedirects(follow bool) Option {
	return func(b *Browser) {
		b.followRedirect = follow
	}
}

func WithMaxRedirects(max int) Option {
	return func(b *Browser) {
		b.maxRedirects = max
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Browser) {
		b.logger = l
	}
}

var _ client.Browser = (*Browser)(nil)

// Request dispatches a request to the handler. Keys of server and headers
// prefixed with HTTP_ become request headers, CONTENT_TYPE and CONTENT_LENGTH
// become Content-Type and Content-Length, and every other key is exposed
// through ServerVars. headers take precedence over server.
//
// parameters are sent as a form body for bodiless POST, PUT, PATCH and DELETE
// requests and merged into the query string otherwise.
func (b *Browser) Request(method, uri string, parameters url.Values, server map[string]string, headers map[string]string, body *string) error {
	target, err := b.resolve(uri)
	if err != nil {
		return err
	}

	vars := make(map[string]string, len(server)+len(headers))
	for k, v := range server {
		vars[k] = v
	}
	for k, v := range headers {
		vars[k] = v
	}

	var content string
	hasContent := body != nil
	if hasContent {
		content = *body
	}

	if len(parameters) > 0 {
		if !hasContent && acceptsForm(method) {
			content = parameters.Encode()
			hasContent = true
			if _, ok := vars[client.ContentTypeKey]; !ok {
				vars[client.ContentTypeKey] = client.FormContentType
			}
		} else {
			q := target.Query()
			for k, values := range parameters {
				for _, v := range values {
					q.Add(k, v)
				}
			}
			target.RawQuery = q.Encode()
		}
	}

	req, err := b.buildRequest(method, target, vars, content, hasContent)
	if err != nil {
		return err
	}

	return b.dispatch(req, content, hasContent)
}

func (b *Browser) dispatch(req *http.Request, content string, hasContent bool) error {
	for redirects := 0; ; redirects++ {
		resp := b.serve(req)

		location := resp.Header.Get("Location")
		if !b.followRedirect || location == "" || !isRedirect(resp.StatusCode) {
			return nil
		}
		if redirects >= b.maxRedirects {
			return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, b.maxRedirects)
		}

		next, err := req.URL.Parse(location)
		if err != nil {
			return fmt.Errorf("invalid redirect location %q: %w", location, err)
		}

		method := req.Method
		switch resp.StatusCode {
		case http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		default:
			if method != http.MethodHead {
				method = http.MethodGet
			}
			content, hasContent = "", false
		}

		nextReq, err := b.follow(req, method, next, content, hasContent)
		if err != nil {
			return err
		}
		req = nextReq
	}
}

func (b *Browser) serve(req *http.Request) *http.Response {
	for _, c := range b.jar.Cookies(req.URL) {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	resp := rec.Result()
	resp.Request = req
	b.jar.Update(req.URL, resp)

	b.request = req
	b.response = resp
	b.body = rec.Body.Bytes()

	b.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Msg("browser request served")

	return resp
}

func (b *Browser) follow(prev *http.Request, method string, target *url.URL, content string, hasContent bool) (*http.Request, error) {
	var reader io.Reader
	if hasContent {
		reader = strings.NewReader(content)
	}

	req, err := http.NewRequestWithContext(prev.Context(), method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	if !hasContent {
		req.Body = http.NoBody
	}
	req.RemoteAddr = prev.RemoteAddr
	for k, v := range prev.Header {
		if k == "Cookie" {
			continue
		}
		if !hasContent && (k == "Content-Type" || k == "Content-Length") {
			continue
		}
		req.Header[k] = append([]string(nil), v...)
	}
	return req, nil
}

func (b *Browser) buildRequest(method string, target *url.URL, vars map[string]string, content string, hasContent bool) (*http.Request, error) {
	var reader io.Reader
	if hasContent {
		reader = strings.NewReader(content)
	}

	ctx := context.WithValue(context.Background(), serverVarsKey{}, vars)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}

	if !hasContent {
		req.Body = http.NoBody
	}
	req.RemoteAddr = DefaultRemoteAddr
	if addr, ok := vars["REMOTE_ADDR"]; ok {
		req.RemoteAddr = addr
	}

	for k, v := range vars {
		name, ok := HeaderName(k)
		if !ok {
			continue
		}
		if name == "Host" {
			req.Host = v
			continue
		}
		req.Header.Set(name, v)
	}

	return req, nil
}

// HeaderName converts a server-variable key into an HTTP header name.
// It reports false for keys that are not headers.
func HeaderName(key string) (string, bool) {
	switch key {
	case client.ContentTypeKey:
		return "Content-Type", true
	case "CONTENT_LENGTH":
		return "Content-Length", true
	}
	if !strings.HasPrefix(key, client.HeaderPrefix) || len(key) == len(client.HeaderPrefix) {
		return "", false
	}
	name := strings.ReplaceAll(strings.TrimPrefix(key, client.HeaderPrefix), "_", "-")
	return http.CanonicalHeaderKey(name), true
}

func (b *Browser) resolve(uri string) (*url.URL, error) {
	ref, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid request uri %q: %w", uri, err)
	}
	return b.baseURL.ResolveReference(ref), nil
}

// Response returns the last response, or nil before the first request.
// Every call returns a copy with an unread body.
func (b *Browser) Response() *http.Response {
	if b.response == nil {
		return nil
	}
	resp := *b.response
	resp.Header = b.response.Header.Clone()
	resp.Body = io.NopCloser(bytes.NewReader(b.body))
	return &resp
}

// LastRequest returns the last request sent to the handler, or nil.
func (b *Browser) LastRequest() *http.Request {
	return b.request
}

// CookieJar returns the jar as the client.CookieJar capability.
func (b *Browser) CookieJar() client.CookieJar {
	return b.jar
}

// Jar returns the browser's cookie jar.
func (b *Browser) Jar() *Jar {
	return b.jar
}

// Restart forgets cookies and the last request and response.
func (b *Browser) Restart() {
	b.jar.Clear()
	b.request = nil
	b.response = nil
	b.body = nil
}

func acceptsForm(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
