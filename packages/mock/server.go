// Package mock provides a fixture-driven HTTP application. A Server can be
// served over the network or handed to a browser.Browser as an in-process
// handler.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/testclient/packages/builtin"
)

// Server serves the routes of one or more fixture files.
type Server struct {
	mu       sync.RWMutex
	router   *Router
	files    []string
	port     int
	delay    time.Duration
	verbose  bool
	registry *builtin.Registry
	logger   zerolog.Logger
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithVerbose logs every request at info level
func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		router:   NewRouter(),
		port:     3000,
		registry: builtin.NewRegistry(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadFile adds the routes of a fixture file.
func (s *Server) LoadFile(path string) error {
	file, err := LoadFixtures(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFixtures(file)
	s.files = append(s.files, path)
	return nil
}

func (s *Server) LoadFiles(paths []string) error {
	for _, path := range paths {
		if err := s.LoadFile(path); err != nil {
			return err
		}
	}
	return nil
}

// LoadFixtures adds routes that did not come from a file.
func (s *Server) LoadFixtures(file *FixtureFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFixtures(file)
}

func (s *Server) addFixtures(file *FixtureFile) {
	for _, f := range file.Routes {
		s.router.AddRoute(NewRoute(f))
	}
}

// Reload re-reads every loaded file into a fresh router. On error the
// current routes are kept.
func (s *Server) Reload() error {
	s.mu.RLock()
	files := append([]string(nil), s.files...)
	s.mu.RUnlock()

	router := NewRouter()
	for _, path := range files {
		file, err := LoadFixtures(path)
		if err != nil {
			return err
		}
		for _, f := range file.Routes {
			router.AddRoute(NewRoute(f))
		}
	}

	s.mu.Lock()
	s.router = router
	s.mu.Unlock()

	s.logger.Info().Int("routes", len(router.routes)).Msg("fixtures reloaded")
	return nil
}

// Files returns the fixture files loaded so far.
func (s *Server) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.files...)
}

// Routes returns all registered routes
func (s *Server) Routes() []*Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Route(nil), s.router.routes...)
}

// Start serves on the configured port until the listener fails.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) StartWithContext(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", s.port)).
		Int("routes", len(s.Routes())).
		Msg("mock server starting")

	if s.verbose {
		for _, route := range s.Routes() {
			s.logger.Info().Msgf("  %s %s -> %d", route.Method, route.Path, route.Response.Status)
		}
	}

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.RLock()
	route, params := s.router.Match(r.Method, r.URL.Path)
	s.mu.RUnlock()

	if route == nil {
		s.logRequest(r, http.StatusNotFound, start)
		http.NotFound(w, r)
		return
	}

	resp := route.Response
	if resp.Echo {
		s.writeEcho(w, r, resp, params)
		s.logRequest(r, resp.Status, start)
		return
	}

	body, err := s.render(resp.Body, r, params)
	if err != nil {
		s.logger.Error().Err(err).Str("route", route.Name).Msg("rendering fixture body")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeHead(w, r, resp, params)
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, body)

	s.logRequest(r, resp.Status, start)
}

func (s *Server) writeHead(w http.ResponseWriter, r *http.Request, resp *Fixture, params map[string]string) {
	for key, value := range resp.Headers {
		rendered, err := s.render(value, r, params)
		if err != nil {
			rendered = value
		}
		w.Header().Set(key, rendered)
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	for _, c := range resp.Cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		http.SetCookie(w, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   path,
			MaxAge: c.MaxAge,
		})
	}
}

// EchoResponse is the body written by echo routes.
type EchoResponse struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Params  map[string]string   `json:"params"`
	Query   map[string][]string `json:"query"`
	Headers map[string][]string `json:"headers"`
	Form    map[string][]string `json:"form"`
	Cookies map[string]string   `json:"cookies"`
	Body    string              `json:"body"`
}

func (s *Server) writeEcho(w http.ResponseWriter, r *http.Request, resp *Fixture, params map[string]string) {
	echo := EchoResponse{
		Method:  r.Method,
		Path:    r.URL.Path,
		Params:  params,
		Query:   r.URL.Query(),
		Headers: r.Header.Clone(),
		Form:    map[string][]string{},
		Cookies: map[string]string{},
	}
	delete(echo.Headers, "Cookie")

	raw := readBody(r)
	echo.Body = string(raw)
	if isFormRequest(r) {
		if err := parseFormBody(r, raw); err == nil {
			echo.Form = r.PostForm
		}
	}
	for _, c := range r.Cookies() {
		echo.Cookies[c.Name] = c.Value
	}

	s.writeHead(w, r, resp, params)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(echo)
}

var templatePattern = regexp.MustCompile(`\{\{\s*([\w.\-]+)\s*\}\}`)

// render expands {{param}}, {{form.x}}, {{query.x}}, {{header.X}},
// {{cookie.x}} and {{$fn(args)}} placeholders. Unresolved placeholders are
// kept as-is.
func (s *Server) render(text string, r *http.Request, params map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	if isFormRequest(r) && r.PostForm == nil {
		raw := readBody(r)
		_ = parseFormBody(r, raw)
	}

	out := templatePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := templatePattern.FindStringSubmatch(match)[1]
		if v, ok := params[name]; ok {
			return v
		}

		source, key, found := strings.Cut(name, ".")
		if !found {
			return match
		}
		switch source {
		case "form":
			if vs, ok := r.PostForm[key]; ok && len(vs) > 0 {
				return vs[0]
			}
		case "query":
			if vs, ok := r.URL.Query()[key]; ok && len(vs) > 0 {
				return vs[0]
			}
		case "header":
			if v := r.Header.Get(key); v != "" {
				return v
			}
		case "cookie":
			if c, err := r.Cookie(key); err == nil {
				return c.Value
			}
		}
		return match
	})

	return s.registry.Expand(out)
}

func isFormRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

func readBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	raw, _ := io.ReadAll(r.Body)
	return raw
}

func parseFormBody(r *http.Request, raw []byte) error {
	values, err := url.ParseQuery(string(raw))
	r.PostForm = values
	return err
}

func (s *Server) logRequest(r *http.Request, status int, start time.Time) {
	var event *zerolog.Event
	if s.verbose {
		event = s.logger.Info()
	} else {
		event = s.logger.Debug()
	}
	event.
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("mock request")
}
