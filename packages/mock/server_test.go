package mock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFixtures = `
routes:
  - name: user
    method: GET
    path: /users/{{id}}
    headers:
      X-User: "{{id}}"
    body: '{"id": "{{id}}", "q": "{{query.q}}", "agent": "{{header.User-Agent}}", "theme": "{{cookie.theme}}", "missing": "{{nope}}"}'
  - name: create
    method: POST
    path: /users
    status: 201
    body: '{"name": "{{form.name}}", "token": "{{$base64(abc)}}"}'
    cookies:
      - name: session
        value: xyz
  - name: echo
    method: ANY
    path: /echo
    status: 202
    echo: true
  - name: text
    method: GET
    path: /text
    contentType: text/plain
    body: plain
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	file, err := ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)

	s := NewServer()
	s.LoadFixtures(file)
	return s
}

func TestParseFixtures(t *testing.T) {
	file, err := ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)
	require.Len(t, file.Routes, 4)

	assert.Equal(t, 200, file.Routes[0].Status)
	assert.Equal(t, "application/json", file.Routes[0].ContentType)
	assert.Equal(t, 201, file.Routes[1].Status)
	assert.Equal(t, "", file.Routes[2].ContentType)
	assert.Equal(t, "text/plain", file.Routes[3].ContentType)
}

func TestParseFixtures_Invalid(t *testing.T) {
	_, err := ParseFixtures([]byte("routes:\n  - method: GET\n"))
	assert.Error(t, err)

	_, err = ParseFixtures([]byte("routes: {"))
	assert.Error(t, err)
}

func TestServer_TemplatedResponse(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/users/42?q=search", nil)
	req.Header.Set("User-Agent", "tester")
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("X-User"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id": "42", "q": "search", "agent": "tester", "theme": "dark", "missing": "{{nope}}"}`, rec.Body.String())
}

func TestServer_FormAndCookies(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/users", strings.NewReader("name=ada+lovelace"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	assert.Equal(t, 201, rec.Code)
	assert.JSONEq(t, `{"name": "ada lovelace", "token": "YWJj"}`, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "xyz", cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path)
}

func TestServer_Echo(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("PUT", "/echo?a=1", strings.NewReader("x=1&y=2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer t")
	req.AddCookie(&http.Cookie{Name: "sid", Value: "s"})
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	require.Equal(t, 202, rec.Code)

	var echo EchoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &echo))

	assert.Equal(t, "PUT", echo.Method)
	assert.Equal(t, "/echo", echo.Path)
	assert.Equal(t, []string{"1"}, echo.Query["a"])
	assert.Equal(t, []string{"Bearer t"}, echo.Headers["Authorization"])
	assert.NotContains(t, echo.Headers, "Cookie")
	assert.Equal(t, map[string][]string{"x": {"1"}, "y": {"2"}}, echo.Form)
	assert.Equal(t, map[string]string{"sid": "s"}, echo.Cookies)
	assert.Equal(t, "x=1&y=2", echo.Body)
}

func TestServer_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, httptest.NewRequest("DELETE", "/users/1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_BadTemplateFunction(t *testing.T) {
	s := NewServer()
	s.LoadFixtures(&FixtureFile{Routes: []*Fixture{{Path: "/bad", Status: 200, Body: "{{$random(x, y)}}"}}})
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, httptest.NewRequest("GET", "/bad", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_LoadFileAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - path: /one\n    body: one\n"), 0644))

	s := NewServer()
	require.NoError(t, s.LoadFiles([]string{path}))
	assert.Equal(t, []string{path}, s.Files())
	require.Len(t, s.Routes(), 1)
	assert.Equal(t, "/one", s.Routes()[0].Path)

	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - path: /two\n  - path: /three\n"), 0644))
	require.NoError(t, s.Reload())
	require.Len(t, s.Routes(), 2)
	assert.Equal(t, "/two", s.Routes()[0].Path)

	require.NoError(t, os.WriteFile(path, []byte("routes: {"), 0644))
	assert.Error(t, s.Reload())
	assert.Len(t, s.Routes(), 2, "failed reload keeps the previous routes")
}

func TestServer_LoadFileMissing(t *testing.T) {
	err := NewServer().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
