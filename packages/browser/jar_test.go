package browser

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func names(cookies []*http.Cookie) []string {
	var result []string
	for _, c := range cookies {
		result = append(result, c.Name)
	}
	return result
}

func TestJar_SetAndGet(t *testing.T) {
	jar := NewJar()
	jar.Set(&http.Cookie{Name: "session", Value: "one"})
	jar.Set(&http.Cookie{Name: "session", Value: "two"})
	jar.Set(&http.Cookie{Name: ""})
	jar.Set(nil)

	require.Len(t, jar.All(), 1)
	assert.Equal(t, "two", jar.Get("session").Value)
	assert.Nil(t, jar.Get("missing"))
}

func TestJar_SetStoresCopy(t *testing.T) {
	jar := NewJar()
	c := &http.Cookie{Name: "a", Value: "1"}
	jar.Set(c)
	c.Value = "changed"

	assert.Equal(t, "1", jar.Get("a").Value)
}

func TestJar_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	jar := NewJar()
	jar.now = func() time.Time { return now }

	jar.Set(&http.Cookie{Name: "short", Value: "x", Expires: now.Add(time.Minute)})
	jar.Set(&http.Cookie{Name: "keep", Value: "y"})
	assert.Equal(t, []string{"keep", "short"}, names(jar.All()))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, []string{"keep"}, names(jar.All()))

	jar.Set(&http.Cookie{Name: "keep", MaxAge: -1})
	assert.Empty(t, jar.All())
}

func TestJar_ExpireAndClear(t *testing.T) {
	jar := NewJar()
	jar.Set(&http.Cookie{Name: "a", Value: "1", Path: "/x"})
	jar.Set(&http.Cookie{Name: "a", Value: "2", Path: "/y"})
	jar.Set(&http.Cookie{Name: "b", Value: "3"})

	jar.Expire("a")
	assert.Equal(t, []string{"b"}, names(jar.All()))

	jar.Clear()
	assert.Empty(t, jar.All())
}

func TestJar_Cookies(t *testing.T) {
	jar := NewJar()
	jar.Set(&http.Cookie{Name: "any", Value: "1"})
	jar.Set(&http.Cookie{Name: "domain", Value: "2", Domain: "example.com"})
	jar.Set(&http.Cookie{Name: "other", Value: "3", Domain: "other.com"})
	jar.Set(&http.Cookie{Name: "admin", Value: "4", Path: "/admin"})
	jar.Set(&http.Cookie{Name: "secure", Value: "5", Secure: true})

	tests := []struct {
		url      string
		expected []string
	}{
		{url: "http://example.com/", expected: []string{"any", "domain"}},
		{url: "https://api.example.com/admin/users", expected: []string{"admin", "any", "domain", "secure"}},
		{url: "http://example.com/administrator", expected: []string{"any", "domain"}},
		{url: "http://other.com", expected: []string{"any", "other"}},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, names(jar.Cookies(mustURL(t, tt.url))))
		})
	}
}

func TestJar_Update(t *testing.T) {
	jar := NewJar()
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Add("Set-Cookie", "session=abc; Path=/")
	resp.Header.Add("Set-Cookie", "theme=dark; Domain=example.com")

	jar.Update(mustURL(t, "http://app.test/login"), resp)

	session := jar.Get("session")
	require.NotNil(t, session)
	assert.Equal(t, "abc", session.Value)
	assert.Equal(t, "app.test", session.Domain)

	assert.Equal(t, []string{"session"}, names(jar.Cookies(mustURL(t, "http://app.test/"))))
	assert.Equal(t, []string{"theme"}, names(jar.Cookies(mustURL(t, "http://www.example.com/"))))
}

func TestJar_UpdateReplacesHostlessCookie(t *testing.T) {
	u := mustURL(t, "http://localhost/")

	t.Run("expired by the response", func(t *testing.T) {
		jar := NewJar()
		jar.Set(&http.Cookie{Name: "sid", Value: "abc"})

		resp := &http.Response{Header: http.Header{}}
		resp.Header.Add("Set-Cookie", "sid=; Path=/; Max-Age=0")
		jar.Update(u, resp)

		assert.Empty(t, jar.Cookies(u))
	})

	t.Run("overwritten by the response", func(t *testing.T) {
		jar := NewJar()
		jar.Set(&http.Cookie{Name: "sid", Value: "test"})
		jar.Set(&http.Cookie{Name: "sid", Value: "other-path", Path: "/admin"})

		resp := &http.Response{Header: http.Header{}}
		resp.Header.Add("Set-Cookie", "sid=server; Path=/")
		jar.Update(u, resp)

		cookies := jar.Cookies(u)
		require.Len(t, cookies, 1)
		assert.Equal(t, "server", cookies[0].Value)
		assert.Equal(t, "localhost", cookies[0].Domain)
		assert.Len(t, jar.All(), 2)
	})
}

func TestJar_HostlessSetReplacesDomainCookie(t *testing.T) {
	jar := NewJar()
	jar.Set(&http.Cookie{Name: "sid", Value: "server", Domain: "localhost"})
	jar.Set(&http.Cookie{Name: "sid", Value: "admin", Domain: "localhost", Path: "/admin"})
	jar.Set(&http.Cookie{Name: "sid", Value: "caller"})

	cookies := jar.Cookies(mustURL(t, "http://localhost/"))
	require.Len(t, cookies, 1)
	assert.Equal(t, "caller", cookies[0].Value)
	assert.Len(t, jar.All(), 2)
}
