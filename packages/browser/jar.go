package browser

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Jar stores cookies for a Browser. Cookies without a domain match every
// host, which is how cookies registered directly by test code behave.
type Jar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
	now     func() time.Time
}

func NewJar() *Jar {
	return &Jar{
		cookies: make(map[string]*http.Cookie),
		now:     time.Now,
	}
}

func jarKey(c *http.Cookie) string {
	return strings.ToLower(c.Domain) + ";" + cookiePath(c) + ";" + c.Name
}

func cookiePath(c *http.Cookie) string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

// Set stores a cookie, replacing one with the same domain, path and name.
// A host-less cookie matches every host, so it replaces the cookie with the
// same name and path on any domain. An already expired cookie removes the
// stored one instead.
func (j *Jar) Set(c *http.Cookie) {
	if c == nil || c.Name == "" {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if c.Domain == "" {
		for key, stored := range j.cookies {
			if stored.Name == c.Name && cookiePath(stored) == cookiePath(c) {
				delete(j.cookies, key)
			}
		}
	}

	key := jarKey(c)
	if j.expired(c) {
		delete(j.cookies, key)
		return
	}
	cp := *c
	j.cookies[key] = &cp
}

// Get returns the first live cookie with the given name.
func (j *Jar) Get(name string) *http.Cookie {
	for _, c := range j.All() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// All returns the live cookies sorted by name, then path.
func (j *Jar) All() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	var result []*http.Cookie
	for key, c := range j.cookies {
		if j.expired(c) {
			delete(j.cookies, key)
			continue
		}
		cp := *c
		result = append(result, &cp)
	}

	sort.Slice(result, func(a, b int) bool {
		if result[a].Name != result[b].Name {
			return result[a].Name < result[b].Name
		}
		return cookiePath(result[a]) < cookiePath(result[b])
	})
	return result
}

// Expire removes every cookie with the given name.
func (j *Jar) Expire(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for key, c := range j.cookies {
		if c.Name == name {
			delete(j.cookies, key)
		}
	}
}

func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.cookies = make(map[string]*http.Cookie)
}

// Cookies returns the live cookies that should be sent to u.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	var result []*http.Cookie
	for _, c := range j.All() {
		if matchDomain(c.Domain, u.Hostname()) && matchPath(cookiePath(c), u.Path) && (!c.Secure || u.Scheme == "https") {
			result = append(result, c)
		}
	}
	return result
}

// Update stores the cookies set by resp, defaulting their domain to u's host.
// A response cookie also replaces, or expires, the host-less cookie with the
// same name and path, so the handler owns cookies the caller registered.
func (j *Jar) Update(u *url.URL, resp *http.Response) {
	for _, c := range resp.Cookies() {
		if c.Domain == "" {
			c.Domain = u.Hostname()
		}
		j.dropHostless(c)
		j.Set(c)
	}
}

func (j *Jar) dropHostless(c *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	delete(j.cookies, ";"+cookiePath(c)+";"+c.Name)
}

func (j *Jar) expired(c *http.Cookie) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && c.Expires.Before(j.now())
}

func matchDomain(domain, host string) bool {
	if domain == "" {
		return true
	}
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func matchPath(cookiePath, requestPath string) bool {
	if requestPath == "" {
		requestPath = "/"
	}
	if cookiePath == "/" || cookiePath == requestPath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}
