package mock

import (
	"regexp"
	"strings"
)

var paramPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Route is a fixture route with its compiled path matcher.
type Route struct {
	Method    string
	Path      string
	PathRegex *regexp.Regexp
	Name      string
	Response  *Fixture
}

// Router matches incoming requests to routes in registration order.
type Router struct {
	routes []*Route
}

func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// NewRoute compiles the path of f. {{name}} segments become named captures.
func NewRoute(f *Fixture) *Route {
	path := normalizePath(f.Path)
	method := strings.ToUpper(f.Method)
	if method == "" {
		method = "GET"
	}
	return &Route{
		Method:    method,
		Path:      path,
		PathRegex: createPathRegex(path),
		Name:      f.Name,
		Response:  f,
	}
}

func (r *Router) AddRoute(route *Route) {
	r.routes = append(r.routes, route)
}

func (r *Router) Routes() []*Route {
	return r.routes
}

// Match finds the first route for method and path. A route with method ANY
// matches every method.
func (r *Router) Match(method, path string) (*Route, map[string]string) {
	path = normalizePath(path)

	for _, route := range r.routes {
		if route.Method != "ANY" && !strings.EqualFold(route.Method, method) {
			continue
		}

		if params := matchPath(route, path); params != nil {
			return route, params
		}
	}

	return nil, nil
}

func normalizePath(path string) string {
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

func matchPath(route *Route, path string) map[string]string {
	if route.PathRegex != nil {
		matches := route.PathRegex.FindStringSubmatch(path)
		if matches != nil {
			params := make(map[string]string)
			for i, name := range route.PathRegex.SubexpNames() {
				if i > 0 && name != "" {
					params[name] = matches[i]
				}
			}
			return params
		}
	}

	if route.Path == path {
		return make(map[string]string)
	}

	return nil
}

func createPathRegex(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range paramPattern.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		b.WriteString("(?P<" + pattern[loc[2]:loc[3]] + ">[^/]+)")
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")

	regex, err := regexp.Compile(b.String())
	if err != nil {
		return regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$")
	}
	return regex
}
