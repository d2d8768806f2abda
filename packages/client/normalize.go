package client

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const (
	// ContentTypeKey is the server-variable key the content type is copied to.
	ContentTypeKey = "CONTENT_TYPE"
	// HeaderPrefix marks a header in server-variable form.
	HeaderPrefix = "HTTP_"
	// FormContentType is the only content type that triggers the form split.
	FormContentType = "application/x-www-form-urlencoded"

	cookieKey      = "cookie"
	contentTypeKey = "content-type"
	cookieSep      = "; "
)

// NormalizeHeaders rewrites caller headers into the server-variable form the
// simulated browser expects.
//
//   - content-type is kept under its lower-case key and copied to CONTENT_TYPE
//   - content_type (any casing) maps to CONTENT_TYPE only
//   - cookie is dropped; use ParseCookieHeader on the original value
//   - keys already prefixed with http_ are upper-cased in place
//   - every other key becomes HTTP_<KEY> with dashes replaced by underscores
//
// Keys are matched case-insensitively and processed in sorted order, so when
// two keys differ only by case the later one wins. Normalizing an already
// normalized map returns an equal map.
func NormalizeHeaders(headers map[string]string) map[string]string {
	normalized := make(map[string]string, len(headers)+1)
	for _, k := range sortedKeys(headers) {
		value := headers[k]
		key := strings.ToLower(k)

		switch {
		case key == cookieKey:
			continue
		case key == contentTypeKey:
			normalized[contentTypeKey] = value
			normalized[ContentTypeKey] = value
		case key == strings.ToLower(ContentTypeKey):
			normalized[ContentTypeKey] = value
		case strings.HasPrefix(key, strings.ToLower(HeaderPrefix)):
			normalized[serverKey(key)] = value
		default:
			normalized[HeaderPrefix+serverKey(key)] = value
		}
	}

	return normalized
}

func serverKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// CookieHeader returns the value of the cookie header, matched
// case-insensitively. As in NormalizeHeaders, the last key in sorted order wins.
func CookieHeader(headers map[string]string) (string, bool) {
	var value string
	var found bool
	for _, k := range sortedKeys(headers) {
		if strings.ToLower(k) == cookieKey {
			value, found = headers[k], true
		}
	}
	return value, found
}

func sortedKeys(headers map[string]string) []string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseCookieHeader splits a cookie header into cookies. Segments without
// '=' become a cookie with an empty value; empty segments are skipped.
func ParseCookieHeader(header string) []*http.Cookie {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	var cookies []*http.Cookie
	for _, segment := range strings.Split(header, cookieSep) {
		name, value, _ := strings.Cut(segment, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:  name,
			Value: strings.TrimSpace(value),
		})
	}
	return cookies
}

// SplitFormBody decides how a request body reaches the browser. headers must
// already be normalized. For POST and PUT whose CONTENT_TYPE is exactly
// application/x-www-form-urlencoded the body is decoded into parameters and
// the forwarded body is nil. Otherwise the parameters are empty and the body
// is returned unchanged.
//
// Decoding is lenient: pairs that fail to unescape are skipped. A raw ';'
// is kept as part of the value rather than splitting or dropping the pair.
func SplitFormBody(method string, headers map[string]string, body *string) (url.Values, *string) {
	params := url.Values{}
	if body == nil || !isFormMethod(method) || headers[ContentTypeKey] != FormContentType {
		return params, body
	}

	decoded, _ := url.ParseQuery(strings.ReplaceAll(*body, ";", "%3B"))
	for k, v := range decoded {
		params[k] = v
	}
	return params, nil
}

func isFormMethod(method string) bool {
	return method == http.MethodPost || method == http.MethodPut
}
