package builtin

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type Func func(args []string) (any, error)

type Registry struct {
	funcs map[string]Func
	now   func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = func([]string) (any, error) { return r.now().UTC().Format(time.RFC3339), nil }
	r.funcs["timestamp"] = func([]string) (any, error) { return r.now().Unix(), nil }
	r.funcs["timestampMs"] = func([]string) (any, error) { return r.now().UnixMilli(), nil }
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["base64"] = funcBase64
	r.funcs["urlEncode"] = funcURLEncode
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

var (
	funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)
	placeholder     = regexp.MustCompile(`\{\{\s*\$([^}]+?)\s*\}\}`)
)

// Call evaluates an expression such as `random(1, 10)`. ok is false when the
// expression is not a call to a registered function.
func (r *Registry) Call(expr string) (value any, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, false, nil
	}

	fn, found := r.funcs[matches[1]]
	if !found {
		return nil, false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	value, err = fn(args)
	if err != nil {
		return nil, true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return value, true, nil
}

// Expand replaces every {{$fn(args)}} placeholder in s. Unknown functions are
// left in place; the first function error is returned.
func (r *Registry) Expand(s string) (string, error) {
	var firstErr error
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		expr := placeholder.FindStringSubmatch(match)[1]
		value, ok, err := r.Call(expr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		if !ok {
			return match
		}
		return fmt.Sprintf("%v", value)
	})
	return out, firstErr
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func funcUUID(_ []string) (any, error) {
	return uuid.New().String(), nil
}

func funcRandom(args []string) (any, error) {
	min, max := 0, 100
	if len(args) >= 2 {
		var err error
		if min, err = strconv.Atoi(args[0]); err != nil {
			return nil, fmt.Errorf("min argument %q is not a valid integer", args[0])
		}
		if max, err = strconv.Atoi(args[1]); err != nil {
			return nil, fmt.Errorf("max argument %q is not a valid integer", args[1])
		}
	}
	if max < min {
		return nil, fmt.Errorf("max %d is less than min %d", max, min)
	}
	return rand.Intn(max-min+1) + min, nil
}

func funcRandomString(args []string) (any, error) {
	length := 16
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return nil, fmt.Errorf("length argument %q is not a valid length", args[0])
		}
		length = v
	}

	result := make([]byte, length)
	for i := range result {
		result[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}
	return string(result), nil
}

func funcBase64(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func funcURLEncode(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return url.QueryEscape(args[0]), nil
}
