package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response is the shared response shape returned by every Client.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       io.ReadSeeker
	Duration   time.Duration
}

// ResponseFactory converts a native *http.Response into a Response.
type ResponseFactory func(resp *http.Response) (*Response, error)

// FromHTTPResponse buffers the body of resp and returns it as a Response.
// The native body is drained and closed.
func FromHTTPResponse(resp *http.Response) (*Response, error) {
	var data []byte
	if resp.Body != nil {
		defer resp.Body.Close()

		var err error
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
	}

	headers := make(http.Header, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = append([]string(nil), v...)
	}

	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     status,
		Headers:    headers,
		Body:       bytes.NewReader(data),
	}, nil
}

// Rewind moves the body back to offset zero.
func (r *Response) Rewind() error {
	if r.Body == nil {
		return nil
	}
	_, err := r.Body.Seek(0, io.SeekStart)
	return err
}

// BodyBytes returns the whole body and leaves the reader at offset zero.
func (r *Response) BodyBytes() []byte {
	if r.Body == nil {
		return nil
	}
	if err := r.Rewind(); err != nil {
		return nil
	}
	data, _ := io.ReadAll(r.Body)
	_ = r.Rewind()
	return data
}

func (r *Response) BodyString() string {
	return string(r.BodyBytes())
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.BodyBytes(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Header returns the first value of the named header, matched case-insensitively.
func (r *Response) Header(key string) string {
	if v := r.Headers.Get(key); v != "" {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
