package client

import "context"

// Client issues an HTTP-style request and returns the buffered response.
// A nil headers map is treated as empty and a nil body as absent.
type Client interface {
	MakeRequest(ctx context.Context, method, uri string, headers map[string]string, body *string) (*Response, error)
}

// Body returns a pointer to s for use as a MakeRequest body.
func Body(s string) *string {
	return &s
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*KernelClient)(nil)
)
