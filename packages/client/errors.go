package client

import "errors"

var (
	// ErrBrowserNotSet is returned by KernelClient when no browser has been bound.
	ErrBrowserNotSet = errors.New("browser not set")

	// ErrNoResponse is returned when the bound browser produced no response.
	ErrNoResponse = errors.New("browser returned no response")
)
