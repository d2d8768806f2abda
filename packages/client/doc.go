// Package client provides a single request/response contract for test code.
//
// Two implementations satisfy Client:
//   - HTTPClient sends the request over a real HTTP transport
//   - KernelClient routes the request into an in-process simulated browser
//
// Both return a fully buffered Response whose body is positioned at offset zero.
package client
