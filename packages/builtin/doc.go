// Package builtin provides the template functions available in mock fixture
// bodies and headers.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(): current time in RFC 3339
//   - timestamp(), timestampMs(): current Unix time
//   - random(min, max): random integer in range
//   - randomString(length): random alphanumeric string
//   - base64(value): base64 encode a string
//   - urlEncode(value): query-escape a string
//
// Functions are invoked with the {{$name(args)}} syntax.
package builtin
