// Package browser simulates a browser against an in-process http.Handler.
//
// A Browser turns server-variable style request parts (HTTP_* header keys,
// CONTENT_TYPE, form parameters) into an *http.Request, serves it with an
// httptest.ResponseRecorder and keeps a cookie jar across requests, so a
// sequence of calls behaves like one browser session. It satisfies
// client.Browser and is what a client.KernelClient is normally bound to.
package browser
