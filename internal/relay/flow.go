// Package relay redirects AWS API traffic to a local emulator and patches the
// emulator's replies where its behavior differs from AWS.
package relay

import "unicode/utf8"

// Flow is one intercepted request/response transaction. Host runtimes build a
// Flow per request, pass it to OnRequest, forward the request and then pass
// the same Flow to OnResponse once the reply body is available.
type Flow struct {
	Request  Request
	Response *Response // nil until the upstream reply arrives
}

// Request holds the addressing and body of an outgoing request.
type Request struct {
	Host   string
	Port   int
	Scheme string
	// Path is the escaped request path. It always begins with "/".
	Path string
	Body []byte
}

// Response holds the body of an upstream reply.
type Response struct {
	Body []byte
}

// Text returns the request body as text. It reports false when there is no
// body or the body is not valid UTF-8.
func (r *Request) Text() (string, bool) {
	return bodyText(r.Body)
}

// Text returns the response body as text. It reports false when there is no
// body or the body is not valid UTF-8.
func (r *Response) Text() (string, bool) {
	if r == nil {
		return "", false
	}
	return bodyText(r.Body)
}

func bodyText(b []byte) (string, bool) {
	if b == nil || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}
