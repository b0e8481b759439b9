// Package model defines shared types for the gateway.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents a client request to be relayed to the emulator.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// Scheme and Host are the destination the client asked for, before
	// redirection. Host may carry a port.
	Scheme string
	Host   string
	// Path is the escaped request path.
	Path     string
	RawQuery string
	Header   http.Header
	Body     io.ReadCloser
}

// ProxyResponse represents the emulator response to be sent back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
