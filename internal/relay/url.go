package relay

import (
	"net"
	"net/url"
	"strconv"
)

// RequestFromURL builds a Request from an absolute request URL. A missing
// port defaults from the scheme.
func RequestFromURL(u *url.URL, body []byte) Request {
	scheme := u.Scheme
	if scheme != "https" {
		scheme = "http"
	}

	port := 80
	if scheme == "https" {
		port = 443
	}
	if p, err := strconv.Atoi(u.Port()); err == nil && p > 0 {
		port = p
	}

	return Request{
		Host:   u.Hostname(),
		Port:   port,
		Scheme: scheme,
		Path:   ensureLeadingSlash(u.EscapedPath()),
		Body:   body,
	}
}

// ApplyURL writes the request's scheme, host, port and path into u. The query
// and fragment are left alone.
func (r *Request) ApplyURL(u *url.URL) {
	u.Scheme = r.Scheme
	u.Host = net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
	if p, err := url.PathUnescape(r.Path); err == nil {
		u.Path = p
		u.RawPath = r.Path
	} else {
		u.Path = r.Path
		u.RawPath = ""
	}
}
