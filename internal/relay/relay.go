package relay

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Emulator defaults. LocalStack serves every AWS service on one edge port.
const (
	DefaultEmulatorHost = "127.0.0.1"
	DefaultEmulatorPort = 4566
)

// s3HostInfix marks a virtual-hosted S3 bucket host, with or without a region
// label after it: <bucket>.s3.amazonaws.com, <bucket>.s3.<region>.amazonaws.com.
const s3HostInfix = ".s3."

// Markers of an EC2 DescribeRegions call filtered on opt-in-status=not-opted-in.
var regionOptInMarkers = []string{"DescribeRegions", "opt-in-status", "not-opted-in"}

// regionPlaceholder replaces every occurrence of regionSubstrings in matched
// responses, so no listed region looks like a real one.
const regionPlaceholder = "fake"

var regionSubstrings = []string{"east", "west"}

// Target is the emulator endpoint every request is redirected to.
type Target struct {
	Host string
	Port int
}

// DefaultTarget is LocalStack's default edge endpoint.
var DefaultTarget = Target{Host: DefaultEmulatorHost, Port: DefaultEmulatorPort}

// URL returns the plain-HTTP base URL of the target.
func (t Target) URL() string {
	return "http://" + net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Validate reports whether the target can be used as a redirect destination.
func (t Target) Validate() error {
	if t.Host == "" {
		return fmt.Errorf("emulator host is required")
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("emulator port must be 1–65535; got %d", t.Port)
	}
	return nil
}

// BucketMatch is the result of MatchBucketHost.
type BucketMatch struct {
	VirtualHosted bool
	Bucket        string
}

// MatchBucketHost reports whether host addresses an S3 bucket in virtual-host
// style and, if so, which bucket. The bucket is the first label of the host,
// returned verbatim. The bare service hosts (s3.amazonaws.com,
// s3.<region>.amazonaws.com) do not match.
func MatchBucketHost(host string) BucketMatch {
	i := indexFoldASCII(host, s3HostInfix)
	if i <= 0 {
		return BucketMatch{}
	}
	bucket, _, _ := strings.Cut(host[:i], ".")
	return BucketMatch{VirtualHosted: true, Bucket: bucket}
}

// indexFoldASCII returns the byte offset of the first ASCII case-insensitive
// occurrence of sub in s, or -1. Offsets always refer to s itself.
func indexFoldASCII(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

// MatchesRegionOptInFilter reports whether a request body is a DescribeRegions
// call asking for regions that are not opted in.
func MatchesRegionOptInFilter(text string) bool {
	for _, m := range regionOptInMarkers {
		if !strings.Contains(text, m) {
			return false
		}
	}
	return true
}

// Relay rewrites flows so they reach the emulator. It holds no mutable state
// and is safe for concurrent use.
type Relay struct {
	target Target
}

// New returns a Relay redirecting to target.
func New(target Target) (*Relay, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	return &Relay{target: target}, nil
}

// Target returns the emulator endpoint flows are redirected to.
func (r *Relay) Target() Target {
	return r.target
}

// OnRequest points the request at the emulator. Virtual-hosted bucket requests
// are first converted to path style (/<bucket><path>), since the original host
// is lost once the request is redirected.
func (r *Relay) OnRequest(f *Flow) BucketMatch {
	req := &f.Request

	m := MatchBucketHost(req.Host)
	if m.VirtualHosted {
		req.Path = "/" + m.Bucket + ensureLeadingSlash(req.Path)
	}

	// Always last, so no branch above can leave the request on AWS.
	req.Host = r.target.Host
	req.Port = r.target.Port
	req.Scheme = "http"
	return m
}

// OnResponse replaces the region substrings in the reply to a DescribeRegions
// call filtered on not-opted-in regions. LocalStack ignores the filter and
// returns every region; the placeholder makes the client see none of them as
// usable. It reports whether the rewrite was applied.
func (r *Relay) OnResponse(f *Flow) bool {
	if !r.RewritesResponse(f) {
		return false
	}
	body, ok := f.Response.Text()
	if !ok {
		return false
	}
	for _, s := range regionSubstrings {
		body = strings.ReplaceAll(body, s, regionPlaceholder)
	}
	f.Response.Body = []byte(body)
	return true
}

// RewritesResponse reports whether OnResponse may change the reply to f.
// Runtimes that stream bodies use it to decide which replies to buffer.
func (r *Relay) RewritesResponse(f *Flow) bool {
	text, ok := f.Request.Text()
	return ok && MatchesRegionOptInFilter(text)
}

func ensureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
