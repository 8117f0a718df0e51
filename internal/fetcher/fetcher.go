// Package fetcher implements the Origin Fetcher (C3, §4.3): issuing the
// upstream request with redirects left unfollowed, rewriting any 3xx
// Location to the translated host, and deciding whether a response body
// belongs to the HTML pipeline or should be proxied verbatim.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// ForwardedRequestHeaders is the fixed, small set of request headers
// forwarded to the origin (§6).
var ForwardedRequestHeaders = []string{
	"User-Agent", "Accept-Language", "Accept-Encoding", "Referer", "Cookie", "Content-Type",
}

// StrippedResponseHeaders are removed from the origin response before it
// is relayed: the HTTP client already decompressed the body, so the
// original encoding/length headers would be wrong (§4.3, §6).
var StrippedResponseHeaders = []string{
	"Content-Encoding", "Transfer-Encoding", "Content-Length",
}

// Result is what Fetch returns to the orchestrator.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte // buffered for every non-redirect response; empty for redirects
	IsHTML     bool
	// RedirectLocation is set, already rewritten to translatedHost, when
	// the origin responded with a 3xx carrying a Location header.
	RedirectLocation string
}

// Client fetches from an origin without following redirects. http.Client
// with CheckRedirect returning http.ErrUseLastResponse satisfies this.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewClient builds an *http.Client configured with redirect=manual, as
// required by §4.3.
func NewClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Fetch issues method against originURL, forwarding the fixed header set
// from inbound, and buffering the request body so a non-idempotent
// method's redirect can be replayed to the client unchanged. Redirect
// Locations that reference originHostname are rewritten to
// translatedHost, preserving scheme/path/query/fragment.
func Fetch(ctx context.Context, client Client, method, originURL string, inbound http.Header, body []byte, originHostname, translatedHost string) (Result, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, originURL, bodyReader)
	if err != nil {
		return Result{}, fmt.Errorf("fetcher: build request: %w", err)
	}
	for _, h := range ForwardedRequestHeaders {
		if v := inbound.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetcher: upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		return Result{
			StatusCode:       resp.StatusCode,
			Header:           resp.Header,
			RedirectLocation: rewriteLocation(loc, originHostname, translatedHost),
		}, nil
	}

	contentType := resp.Header.Get("Content-Type")
	isHTML := IsHTMLContentType(contentType)

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("fetcher: read body: %w", err)
	}

	for _, h := range StrippedResponseHeaders {
		resp.Header.Del(h)
	}

	return Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       buf,
		IsHTML:     isHTML,
	}, nil
}

// IsHTMLContentType reports whether a Content-Type value belongs to the
// translation pipeline rather than the non-HTML passthrough path.
func IsHTMLContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// rewriteLocation replaces originHostname in loc's host with
// translatedHost, preserving scheme, path, query, and fragment.
// Relative Locations (no host component) are returned unchanged.
func rewriteLocation(loc, originHostname, translatedHost string) string {
	if loc == "" {
		return loc
	}
	if !strings.Contains(loc, "://") {
		return loc
	}
	schemeSep := strings.Index(loc, "://")
	rest := loc[schemeSep+3:]
	hostEnd := strings.IndexAny(rest, "/?#")
	host := rest
	tail := ""
	if hostEnd >= 0 {
		host = rest[:hostEnd]
		tail = rest[hostEnd:]
	}
	if strings.EqualFold(host, originHostname) {
		host = translatedHost
	}
	return loc[:schemeSep+3] + host + tail
}
