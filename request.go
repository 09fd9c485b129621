package ember

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Request is the handler-facing view of one fully assembled HTTP message.
//
// A `Request` is built once per message by the server, handed through the
// interceptor chain into the matching handler, and must be treated as
// read-only from then on.
type Request struct {
	// Method is the HTTP method of the request.
	//
	// E.g.: "GET"
	Method string

	// URI is the decoded request URI, including the query part when one
	// was sent.
	//
	// E.g.: "/users/42?verbose=1"
	URI string

	// Path is the decoded request URI up to the '?'.
	//
	// E.g.: "/users/42"
	Path string

	// RemainingPath is the suffix of the `Path` beyond what the matched
	// route consumed. It is empty when the route consumed the whole path.
	//
	// E.g.: "admin/index.html"
	RemainingPath string

	// PathParams maps every ':name' segment traversed during routing to
	// the corresponding original path segment.
	PathParams map[string]string

	// Query maps query parameter names to their decoded values. When a
	// name repeats, the last value wins. Empty names are dropped.
	Query map[string]string

	// Body is the fully buffered message body.
	Body []byte

	ctx        context.Context
	header     http.Header
	remoteAddr string
}

// Context returns the cooperative scope of the connection carrying the r. It
// is canceled when the channel closes, so handlers that suspend on I/O can
// stop waiting as soon as nobody is listening anymore.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}

	return context.Background()
}

// Header returns the first value of the named header of the r. The lookup is
// case-insensitive.
func (r *Request) Header(name string) string {
	return r.header.Get(name)
}

// Headers returns the full header map of the r.
func (r *Request) Headers() http.Header {
	return r.header
}

// BodyString returns the `Body` of the r as a string.
func (r *Request) BodyString() string {
	return string(r.Body)
}

// RemoteAddr returns the network address of the peer that sent the r.
func (r *Request) RemoteAddr() string {
	return r.remoteAddr
}

// assemble reconstitutes one complete `Request` from the hr. It returns a
// non-nil error `Response` when the message is malformed: an undecodable URI,
// a body that could not be read in full, or a Content-Length that disagrees
// with the number of body bytes actually received.
func (s *Server) assemble(hr *http.Request) (*Request, *Response) {
	rawPath, rawQuery := hr.RequestURI, ""
	if i := strings.IndexByte(rawPath, '?'); i >= 0 {
		rawPath, rawQuery = rawPath[:i], rawPath[i+1:]
	}

	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, BadRequest("undecodable URI")
	}

	body, err := io.ReadAll(hr.Body)
	if err != nil {
		return nil, BadRequest("Incomplete request.")
	}

	// The received byte count is compared against the raw declared
	// length; a body is never measured as text.
	if cl := hr.Header.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n != int64(len(body)) {
			return nil, BadRequest("Incomplete request.")
		}
	}

	uri := path
	if rawQuery != "" {
		uri += "?" + rawQuery
	}

	return &Request{
		Method:     hr.Method,
		URI:        uri,
		Path:       path,
		PathParams: map[string]string{},
		Query:      parseQuery(rawQuery),
		Body:       body,
		ctx:        hr.Context(),
		header:     hr.Header,
		remoteAddr: hr.RemoteAddr,
	}, nil
}

// parseQuery parses the rawQuery into a name-value map. Repeated names keep
// their last value and empty names are dropped; undecodable pairs are kept
// verbatim rather than rejected.
func parseQuery(rawQuery string) map[string]string {
	query := map[string]string{}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}

		name, value := pair, ""
		if i := strings.IndexByte(pair, '='); i >= 0 {
			name, value = pair[:i], pair[i+1:]
		}

		if n, err := url.QueryUnescape(name); err == nil {
			name = n
		}

		if name == "" {
			continue
		}

		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}

		query[name] = value
	}

	return query
}

// isUpgradeRequest reports whether the hr asks for a WebSocket upgrade: a
// Connection header carrying the "Upgrade" token and an Upgrade header naming
// "websocket", both case-insensitively.
func isUpgradeRequest(hr *http.Request) bool {
	return httpguts.HeaderValuesContainsToken(
		hr.Header["Connection"],
		"Upgrade",
	) && httpguts.HeaderValuesContainsToken(
		hr.Header["Upgrade"],
		"websocket",
	)
}
