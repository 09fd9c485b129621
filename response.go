package ember

import (
	"encoding/json"
	"encoding/xml"
	"mime"
	"net/http"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/valyala/bytebufferpool"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"
)

// Response is a fully materialized HTTP response: a status code, a header map
// and a complete body. Nothing is streamed; the body is assembled in full
// before it reaches the wire, and Content-Length always equals its length.
type Response struct {
	// Status is the status code.
	//
	// E.g.: 200
	Status int

	// Header is the header map.
	Header http.Header

	// Body is the message body.
	Body []byte
}

// NewResponse returns a new instance of the `Response` with the status and an
// empty header map.
func NewResponse(status int) *Response {
	return &Response{
		Status: status,
		Header: http.Header{},
	}
}

// SetHeader sets the header entry of the r associated with the name to the
// value and returns the r.
func (r *Response) SetHeader(name, value string) *Response {
	r.Header.Set(name, value)
	return r
}

// Text returns a "text/plain" response with the status and the body.
func Text(status int, body string) *Response {
	r := NewResponse(status)
	r.Header.Set("Content-Type", "text/plain; charset=utf-8")
	r.Body = []byte(body)
	return r
}

// HTML returns a "text/html" response with the status and the body.
func HTML(status int, body string) *Response {
	r := NewResponse(status)
	r.Header.Set("Content-Type", "text/html; charset=utf-8")
	r.Body = []byte(body)
	return r
}

// JSON returns an "application/json" response with the status and a body
// encoded from the v. Encoding failures degrade to a 500 response carrying
// the encoder's message.
func JSON(status int, v interface{}) *Response {
	b, err := json.Marshal(v)
	if err != nil {
		return InternalServerError(err.Error())
	}

	r := NewResponse(status)
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.Body = b

	return r
}

// XML returns an "application/xml" response with the status and a body
// encoded from the v.
func XML(status int, v interface{}) *Response {
	b, err := xml.Marshal(v)
	if err != nil {
		return InternalServerError(err.Error())
	}

	r := NewResponse(status)
	r.Header.Set("Content-Type", "application/xml; charset=utf-8")
	r.Body = append([]byte(xml.Header), b...)

	return r
}

// TOML returns an "application/toml" response with the status and a body
// encoded from the v.
func TOML(status int, v interface{}) *Response {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := toml.NewEncoder(buf).Encode(v); err != nil {
		return InternalServerError(err.Error())
	}

	r := NewResponse(status)
	r.Header.Set("Content-Type", "application/toml; charset=utf-8")
	r.Body = append([]byte(nil), buf.B...)

	return r
}

// YAML returns an "application/yaml" response with the status and a body
// encoded from the v.
func YAML(status int, v interface{}) *Response {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := yaml.NewEncoder(buf).Encode(v); err != nil {
		return InternalServerError(err.Error())
	}

	r := NewResponse(status)
	r.Header.Set("Content-Type", "application/yaml; charset=utf-8")
	r.Body = append([]byte(nil), buf.B...)

	return r
}

// Msgpack returns an "application/msgpack" response with the status and a
// body encoded from the v.
func Msgpack(status int, v interface{}) *Response {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return InternalServerError(err.Error())
	}

	r := NewResponse(status)
	r.Header.Set("Content-Type", "application/msgpack")
	r.Body = b

	return r
}

// Protobuf returns an "application/protobuf" response with the status and a
// body encoded from the v.
func Protobuf(status int, v proto.Message) *Response {
	b, err := proto.Marshal(v)
	if err != nil {
		return InternalServerError(err.Error())
	}

	r := NewResponse(status)
	r.Header.Set("Content-Type", "application/protobuf")
	r.Body = b

	return r
}

// NoContent returns a 204 response with a zero Content-Length.
func NoContent() *Response {
	r := NewResponse(http.StatusNoContent)
	r.Header.Set("Content-Length", "0")
	return r
}

// NotFound returns a 404 response whose JSON body names the path that
// resolved to nothing.
func NotFound(path string) *Response {
	b, _ := json.Marshal(map[string]string{
		"path":   path,
		"reason": "no route matched",
	})

	r := NewResponse(http.StatusNotFound)
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.Body = b

	return r
}

// BadRequest returns a 400 response with a JSON body carrying the reason.
func BadRequest(reason string) *Response {
	return errorResponse(http.StatusBadRequest, reason)
}

// Forbidden returns a 403 response with a JSON body carrying the reason.
func Forbidden(reason string) *Response {
	return errorResponse(http.StatusForbidden, reason)
}

// InternalServerError returns a 500 response with a JSON body carrying the
// reason.
func InternalServerError(reason string) *Response {
	return errorResponse(http.StatusInternalServerError, reason)
}

// errorResponse returns a response with the status and a JSON body carrying
// the reason.
func errorResponse(status int, reason string) *Response {
	b, _ := json.Marshal(map[string]string{
		"reason": reason,
	})

	r := NewResponse(status)
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.Body = b

	return r
}

// write serializes the res onto the rw: the Content-Type is completed for
// non-empty bodies, the matching MIME types are minified when the feature is
// on, and the Content-Length is always set to the exact body byte length.
// HEAD requests get headers only.
func (s *Server) write(rw http.ResponseWriter, req *Request, res *Response) {
	body := res.Body

	ct := res.Header.Get("Content-Type")
	if ct == "" && len(body) > 0 {
		ct = detectContentType("", body)
		res.Header.Set("Content-Type", ct)
	}

	if s.MinifierEnabled && len(body) > 0 {
		if mt, _, err := mime.ParseMediaType(ct); err == nil &&
			stringSliceContains(s.MinifierMIMETypes, mt, true) {
			if b, err := s.minifier.minify(mt, body); err == nil {
				body = b
			} else {
				s.Logger.WithError(err).Warn(
					"ember: response minification failed",
				)
			}
		}
	}

	header := rw.Header()
	for name, values := range res.Header {
		header[name] = values
	}

	header.Set("Content-Length", strconv.Itoa(len(body)))
	rw.WriteHeader(res.Status)

	if req != nil && req.Method == http.MethodHead {
		return
	}

	if len(body) > 0 {
		rw.Write(body)
	}
}
