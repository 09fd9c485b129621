/*
Package ember implements a small, embeddable HTTP/1.1 server library for Go.

It is meant to be linked directly into a host process that wishes to expose a
local control API: the host declares REST routes, serves files from disk or
from an in-memory zip archive, upgrades selected requests to WebSocket, and
broadcasts text frames to every connected peer.

Declaring a route usually takes two params:

	s := ember.New()
	s.GET("/users/:UserID", func(req *ember.Request) (*ember.Response, error) {
		return ember.JSON(200, map[string]string{
			"user_id": req.PathParams["UserID"],
		}), nil
	})

The first param is a route path whose '/'-separated segments are either
literals, matched case-insensitively, or params: a segment starting with ':'
binds its remainder as a param name, and every traversed param ends up in the
`Request.PathParams`. The second param is a `Handler` that serves the
requests matching this route.

Static content attaches as terminal servants that consume the whole path tail
beneath them:

	s.FILE("/files", "/var/www")
	s.ZIP("/static", archiveBytes)

A server starts on a chosen port (0 picks any) and reports the port it
actually bound:

	port, err := s.Start(0)
	...
	s.Broadcast("hello")
	...
	s.Stop()
*/
package ember

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server is the top-level struct of this library.
//
// Configuration fields must not be modified after calling the
// `Server.Start`; the routing tree and interceptor chains are likewise fixed
// once serving begins.
//
// New instances of the `Server` should only be created by calling the `New`.
type Server struct {
	// Host is the host part of the TCP address the server listens on.
	//
	// Default value: "localhost"
	Host string `mapstructure:"host"`

	// ReadTimeout is the maximum duration allowed for the transport to
	// read a request entirely, including the body part.
	//
	// Default value: 0
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration allowed for the transport to
	// write a response.
	//
	// Default value: 0
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum duration allowed for the transport to
	// wait for the next request on a kept-alive connection.
	//
	// Default value: 0
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// MaxHeaderBytes is the maximum number of bytes allowed for the
	// transport to read parsing the request headers.
	//
	// Default value: 1048576
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`

	// WebSocketHandshakeTimeout is the maximum duration allowed for a
	// WebSocket handshake to complete.
	//
	// Default value: 0
	WebSocketHandshakeTimeout time.Duration `mapstructure:"websocket_handshake_timeout"`

	// NativeTransport asks for the OS-optimized event notification
	// mechanism when one is available.
	//
	// The Go runtime always drives sockets through the platform's native
	// poller, so the field only exists to keep configuration files
	// portable. It changes nothing.
	//
	// Default value: false
	NativeTransport bool `mapstructure:"native_transport"`

	// MinifierEnabled indicates whether response bodies of the matching
	// MIME types are minified before write.
	//
	// Default value: false
	MinifierEnabled bool `mapstructure:"minifier_enabled"`

	// MinifierMIMETypes is the list of MIME types that trigger the
	// minimization.
	//
	// Default value: ["text/html", "text/css", "application/javascript",
	// "application/json", "application/xml", "image/svg+xml"]
	MinifierMIMETypes []string `mapstructure:"minifier_mime_types"`

	// AssetCacheEnabled indicates whether `FILE` terminals keep served
	// file contents in runtime memory to reduce disk I/O pressure.
	//
	// Default value: false
	AssetCacheEnabled bool `mapstructure:"asset_cache_enabled"`

	// AssetCacheMaxBytes is the maximum number of bytes of runtime
	// memory allowed for one `FILE` terminal's asset cache.
	//
	// Default value: 33554432
	AssetCacheMaxBytes int `mapstructure:"asset_cache_max_bytes"`

	// ConfigFile is the path to the configuration file that will be
	// parsed into the matching fields before starting the server.
	//
	// The ".json", ".toml", ".yaml"/".yml" and ".ini" extensions are
	// understood.
	//
	// Default value: ""
	ConfigFile string `mapstructure:"-"`

	// Logger is the logging sink of the server.
	//
	// Default value: a fresh logrus logger writing to standard error
	Logger logrus.FieldLogger `mapstructure:"-"`

	router   *router
	registry *peerRegistry
	minifier *minifier

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	upgradeInterceptors  []UpgradeInterceptor

	stateMutex sync.Mutex
	state      serverState
	listener   *keepAliveListener
	httpServer *http.Server
}

// Handler defines a function to serve requests.
//
// The req must be treated as read-only. A returned error produces a 500
// response carrying the error message; so does a panic.
type Handler func(req *Request) (*Response, error)

// New returns a new instance of the `Server` with default field values.
func New() *Server {
	s := &Server{
		Host:           "localhost",
		MaxHeaderBytes: 1 << 20,
		MinifierMIMETypes: []string{
			"text/html",
			"text/css",
			"application/javascript",
			"application/json",
			"application/xml",
			"image/svg+xml",
		},
		AssetCacheMaxBytes: 32 << 20,
		Logger:             newDefaultLogger(),
	}

	s.router = newRouter(s)
	s.registry = newPeerRegistry(s)
	s.minifier = newMinifier()

	return s
}

// Route registers a new route for the method and the path with the matching
// h in the router of the s.
//
// The path may consist of literal and ':'-prefixed param segments.
func (s *Server) Route(method, path string, h Handler) {
	s.router.register(method, path, h)
}

// GET registers a new GET route for the path with the matching h in the
// router of the s.
func (s *Server) GET(path string, h Handler) {
	s.Route(http.MethodGet, path, h)
}

// HEAD registers a new HEAD route for the path with the matching h in the
// router of the s.
func (s *Server) HEAD(path string, h Handler) {
	s.Route(http.MethodHead, path, h)
}

// POST registers a new POST route for the path with the matching h in the
// router of the s.
func (s *Server) POST(path string, h Handler) {
	s.Route(http.MethodPost, path, h)
}

// PUT registers a new PUT route for the path with the matching h in the
// router of the s.
func (s *Server) PUT(path string, h Handler) {
	s.Route(http.MethodPut, path, h)
}

// PATCH registers a new PATCH route for the path with the matching h in the
// router of the s.
func (s *Server) PATCH(path string, h Handler) {
	s.Route(http.MethodPatch, path, h)
}

// DELETE registers a new DELETE route for the path with the matching h in
// the router of the s.
func (s *Server) DELETE(path string, h Handler) {
	s.Route(http.MethodDelete, path, h)
}

// OPTIONS registers a new OPTIONS route for the path with the matching h in
// the router of the s.
func (s *Server) OPTIONS(path string, h Handler) {
	s.Route(http.MethodOptions, path, h)
}

// TRACE registers a new TRACE route for the path with the matching h in the
// router of the s.
func (s *Server) TRACE(path string, h Handler) {
	s.Route(http.MethodTrace, path, h)
}

// FILE attaches a terminal servant node at the path that serves GET requests
// from the directory. The whole path tail beneath the path is consumed by
// the servant.
func (s *Server) FILE(path, directory string) {
	s.router.registerFile(path, newFileServant(s, directory))
}

// ZIP attaches a terminal servant node at the path that serves GET requests
// from the archive, which is decoded into memory once, here. A corrupt
// archive fails the registration.
func (s *Server) ZIP(path string, archive []byte) error {
	zs, err := newZipServant(archive)
	if err != nil {
		return err
	}

	s.router.registerZip(path, zs)

	return nil
}

// Broadcast encodes the text once into a text frame and fans it out to every
// connected WebSocket peer without blocking on their sockets. Peers whose
// channel is closed, or whose write fails, are dropped from the registry;
// the live ones all receive the identical byte sequence.
func (s *Server) Broadcast(text string) {
	s.broadcastFrame(websocket.TextMessage, []byte(text), false)
}

// BroadcastSync is the sequential variant of the `Server.Broadcast`: it
// awaits each peer's write in registration order before moving on.
func (s *Server) BroadcastSync(text string) {
	s.broadcastFrame(websocket.TextMessage, []byte(text), true)
}

// BroadcastBinary fans the b out to every connected WebSocket peer as a
// binary frame.
func (s *Server) BroadcastBinary(b []byte) {
	s.broadcastFrame(websocket.BinaryMessage, b, false)
}

// broadcastFrame fans one frame out over the peer registry of the s.
func (s *Server) broadcastFrame(
	messageType int,
	payload []byte,
	sequential bool,
) {
	onFailure := func(p *peer, err error) {
		s.Logger.WithError(err).WithField("peer", p.ID()).Warn(
			"ember: broadcast write failed",
		)
	}

	var err error
	if sequential {
		err = s.registry.broadcastSync(messageType, payload, onFailure)
	} else {
		err = s.registry.broadcast(messageType, payload, onFailure)
	}

	if err != nil {
		s.Logger.WithError(err).Error("ember: broadcast failed")
	}
}

// ServeHTTP implements the `http.Handler`. It is the conductor of one
// request-response cycle: assembly, validation, upgrade diversion, routing,
// the interceptor chains and the handler, ending in one materialized
// response written back to the transport.
func (s *Server) ServeHTTP(rw http.ResponseWriter, hr *http.Request) {
	req, malformed := s.assemble(hr)
	if malformed != nil {
		s.write(rw, req, malformed)
		return
	}

	if isUpgradeRequest(hr) {
		s.handleUpgrade(rw, hr, req)
		return
	}

	s.write(rw, req, s.conduct(req))
}

// conduct resolves the req and produces its response: routing misses turn
// into 404s, unrouted OPTIONS pre-flights into 204s, and resolved routes go
// through the dispatch. The on-response interceptors see every outcome.
func (s *Server) conduct(req *Request) *Response {
	var res *Response

	rn, err := s.router.resolve(req.Method, req.Path)
	if err != nil {
		res = BadRequest(strings.TrimPrefix(err.Error(), "ember: "))
		return s.applyResponseInterceptors(req, res)
	}

	// HEAD falls back to the matching GET route; the body is suppressed
	// at write time.
	if rn == nil && req.Method == http.MethodHead {
		rn, _ = s.router.resolve(http.MethodGet, req.Path)
	}

	switch {
	case rn != nil:
		req.PathParams = rn.params
		req.RemainingPath = rn.remaining
		res = s.dispatch(req, rn)
	case req.Method == http.MethodOptions:
		res = NoContent()
	default:
		res = NotFound(req.Path)
	}

	return s.applyResponseInterceptors(req, res)
}

// dispatch runs the req through the on-request interceptors and the resolved
// handler, containing failures of each stage to a 500 response.
func (s *Server) dispatch(req *Request, rn *resolution) *Response {
	for _, ri := range s.requestInterceptors {
		short, failure := s.invokeRequestInterceptor(ri, req)
		if failure != nil {
			return failure
		}

		if short != nil {
			return short
		}
	}

	return s.invokeHandler(req, rn)
}

// applyResponseInterceptors runs the res through the on-response chain in
// registration order, each interceptor seeing the output of the previous
// one. A panicking interceptor yields a 500 and aborts the rest.
func (s *Server) applyResponseInterceptors(
	req *Request,
	res *Response,
) *Response {
	for _, ri := range s.responseInterceptors {
		next, failure := s.invokeResponseInterceptor(ri, req, res)
		if failure != nil {
			return failure
		}

		res = next
	}

	return res
}

// invokeHandler invokes the destination of the rn for the req, converting
// returned errors and panics into 500 responses.
func (s *Server) invokeHandler(req *Request, rn *resolution) (res *Response) {
	defer func() {
		if v := recover(); v != nil {
			s.Logger.WithFields(logrus.Fields{
				"method": req.Method,
				"path":   req.Path,
				"stack":  string(debug.Stack()),
			}).Errorf("ember: handler panic: %v", v)

			res = InternalServerError(fmt.Sprint(v))
		}
	}()

	switch {
	case rn.node != nil && rn.node.file != nil:
		return rn.node.file.serve(req)
	case rn.node != nil && rn.node.zip != nil:
		return rn.node.zip.serve(req)
	}

	r, err := rn.handler(req)
	if err != nil {
		s.Logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.Path,
		}).WithError(err).Error("ember: handler failed")

		return InternalServerError(err.Error())
	}

	if r == nil {
		return InternalServerError("nil response")
	}

	return r
}

// invokeRequestInterceptor invokes the ri for the req, converting a panic
// into a 500 failure response.
func (s *Server) invokeRequestInterceptor(
	ri RequestInterceptor,
	req *Request,
) (res, failure *Response) {
	defer func() {
		if v := recover(); v != nil {
			failure = s.interceptorFailure(req, v)
		}
	}()

	return ri(req), nil
}

// invokeResponseInterceptor invokes the ri for the req and the in, converting
// a panic into a 500 failure response.
func (s *Server) invokeResponseInterceptor(
	ri ResponseInterceptor,
	req *Request,
	in *Response,
) (res, failure *Response) {
	defer func() {
		if v := recover(); v != nil {
			res = nil
			failure = s.interceptorFailure(req, v)
		}
	}()

	res = ri(req, in)
	if res == nil {
		res = in
	}

	return res, nil
}

// invokeUpgradeInterceptor invokes the ui for the req, converting a panic
// into a 500 failure response.
func (s *Server) invokeUpgradeInterceptor(
	ui UpgradeInterceptor,
	req *Request,
) (res, failure *Response) {
	defer func() {
		if v := recover(); v != nil {
			failure = s.interceptorFailure(req, v)
		}
	}()

	return ui(req), nil
}

// interceptorFailure logs a recovered interceptor panic v and materializes
// the 500 response for it.
func (s *Server) interceptorFailure(req *Request, v interface{}) *Response {
	s.Logger.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.Path,
		"stack":  string(debug.Stack()),
	}).Errorf("ember: middleware panic: %v", v)

	return InternalServerError(fmt.Sprint(v))
}

// stringSliceContains reports whether the ss contains the s. The
// caseInsensitive indicates whether to ignore case when comparing.
func stringSliceContains(ss []string, s string, caseInsensitive bool) bool {
	for _, v := range ss {
		if v == s || (caseInsensitive && strings.EqualFold(v, s)) {
			return true
		}
	}

	return false
}
