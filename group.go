package ember

import "net/http"

// Group registers routes that share a common path prefix. It simply forwards
// to the router of the parent `Server` with the prefix prepended, so every
// registration rule of the server applies unchanged.
type Group struct {
	// Server is where the group registers.
	Server *Server

	// Prefix is the path prefix shared by the routes of the group.
	Prefix string
}

// Group returns a new instance of the `Group` with the path prefix that
// inherits from the s.
func (s *Server) Group(prefix string) *Group {
	return &Group{
		Server: s,
		Prefix: prefix,
	}
}

// Group returns a new instance of the `Group` nested under the g.
func (g *Group) Group(prefix string) *Group {
	return &Group{
		Server: g.Server,
		Prefix: g.Prefix + prefix,
	}
}

// Route registers a new route for the method and the prefixed path with the
// matching h.
func (g *Group) Route(method, path string, h Handler) {
	g.Server.Route(method, g.Prefix+path, h)
}

// GET registers a new GET route for the prefixed path with the matching h.
func (g *Group) GET(path string, h Handler) {
	g.Route(http.MethodGet, path, h)
}

// HEAD registers a new HEAD route for the prefixed path with the matching h.
func (g *Group) HEAD(path string, h Handler) {
	g.Route(http.MethodHead, path, h)
}

// POST registers a new POST route for the prefixed path with the matching h.
func (g *Group) POST(path string, h Handler) {
	g.Route(http.MethodPost, path, h)
}

// PUT registers a new PUT route for the prefixed path with the matching h.
func (g *Group) PUT(path string, h Handler) {
	g.Route(http.MethodPut, path, h)
}

// PATCH registers a new PATCH route for the prefixed path with the matching
// h.
func (g *Group) PATCH(path string, h Handler) {
	g.Route(http.MethodPatch, path, h)
}

// DELETE registers a new DELETE route for the prefixed path with the
// matching h.
func (g *Group) DELETE(path string, h Handler) {
	g.Route(http.MethodDelete, path, h)
}

// OPTIONS registers a new OPTIONS route for the prefixed path with the
// matching h.
func (g *Group) OPTIONS(path string, h Handler) {
	g.Route(http.MethodOptions, path, h)
}

// TRACE registers a new TRACE route for the prefixed path with the matching
// h.
func (g *Group) TRACE(path string, h Handler) {
	g.Route(http.MethodTrace, path, h)
}

// FILE attaches a `FileServant` terminal at the prefixed path.
func (g *Group) FILE(path, directory string) {
	g.Server.FILE(g.Prefix+path, directory)
}

// ZIP attaches a `ZipServant` terminal at the prefixed path.
func (g *Group) ZIP(path string, archive []byte) error {
	return g.Server.ZIP(g.Prefix+path, archive)
}
