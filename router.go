package ember

import (
	"fmt"
	"net/http"
	"strings"
)

type (
	// router is the registry of all declared routes of a `Server` for the
	// HTTP request matching and the URL path params parsing.
	//
	// The tree is populated before the server starts and is treated as
	// immutable while serving, so concurrent lookups need no locking.
	router struct {
		server *Server

		tree *node
	}

	// node is a vertex of the routing tree. Its segment never contains a
	// '/'. The root node has an empty segment and carries no handlers. A
	// node holding a `FileServant` or a `ZipServant` is terminal: nothing
	// can be registered beneath it and matching consumes the whole tail.
	node struct {
		kind      nodeKind
		segment   string
		paramName string
		children  []*node
		handlers  map[string]Handler
		file      *FileServant
		zip       *ZipServant
	}

	// nodeKind is the kind of the `node`.
	nodeKind uint8

	// resolution is the outcome of a successful route lookup.
	resolution struct {
		handler   Handler
		node      *node
		params    map[string]string
		remaining string
	}
)

// node kinds
const (
	staticKind nodeKind = iota
	paramKind
)

// newRouter returns a new instance of the `router` with the s.
func newRouter(s *Server) *router {
	return &router{
		server: s,
		tree: &node{
			handlers: map[string]Handler{},
		},
	}
}

// register registers a new route for the method and the path with the matching
// h.
//
// A path segment starting with ':' declares a param whose name is the
// remainder of the segment. Param names must be unique within one path.
func (r *router) register(method, path string, h Handler) {
	n := r.mount(path)
	if _, ok := n.handlers[method]; ok {
		panic(fmt.Sprintf(
			"ember: the route [%s %s] is already registered",
			method,
			path,
		))
	}

	n.handlers[method] = h
}

// registerFile attaches the fs as a terminal servant node at the path.
func (r *router) registerFile(path string, fs *FileServant) {
	r.mountServant(path).file = fs
}

// registerZip attaches the zs as a terminal servant node at the path.
func (r *router) registerZip(path string, zs *ZipServant) {
	r.mountServant(path).zip = zs
}

// mount walks the tree along the path, creating intermediate nodes as needed,
// and returns the final node.
func (r *router) mount(path string) *node {
	if path == "" {
		panic("ember: the path cannot be empty")
	} else if path[0] != '/' {
		panic("ember: the path must start with the /")
	}

	cn := r.tree
	paramNames := []string{}
	for _, segment := range splitPath(path) {
		if segment == "" {
			panic("ember: the path cannot have empty segments")
		} else if strings.Contains(segment, "/") {
			panic("ember: the segment cannot contain slashes")
		} else if cn.terminal() {
			panic(fmt.Sprintf(
				"ember: cannot register beneath the terminal "+
					"servant at the %q",
				cn.segment,
			))
		}

		kind := staticKind
		paramName := ""
		if segment[0] == ':' {
			kind = paramKind
			paramName = segment[1:]
			if paramName == "" {
				panic("ember: the param segment must have a " +
					"name")
			}

			for _, pn := range paramNames {
				if pn == paramName {
					panic("ember: the path cannot have " +
						"duplicate param names")
				}
			}

			paramNames = append(paramNames, paramName)
		}

		nn := cn.childBySegment(kind, segment)
		if nn == nil {
			nn = &node{
				kind:      kind,
				segment:   segment,
				paramName: paramName,
				handlers:  map[string]Handler{},
			}
			cn.children = append(cn.children, nn)
		}

		cn = nn
	}

	return cn
}

// mountServant walks to the final node of the path and verifies it can become
// a terminal servant vertex.
func (r *router) mountServant(path string) *node {
	n := r.mount(path)
	switch {
	case n == r.tree:
		panic("ember: cannot attach a terminal servant at the tree " +
			"root")
	case n.kind == paramKind:
		panic("ember: cannot attach a terminal servant at a param " +
			"segment")
	case n.terminal():
		panic(fmt.Sprintf(
			"ember: a terminal servant is already attached at "+
				"the %q",
			path,
		))
	case len(n.children) > 0:
		panic(fmt.Sprintf(
			"ember: cannot attach a terminal servant at the %q: "+
				"routes are already registered beneath it",
			path,
		))
	}

	return n
}

// resolve resolves the method and the path to a `resolution`, or nil when no
// declared route accepts them.
//
// The traversal is depth-first and prefers deeper matches over shallower
// ones. At every level literal children are tried before param children, and
// servant terminals last, regardless of insertion order, so matching stays
// deterministic however the routes were declared.
func (r *router) resolve(method, path string) (*resolution, error) {
	if path == "" {
		return nil, errPathEmpty
	}

	params := map[string]string{}
	rn := r.tree.search(method, splitPath(path), 0, params)
	if rn == nil {
		return nil, nil
	}

	rn.params = params

	return rn, nil
}

// search descends from the n trying to consume segs[idx:].
func (n *node) search(
	method string,
	segs []string,
	idx int,
	params map[string]string,
) *resolution {
	if idx == len(segs) {
		if h, ok := n.handlers[method]; ok {
			return &resolution{
				handler: h,
			}
		}

		return nil
	}

	segment := segs[idx]

	for _, c := range n.children {
		if c.kind != staticKind ||
			!strings.EqualFold(c.segment, segment) {
			continue
		}

		if rn := c.search(method, segs, idx+1, params); rn != nil {
			return rn
		}
	}

	if segment != "" {
		for _, c := range n.children {
			if c.kind != paramKind {
				continue
			}

			params[c.paramName] = segment
			if rn := c.search(
				method,
				segs,
				idx+1,
				params,
			); rn != nil {
				return rn
			}

			delete(params, c.paramName)
		}
	}

	// A servant terminal consumes the entire tail, so specific routes
	// registered beneath the same prefix have already won by now.
	for _, c := range n.children {
		if !c.terminal() ||
			!strings.EqualFold(c.segment, segment) ||
			!c.accepts(method) {
			continue
		}

		return &resolution{
			node:      c,
			remaining: strings.Join(segs[idx+1:], "/"),
		}
	}

	if h, ok := n.handlers[method]; ok {
		return &resolution{
			handler:   h,
			remaining: strings.Join(segs[idx:], "/"),
		}
	}

	return nil
}

// terminal reports whether the n is a terminal servant vertex.
func (n *node) terminal() bool {
	return n.file != nil || n.zip != nil
}

// accepts reports whether the servant at the n accepts the method.
func (n *node) accepts(method string) bool {
	return method == http.MethodGet
}

// childBySegment returns a child of the n with the kind whose segment equals
// the segment, matching literals case-insensitively.
func (n *node) childBySegment(kind nodeKind, segment string) *node {
	for _, c := range n.children {
		if c.kind != kind {
			continue
		}

		if kind == staticKind {
			if strings.EqualFold(c.segment, segment) {
				return c
			}
		} else if c.segment == segment {
			return c
		}
	}

	return nil
}

// splitPath splits the p into its '/'-separated segments, discarding the
// empty leading element. The root path yields no segments.
func splitPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}

	return strings.Split(p, "/")
}
