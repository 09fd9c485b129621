package ember

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// ZipServant serves files from an archive decoded once, in full, at
// construction. It exclusively owns the decoded entry map; the archive bytes
// it was built from are not referenced afterwards.
type ZipServant struct {
	entries map[string]*zipEntry
}

// zipEntry is one file or directory stored in a `ZipServant`.
type zipEntry struct {
	name    string
	content []byte
	dir     bool
}

// newZipServant returns a new instance of the `ZipServant` loaded from the
// archive. Any failure while streaming through the archive is fatal to the
// construction.
func newZipServant(archive []byte) (*ZipServant, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("ember: failed to read archive: %v", err)
	}

	entries := map[string]*zipEntry{}
	for _, f := range zr.File {
		name := normalizeEntryName(f.Name)
		e := &zipEntry{
			name: name,
			dir:  f.FileInfo().IsDir(),
		}

		if !e.dir {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf(
					"ember: failed to open archive "+
						"entry %q: %v",
					f.Name,
					err,
				)
			}

			b, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf(
					"ember: failed to read archive "+
						"entry %q: %v",
					f.Name,
					err,
				)
			}

			e.content = b
		}

		entries[name] = e
	}

	return &ZipServant{
		entries: entries,
	}, nil
}

// normalizeEntryName strips the leading '/' and "./" from the name.
func normalizeEntryName(name string) string {
	name = strings.TrimPrefix(name, "/")
	name = strings.TrimPrefix(name, "./")
	return name
}

// serve resolves the remaining path of the req inside the entry map of the
// zs.
//
// The resolution prefers an exact file match, then falls back to directory
// indexes: the archive root for an empty path, the named directory for paths
// with a trailing '/' or a '#' fragment (the single-page-app case), and any
// implicit directory that stored names imply. Everything else is 404.
func (zs *ZipServant) serve(req *Request) *Response {
	p := strings.TrimPrefix(req.RemainingPath, "/")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	p = strings.ReplaceAll(p, "..", "")

	sanitized := p
	directoryPath := ""
	hasFragment := false
	if i := strings.IndexByte(p, '#'); i >= 0 {
		hasFragment = true
		directoryPath = strings.TrimSuffix(p[:i], "/")
	} else {
		directoryPath = strings.TrimSuffix(p, "/")
	}

	if e := zs.findFile(sanitized); e != nil && !e.dir {
		return zs.respond(e)
	}

	switch {
	case sanitized == "":
		if e := zs.findIndexInDirectory(""); e != nil {
			return zs.respond(e)
		}
	case strings.HasSuffix(sanitized, "/"):
		if e := zs.findIndexInDirectory(directoryPath); e != nil {
			return zs.respond(e)
		}
	case hasFragment:
		if e := zs.findIndexInDirectory(directoryPath); e != nil {
			return zs.respond(e)
		}
	case zs.isImplicitDirectory(sanitized):
		if e := zs.findIndexInDirectory(sanitized); e != nil {
			return zs.respond(e)
		}
	}

	return NotFound(req.Path)
}

// respond materializes a 200 response carrying the content of the e.
func (zs *ZipServant) respond(e *zipEntry) *Response {
	res := NewResponse(200)
	res.Header.Set("Content-Type", detectContentType(e.name, e.content))
	res.Body = e.content
	return res
}

// findFile returns the entry stored under the p, trying the keys p, "./p"
// and "/p" in that order.
func (zs *ZipServant) findFile(p string) *zipEntry {
	for _, key := range []string{p, "./" + p, "/" + p} {
		if e, ok := zs.entries[key]; ok {
			return e
		}
	}

	return nil
}

// findIndexInDirectory returns the "index.html" entry of the directory d,
// with the empty d meaning the archive root.
func (zs *ZipServant) findIndexInDirectory(d string) *zipEntry {
	if d == "" {
		return zs.findFile("index.html")
	}

	return zs.findFile(d + "/index.html")
}

// isImplicitDirectory reports whether any stored name lies beneath the p,
// which makes the p a directory even without a directory entry of its own.
func (zs *ZipServant) isImplicitDirectory(p string) bool {
	for name := range zs.entries {
		if strings.HasPrefix(name, p+"/") {
			return true
		}
	}

	return false
}
