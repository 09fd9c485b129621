package ember

import (
	"mime"
	"path"

	"github.com/aofei/mimesniffer"
)

// detectContentType derives a MIME type for the named content: the filename
// extension is consulted first, then the leading bytes are sniffed. Content
// that matches nothing falls back to "application/octet-stream".
func detectContentType(name string, b []byte) string {
	if ext := path.Ext(name); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}

	if len(b) > 0 {
		return mimesniffer.Sniff(b)
	}

	return "application/octet-stream"
}
