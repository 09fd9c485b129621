package ember

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

// minifier minifies response bodies by their MIME types.
type minifier struct {
	m *minify.M
}

// newMinifier returns a new instance of the `minifier`.
func newMinifier() *minifier {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", json.Minify)
	m.AddFunc("application/xml", xml.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)

	return &minifier{
		m: m,
	}
}

// minify minifies the b by the mediaType. Unsupported media types come back
// untouched.
func (mi *minifier) minify(mediaType string, b []byte) ([]byte, error) {
	mb, err := mi.m.Bytes(mediaType, b)
	if err == minify.ErrNotExist {
		return b, nil
	} else if err != nil {
		return nil, err
	}

	return mb, nil
}
