package ember

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContentType(t *testing.T) {
	assert.Contains(t, detectContentType("a.html", nil), "text/html")
	assert.Contains(t, detectContentType("a.json", nil), "json")
	assert.Contains(t, detectContentType("a.svg", nil), "svg")

	// No extension: the content is sniffed.
	assert.Contains(
		t,
		detectContentType("page", []byte("<html><body></body></html>")),
		"text/html",
	)

	// Nothing to go on at all.
	assert.Equal(
		t,
		"application/octet-stream",
		detectContentType("blob", nil),
	)
}
