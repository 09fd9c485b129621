package ember

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"mime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedMediaType is reported by the `Request.Bind` when the
// Content-Type of the request names no decodable format.
var ErrUnsupportedMediaType = errors.New("ember: unsupported media type")

// Bind decodes the body of the r into the v based on the Content-Type
// header. JSON, XML, TOML, YAML and Msgpack bodies are understood; anything
// else reports the `ErrUnsupportedMediaType`.
func (r *Request) Bind(v interface{}) error {
	if len(r.Body) == 0 {
		return errors.New("ember: request body cannot be empty")
	}

	mt, _, err := mime.ParseMediaType(r.Header("Content-Type"))
	if err != nil {
		mt = strings.TrimSpace(
			strings.Split(r.Header("Content-Type"), ";")[0],
		)
	}

	switch mt {
	case "application/json":
		return json.Unmarshal(r.Body, v)
	case "application/xml", "text/xml":
		return xml.Unmarshal(r.Body, v)
	case "application/toml":
		return toml.Unmarshal(r.Body, v)
	case "application/yaml", "application/x-yaml", "text/yaml":
		return yaml.Unmarshal(r.Body, v)
	case "application/msgpack", "application/x-msgpack":
		return msgpack.Unmarshal(r.Body, v)
	}

	return ErrUnsupportedMediaType
}
