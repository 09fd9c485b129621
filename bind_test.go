package ember

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type bindTarget struct {
	Name string `json:"name" xml:"name" toml:"name" yaml:"name" msgpack:"name"`
	Age  int    `json:"age" xml:"age" toml:"age" yaml:"age" msgpack:"age"`
}

func bindRequest(contentType string, body []byte) *Request {
	return &Request{
		Method: http.MethodPost,
		Body:   body,
		header: http.Header{
			"Content-Type": []string{contentType},
		},
	}
}

func TestRequestBind(t *testing.T) {
	msgpackBody, err := msgpack.Marshal(bindTarget{
		Name: "Alice",
		Age:  30,
	})
	require.NoError(t, err)

	for _, tc := range []struct {
		contentType string
		body        []byte
	}{
		{
			"application/json",
			[]byte(`{"name":"Alice","age":30}`),
		},
		{
			"application/xml",
			[]byte("<bindTarget><name>Alice</name>" +
				"<age>30</age></bindTarget>"),
		},
		{
			"application/toml",
			[]byte("name = \"Alice\"\nage = 30\n"),
		},
		{
			"application/yaml",
			[]byte("name: Alice\nage: 30\n"),
		},
		{
			"application/msgpack",
			msgpackBody,
		},
		{
			"application/json; charset=utf-8",
			[]byte(`{"name":"Alice","age":30}`),
		},
	} {
		var v bindTarget
		req := bindRequest(tc.contentType, tc.body)
		require.NoError(t, req.Bind(&v), tc.contentType)
		assert.Equal(t, "Alice", v.Name, tc.contentType)
		assert.Equal(t, 30, v.Age, tc.contentType)
	}
}

func TestRequestBindErrors(t *testing.T) {
	var v bindTarget

	req := bindRequest("application/json", nil)
	assert.Error(t, req.Bind(&v))

	req = bindRequest("application/octet-stream", []byte("junk"))
	assert.Equal(t, ErrUnsupportedMediaType, req.Bind(&v))

	req = bindRequest("application/json", []byte("{broken"))
	assert.Error(t, req.Bind(&v))
}
