package ember

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLogger returns a logger that swallows everything, keeping test
// output readable while failure paths are exercised.
func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNew(t *testing.T) {
	s := New()

	assert.Equal(t, "localhost", s.Host)
	assert.Equal(t, 1<<20, s.MaxHeaderBytes)
	assert.NotNil(t, s.router)
	assert.NotNil(t, s.registry)
	assert.NotNil(t, s.minifier)
	assert.NotNil(t, s.Logger)
}

func TestServeHTTPHello(t *testing.T) {
	s := New()
	s.GET("/hello", func(req *Request) (*Response, error) {
		return JSON(200, map[string]string{
			"message": "Hello, World!",
		}), nil
	})

	rec := serve(s, http.MethodGet, "/hello")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(
		t,
		"application/json; charset=utf-8",
		rec.Header().Get("Content-Type"),
	)
	assert.JSONEq(t, `{"message":"Hello, World!"}`, rec.Body.String())
}

func TestServeHTTPPathParams(t *testing.T) {
	s := New()
	s.GET("/v/:name", func(req *Request) (*Response, error) {
		return Text(200, "Hello, "+req.PathParams["name"]), nil
	})
	s.GET("/r/:value1/:value2", func(req *Request) (*Response, error) {
		return Text(
			200,
			"Hello, "+req.PathParams["value1"]+" and "+
				req.PathParams["value2"],
		), nil
	})

	rec := serve(s, http.MethodGet, "/v/Alice")
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello, Alice")

	rec = serve(s, http.MethodGet, "/r/Alice/Bob")
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello, Alice and Bob")
}

func TestServeHTTPNotFound(t *testing.T) {
	s := New()

	rec := serve(s, http.MethodGet, "/nonexistent")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/nonexistent", body["path"])
}

func TestServeHTTPOptions(t *testing.T) {
	s := New()
	s.GET("/hello", func(req *Request) (*Response, error) {
		return Text(200, "hi"), nil
	})

	for _, target := range []string{"/hello", "/anything/else"} {
		rec := serve(s, http.MethodOptions, target)
		assert.Equal(t, http.StatusNoContent, rec.Code, target)
		assert.Equal(
			t,
			"0",
			rec.Header().Get("Content-Length"),
			target,
		)
		assert.Empty(t, rec.Body.String(), target)
	}

	// An explicitly registered OPTIONS handler still wins.
	s.OPTIONS("/custom", func(req *Request) (*Response, error) {
		return Text(200, "custom"), nil
	})

	rec := serve(s, http.MethodOptions, "/custom")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "custom", rec.Body.String())
}

func TestServeHTTPHandlerFailure(t *testing.T) {
	s := New()
	s.Logger = newTestLogger()
	s.GET("/error", func(req *Request) (*Response, error) {
		return nil, errors.New("database gone")
	})
	s.GET("/panic", func(req *Request) (*Response, error) {
		panic("handler exploded")
	})

	rec := serve(s, http.MethodGet, "/error")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "database gone", body["reason"])

	rec = serve(s, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "handler exploded", body["reason"])
}

func TestServeHTTPHeadFallsBackToGet(t *testing.T) {
	s := New()
	s.GET("/doc", func(req *Request) (*Response, error) {
		return Text(200, "content"), nil
	})

	rec := serve(s, http.MethodHead, "/doc")
	assert.Equal(t, 200, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "7", rec.Header().Get("Content-Length"))
}

func TestServeHTTPQueryAndBody(t *testing.T) {
	s := New()
	s.POST("/echo", func(req *Request) (*Response, error) {
		return Text(
			200,
			req.Query["name"]+":"+req.BodyString(),
		), nil
	})

	rec := servePost(s, "/echo?name=x&name=y", "payload")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "y:payload", rec.Body.String())
}

func TestServeHTTPRemaining(t *testing.T) {
	s := New()
	s.GET("/api", func(req *Request) (*Response, error) {
		return Text(200, req.RemainingPath), nil
	})

	rec := serve(s, http.MethodGet, "/api/deep/tail")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "deep/tail", rec.Body.String())
}

func TestServeHTTPZipScenario(t *testing.T) {
	s := New()
	archive := buildArchive(t, map[string]string{
		"admin/index.html": "<html>admin</html>",
	})
	require.NoError(t, s.ZIP("/static", archive))

	rec := serve(s, http.MethodGet, "/static/admin/%23/users")
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "<html>admin</html>", rec.Body.String())

	rec = serve(s, http.MethodGet, "/static/../../etc/passwd")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Error(t, s.ZIP("/broken", []byte("junk")))
}

func TestServeHTTPFileScenario(t *testing.T) {
	s := New()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "file content")
	s.FILE("/files", root)

	rec := serve(s, http.MethodGet, "/files/a.txt")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "file content", rec.Body.String())

	// Non-GET methods never reach the servant.
	rec = serve(s, http.MethodPost, "/files/a.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
