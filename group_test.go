package ember

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroup(t *testing.T) {
	s := New()

	api := s.Group("/api")
	api.GET("/users/:id", func(req *Request) (*Response, error) {
		return Text(200, "user "+req.PathParams["id"]), nil
	})

	v2 := api.Group("/v2")
	v2.POST("/users", func(req *Request) (*Response, error) {
		return Text(201, "created"), nil
	})

	rec := serve(s, http.MethodGet, "/api/users/42")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "user 42", rec.Body.String())

	rec = servePost(s, "/api/v2/users", "")
	assert.Equal(t, 201, rec.Code)
	assert.Equal(t, "created", rec.Body.String())

	rec = serve(s, http.MethodGet, "/users/42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupServants(t *testing.T) {
	s := New()

	static := s.Group("/static")
	archive := buildArchive(t, map[string]string{
		"index.html": "<html>ok</html>",
	})
	assert.NoError(t, static.ZIP("/app", archive))

	rec := serve(s, http.MethodGet, "/static/app")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "<html>ok</html>", rec.Body.String())
}
