package interceptors

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/emberhttp/ember"
)

func TestAccessLog(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)

	s := ember.New()
	s.GET("/logged", func(req *ember.Request) (*ember.Response, error) {
		return ember.Text(200, "ok"), nil
	})
	s.Middleware(AccessLog(logger))

	rec := httptest.NewRecorder()
	s.ServeHTTP(
		rec,
		httptest.NewRequest(http.MethodGet, "/logged", nil),
	)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, buf.String(), "request served")
	assert.Contains(t, buf.String(), "/logged")
	assert.Contains(t, buf.String(), "status=200")
}
