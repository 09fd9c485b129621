package interceptors

import (
	"github.com/sirupsen/logrus"

	"github.com/emberhttp/ember"
)

// AccessLog returns a response interceptor that logs one line per completed
// exchange through the logger.
func AccessLog(logger logrus.FieldLogger) ember.ResponseInterceptor {
	return func(req *ember.Request, res *ember.Response) *ember.Response {
		logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.Path,
			"status": res.Status,
			"bytes":  len(res.Body),
			"remote": req.RemoteAddr(),
		}).Info("request served")

		return res
	}
}
