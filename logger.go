package ember

import (
	"os"

	"github.com/sirupsen/logrus"
)

// newDefaultLogger returns the logging sink a `Server` falls back to when
// none is injected: plain logrus to standard error.
func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return l
}
