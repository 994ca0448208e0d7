package logging

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SetUp configures the standard logger with a level and a "text" or "json" format.
func SetUp(logLevel, format string) error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrap(err, "failed to parse log level")
	}

	switch format {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		return errors.Errorf("unknown log format %q", format)
	}

	logrus.SetLevel(lvl)
	return nil
}

// SetOutput redirects the standard logger.
func SetOutput(w io.Writer) {
	logrus.SetOutput(w)
}

// L returns the standard logger as an entry for the named component.
func L(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
