package logger

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. debug forces the debug level.
func Setup(level, format string, debug bool, out io.Writer) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	if debug {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("invalid log format %q", format)
	}

	if out != nil {
		log.SetOutput(out)
	}
	log.Debug("Logger configured")
	return nil
}
