// Package logging configures the logrus logger that cmd/harden uses and
// passes on to internal/bootimage, leveled by a verbosity counter.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logger whose level is set by verbosity (0 = warn, 1 =
// info, 2 or more = debug) unless quiet is set, which forces error-only
// output regardless of verbosity.
func New(verbosity int, quiet bool) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   false,
		TimestampFormat: "15:04:05",
	}

	switch {
	case quiet:
		log.SetLevel(logrus.ErrorLevel)
	case verbosity >= 2:
		log.SetLevel(logrus.DebugLevel)
	case verbosity == 1:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}

	return log
}
