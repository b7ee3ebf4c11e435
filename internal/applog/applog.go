// Package applog sets up logrus-based logging for medialib: open or
// create the log file, parse the configured level, and point logrus
// at it.
package applog

import (
	"os"
	"path/filepath"

	l "github.com/sirupsen/logrus"
	"github.com/pkg/errors"
)

const logFilename = "medialib.log"

// Setup points logrus at logDir/medialib.log with the given level. No
// log entries should be emitted before Setup returns.
func Setup(logDir, logLevel string) error {
	level, err := l.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log level '%s'", logLevel)
	}

	path := filepath.Join(logDir, logFilename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "cannot open log file '%s'", path)
	}

	l.SetOutput(f)
	l.SetLevel(level)
	l.SetFormatter(&l.TextFormatter{FullTimestamp: true})
	return nil
}

// SetupStderr sends logrus output to stderr at level; the run command
// uses it when no log directory is configured.
func SetupStderr(logLevel string) error {
	level, err := l.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log level '%s'", logLevel)
	}
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	return nil
}
