// Package logging configures the process-wide logrus logger: level, text or
// JSON formatting, and output to the console and a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects log level and destinations.
type Options struct {
	Level   string
	Console bool
	// File enables a rotating log file at this path.
	File       string
	MaxSizeMB  int
	MaxBackups int
	JSON       bool
}

// Setup applies opts to the standard logrus logger. The returned closer
// releases the log file; it is safe to call when no file is configured.
func Setup(opts Options) (io.Closer, error) {
	return setup(logrus.StandardLogger(), opts, os.Stderr)
}

func setup(logger *logrus.Logger, opts Options, console io.Writer) (io.Closer, error) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	var (
		writers []io.Writer
		file    *lumberjack.Logger
	)
	if opts.Console {
		writers = append(writers, console)
	}
	if opts.File != "" {
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		writers = append(writers, file)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	logger.WithFields(logrus.Fields{
		"function": "Setup",
		"level":    level.String(),
		"file":     opts.File,
	}).Debug("Logging configured")

	if file == nil {
		return nopCloser{}, nil
	}
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
