package logging

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/sirupsen/logrus"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "info"

// ErrInvalidLevel is returned for log levels logrus does not know.
var ErrInvalidLevel = errors.New("invalid log level")

// Options controls the logger built by New.
type Options struct {
	Level  string
	Format v1alpha1.LogFormat
}

// New builds a logger writing to out with the given level and format.
func New(out io.Writer, options Options) (*logrus.Logger, error) {
	level := options.Level
	if level == "" {
		level = DefaultLevel
	}

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLevel, level)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(parsed)

	switch options.Format {
	case v1alpha1.LogFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	}

	return logger, nil
}

// Discard returns a logger that drops everything.
func Discard() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}
