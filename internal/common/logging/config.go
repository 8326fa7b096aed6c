package logging

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	FormatText = "text"
	FormatJson = "json"
	// FormatPlain prints only the message, which is what command line tools want.
	FormatPlain = "plain"
)

var validLogFormats = map[string]bool{
	FormatText:  true,
	FormatJson:  true,
	FormatPlain: true,
}

// Config defines logging configuration.
type Config struct {
	// Log level, e.g. info, warn etc
	Level string
	// Logging format, one of text, json or plain
	Format string
	// If true, every log line is counted in a prometheus counter labelled by level.
	ExportMetrics bool
}

// Validate returns an error if the level or format is unknown.
func (c Config) Validate() error {
	if _, err := parseLogLevel(c.Level); err != nil {
		return err
	}
	return validateLogFormat(c.Format)
}

func validateLogFormat(f string) error {
	if _, ok := validLogFormats[f]; !ok {
		validFormats := maps.Keys(validLogFormats)
		slices.Sort(validFormats)
		return errors.Errorf("unknown log format: %s.  Valid formats are %s", f, validFormats)
	}
	return nil
}

func parseLogLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "panic":
		return logrus.PanicLevel, nil
	case "fatal":
		return logrus.FatalLevel, nil
	default:
		return logrus.InfoLevel, errors.Errorf("unknown level: %s", level)
	}
}
