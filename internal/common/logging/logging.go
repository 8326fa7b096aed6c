package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NullLogger discards everything written to it.
var NullLogger = &logrus.Logger{
	Out:       io.Discard,
	Formatter: new(logrus.TextFormatter),
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.PanicLevel,
}

// CommandLineFormatter writes only the message of each entry.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s\n", entry.Message)), nil
}

// ConfigureCommandLineLogging makes the standard logger print bare messages to stderr,
// leaving stdout to command output.
func ConfigureCommandLineLogging() {
	logrus.SetFormatter(&CommandLineFormatter{})
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.InfoLevel)
}

// ConfigureLogging applies config to the standard logrus logger, which writes to stderr.
func ConfigureLogging(config Config) error {
	return Configure(logrus.StandardLogger(), os.Stderr, config)
}

// Configure applies config to logger, writing to out.
func Configure(logger *logrus.Logger, out io.Writer, config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	level, err := parseLogLevel(config.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetOutput(out)
	switch config.Format {
	case FormatJson:
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: RFC3339Milli})
	case FormatPlain:
		logger.SetFormatter(&CommandLineFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: RFC3339Milli})
	}
	if config.ExportMetrics {
		return AddPrometheusHook(logger)
	}
	return nil
}

const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"
