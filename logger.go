package throttlego

import (
	"io"
	"os"
	"strings"

	"github.com/ssgreg/logf"
	"github.com/ssgreg/logftext"
)

type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format  string `mapstructure:"format" yaml:"format"` // json or text
	NoColor bool   `mapstructure:"nocolor" yaml:"nocolor"`
}

func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "json"}
}

// NewLogger creates a logger writing to stderr. The returned func flushes
// buffered entries and must be called before exit.
func NewLogger(config LogConfig) (*logf.Logger, logf.ChannelWriterCloseFunc) {
	return NewLoggerWithWriter(config, os.Stderr)
}

func NewLoggerWithWriter(config LogConfig, w io.Writer) (*logf.Logger, logf.ChannelWriterCloseFunc) {
	channel, closeFunc := logf.NewChannelWriter(logf.ChannelWriterConfig{
		Appender:          makeAppender(config, w),
		EnableSyncOnError: true,
	})
	return logf.NewLogger(parseLevel(config.Level), channel), closeFunc
}

func makeAppender(config LogConfig, w io.Writer) logf.Appender {
	if strings.EqualFold(config.Format, "text") {
		noColor := config.NoColor
		return logftext.NewAppender(w, logftext.EncoderConfig{
			NoColor:    &noColor,
			EncodeTime: logf.RFC3339NanoTimeEncoder,
		})
	}
	return logf.NewWriteAppender(w, logf.NewJSONEncoder(logf.JSONEncoderConfig{
		EncodeTime:   logf.RFC3339NanoTimeEncoder,
		FieldKeyTime: "time",
	}))
}

func parseLevel(level string) logf.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logf.LevelDebug
	case "warn", "warning":
		return logf.LevelWarn
	case "error":
		return logf.LevelError
	}
	return logf.LevelInfo
}

func loggerOrDisabled(logger *logf.Logger) *logf.Logger {
	if logger == nil {
		return logf.NewDisabledLogger()
	}
	return logger
}
