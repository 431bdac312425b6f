package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the level, encoding and destination of the process logger.
type Options struct {
	Level    string // debug, info, warn, error
	Encoding string // json or console
	Writer   io.Writer
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// New creates a logger writing to stdout.
func New(level, encoding string) *zap.Logger {
	return NewWithWriter(Options{Level: level, Encoding: encoding, Writer: os.Stdout})
}

// NewWithWriter creates a logger writing to opts.Writer, e.g. a log file while
// the terminal is owned by the dashboard.
func NewWithWriter(opts Options) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.Encoding == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(parseLevel(opts.Level)))
	return zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr)))
}
