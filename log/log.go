package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewRootLogger(format string, level string, w io.Writer) (*zap.Logger, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format("2006-01-02T15:04:05.000000Z07:00"))
	}
	cfg.LevelKey = "lvl"

	var enc zapcore.Encoder
	switch format {
	case "json":
		enc = zapcore.NewJSONEncoder(cfg)
	case "auto", "console":
		enc = zapcore.NewConsoleEncoder(cfg)
	case "logfmt":
		enc = zaplogfmt.NewEncoder(cfg)
	default:
		return nil, fmt.Errorf("unrecognized log format %q", format)
	}

	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	return zap.New(zapcore.NewCore(
		enc,
		zapcore.AddSync(w),
		lvl,
	)), nil
}

// NewRootLoggerWithFile mirrors NewRootLogger but tees output to the given
// log file in addition to stdout.
func NewRootLoggerWithFile(logFile string, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	return NewRootLogger("console", level, io.MultiWriter(os.Stdout, f))
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "panic":
		return zap.PanicLevel, nil
	case "fatal":
		return zap.FatalLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unsupported log level: %s", level)
	}
}
