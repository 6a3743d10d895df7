// Package logging provides the leveled, optionally colored run logger with an
// optional append-only JSON file sink. It is a thin printf-style facade over
// zap so that call sites read like an operator log while the file sink stays
// machine-readable.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/backmassage/layerlapse/internal/config"
	"github.com/backmassage/layerlapse/internal/term"
)

// Logger provides leveled logging. Warnings and below go to stdout, errors to
// stderr, and everything at the active level to the log file when one is set.
type Logger struct {
	z    *zap.Logger
	s    *zap.SugaredLogger
	file *os.File // owned by the root logger only
}

// NewLogger configures colors from cfg and optionally opens cfg.LogFile.
// Call Close() when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)

	level := zapcore.InfoLevel
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	console := zapcore.NewConsoleEncoder(consoleEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(console, zapcore.Lock(os.Stdout), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level && l < zapcore.ErrorLevel
		})),
		zapcore.NewCore(console, zapcore.Lock(os.Stderr), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.ErrorLevel
		})),
	}

	var file *os.File
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		file = f
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		fileEnc.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(f), level))
	}

	l := FromZap(zap.New(zapcore.NewTee(cores...)))
	l.file = file
	return l, nil
}

// FromZap wraps an existing zap logger (e.g. an observer core in tests).
func FromZap(z *zap.Logger) *Logger {
	return &Logger{z: z, s: z.Sugar()}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeLevel:      coloredLevel,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

// coloredLevel renders "[LEVEL]" in the level's color when colors are on.
func coloredLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	color := term.Blue
	switch l {
	case zapcore.DebugLevel:
		color = term.Cyan
	case zapcore.WarnLevel:
		color = term.Yellow
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		color = term.Red
	}
	enc.AppendString(term.Paint(color, "["+l.CapitalString()+"]"))
}

// Close flushes buffered entries and closes the log file if one was opened.
func (l *Logger) Close() error {
	_ = l.z.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// With returns a child logger that attaches fields (slot, layer key,
// timestamp) to every entry. The child never owns the log file.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return FromZap(l.z.With(fields...))
}

// Zap exposes the underlying logger for packages that log structured fields.
func (l *Logger) Zap() *zap.Logger { return l.z }

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.s.Infof(format, args...)
}

// Success logs at INFO level with result=success so operators can grep for it.
func (l *Logger) Success(format string, args ...interface{}) {
	l.z.Info(fmt.Sprintf(format, args...), zap.String("result", "success"))
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.s.Warnf(format, args...)
}

// Error logs at ERROR level (red), to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.s.Errorf(format, args...)
}

// Debug logs at DEBUG level (cyan); dropped unless the logger was built with Verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}
