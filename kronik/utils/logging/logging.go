package logging

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey string

// TraceIDKey carries the per-iteration trace id through contexts.
const TraceIDKey ctxKey = "trace_id"

// Loggers start as no-ops so packages and tests work before InitLogger runs.
var (
	AppLogger     = zap.NewNop()
	RequestLogger = zap.NewNop()
	TimerLogger   = zap.NewNop()
	ErrorLogger   = zap.NewNop()
)

// ensureLogsDir makes sure the logs folder exists
func ensureLogsDir(dir string) error {
	return os.MkdirAll(dir, os.ModePerm)
}

func fileCore(encoder zapcore.Encoder, path string, maxSize, maxAge int, level zapcore.LevelEnabler) zapcore.Core {
	return zapcore.NewCore(encoder,
		zapcore.AddSync(&lumberjack.Logger{
			Filename: path, MaxSize: maxSize, MaxAge: maxAge, Compress: true,
		}),
		level,
	)
}

// InitLogger wires the package loggers to rotating JSON files under logsDir.
// The app and error loggers are also echoed to stdout.
func InitLogger(logsDir, level string) error {
	if logsDir == "" {
		logsDir = "./logs"
	}
	if err := ensureLogsDir(logsDir); err != nil {
		return err
	}

	lvl := zap.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			lvl = zap.InfoLevel
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	console := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(os.Stdout), lvl)

	// app.log (general logs)
	appCore := fileCore(encoder, filepath.Join(logsDir, "app.log"), 100, 28, lvl)
	AppLogger = zap.New(zapcore.NewTee(appCore, console))

	// request.log
	RequestLogger = zap.New(fileCore(encoder, filepath.Join(logsDir, "request.log"), 50, 7, zap.InfoLevel))

	// timer.log
	TimerLogger = zap.New(fileCore(encoder, filepath.Join(logsDir, "timer.log"), 50, 7, zap.InfoLevel))

	// error.log
	errorCore := fileCore(encoder, filepath.Join(logsDir, "error.log"), 100, 30, zap.ErrorLevel)
	ErrorLogger = zap.New(zapcore.NewTee(errorCore, console), zap.AddCaller())
	return nil
}

// Named returns a component logger, e.g. logging.Named("device").
func Named(component string) *zap.Logger {
	return AppLogger.Named(component)
}

// Sync flushes buffered entries; call it before the process exits.
func Sync() {
	for _, l := range []*zap.Logger{AppLogger, RequestLogger, TimerLogger, ErrorLogger} {
		_ = l.Sync()
	}
}

// WithTraceID attaches a trace id that LogDuration and TraceField pick up.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// TraceField returns the trace id of ctx as a zap field, or zap.Skip().
func TraceField(ctx context.Context) zap.Field {
	if traceID, _ := ctx.Value(TraceIDKey).(string); traceID != "" {
		return zap.String("trace_id", traceID)
	}
	return zap.Skip()
}

// LogDuration lets you do: defer logging.LogDuration(ctx, "FuncName")()
func LogDuration(ctx context.Context, name string) func() {
	start := time.Now()
	trace := TraceField(ctx)

	return func() {
		duration := time.Since(start).Milliseconds()
		// write ONLY to timer.log
		TimerLogger.Info("Function timed",
			zap.String("func", name),
			zap.Int64("duration_ms", duration),
			trace,
		)
	}
}
