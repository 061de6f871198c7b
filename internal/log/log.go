// Package log wraps a package-level zap logger shared by the service and its
// command line tools.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// Options controls logger construction.
type Options struct {
	Debug bool
	// File, when set, receives JSON-encoded entries rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Init initializes the package-level logger writing to stderr only.
func Init(debug bool) error {
	return InitWithOptions(Options{Debug: debug})
}

// InitWithFile initializes the logger and tees its output into a rotating file.
func InitWithFile(debug bool, path string, maxSizeMB, maxBackups int) error {
	return InitWithOptions(Options{Debug: debug, File: path, MaxSizeMB: maxSizeMB, MaxBackups: maxBackups})
}

// InitWithOptions builds the package-level logger. Every entry is also copied
// into the application log buffer served by the REST API.
func InitWithOptions(opts Options) error {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	encCfg := zap.NewProductionEncoderConfig()
	if opts.Debug {
		level.SetLevel(zapcore.DebugLevel)
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	if opts.File != "" {
		if opts.MaxSizeMB < 0 || opts.MaxBackups < 0 {
			return fmt.Errorf("can't initialize zap logger: negative rotation settings")
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), level))
	}

	zapLogger := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.Hooks(bufferHook),
	)

	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

func bufferHook(e zapcore.Entry) error {
	GetAppLogBuffer().AddEntry(LogEntry{
		Timestamp: e.Time,
		Level:     e.Level.String(),
		Message:   e.Message,
		Caller:    e.Caller.TrimmedPath(),
	})
	return nil
}

func fallback() {
	baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
	log = baseLogger.Sugar()
}

// GetZapLogger returns the base zap logger for cases where it's needed (like GORM)
func GetZapLogger() *zap.Logger {
	if baseLogger == nil {
		fallback()
	}
	return baseLogger
}

// GetSugaredLogger returns the sugared logger instance
func GetSugaredLogger() *zap.SugaredLogger {
	if log == nil {
		fallback()
	}
	return log
}

// Sync flushes any buffered log entries
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	GetSugaredLogger().Debugf(template, args...)
}

func Info(args ...interface{}) {
	GetSugaredLogger().Info(args...)
}

func Infof(template string, args ...interface{}) {
	GetSugaredLogger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Infow(msg, keysAndValues...)
}

func Warn(args ...interface{}) {
	GetSugaredLogger().Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	GetSugaredLogger().Warnf(template, args...)
}

func Error(args ...interface{}) {
	GetSugaredLogger().Error(args...)
}

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Errorw(msg, keysAndValues...)
}

func Fatalf(template string, args ...interface{}) {
	GetSugaredLogger().Fatalf(template, args...)
	os.Exit(1)
}
