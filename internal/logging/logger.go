// Package logging provides categorized structured logging for the
// kernel packages (kernel, compiler, observer, coldstorage, injector).
// Each category gets its own *zap.SugaredLogger so a caller can tell,
// from the log line alone, which component emitted it. Logging is
// controlled by LOG_LEVEL / the facade's configured level; unlike the
// CLI's --verbose flag (which is for human-facing stdout prints), this
// package is for structured diagnostic events emitted by packages that
// have no cobra command context of their own.
package logging

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies which kernel component emitted a log line.
type Category string

const (
	CategoryKernel      Category = "kernel"
	CategoryCompiler    Category = "compiler"
	CategoryObserver    Category = "observer"
	CategoryColdStorage Category = "coldstorage"
	CategoryInjector    Category = "injector"
	CategoryFacade      Category = "facade"
	CategoryConfig      Category = "config"
)

var (
	mu       sync.RWMutex
	base     *zap.Logger
	loggers  = make(map[Category]*zap.SugaredLogger)
	levelVar = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	initOnce sync.Once
)

// Initialize configures the shared base logger at the given level
// ("DEBUG", "INFO", "WARN", "ERROR" — case-insensitive; unrecognized
// values default to INFO). Safe to call more than once; later calls
// just adjust the level. If Initialize is never called, Get still
// returns usable loggers at the INFO level.
func Initialize(level string) {
	initOnce.Do(func() {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder := zapcore.NewConsoleEncoder(cfg)
		core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), levelVar)
		base = zap.New(core)
	})
	setLevel(level)
}

func setLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch normalizeLevel(level) {
	case "DEBUG":
		levelVar.SetLevel(zapcore.DebugLevel)
	case "WARN":
		levelVar.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		levelVar.SetLevel(zapcore.ErrorLevel)
	default:
		levelVar.SetLevel(zapcore.InfoLevel)
	}
}

func normalizeLevel(level string) string {
	switch level {
	case "debug", "DEBUG", "Debug":
		return "DEBUG"
	case "warn", "WARN", "warning", "WARNING":
		return "WARN"
	case "error", "ERROR", "Error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// SetLevel changes the shared level at runtime, used by the optional
// config watcher when LOG_LEVEL changes in a reloaded config file.
func SetLevel(level string) {
	if base == nil {
		Initialize(level)
		return
	}
	setLevel(level)
}

// Get returns (creating if necessary) the sugared logger for a
// category, pre-tagged with a "category" field.
func Get(category Category) *zap.SugaredLogger {
	if base == nil {
		Initialize("INFO")
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := base.With(zap.String("category", string(category))).Sugar()
	loggers[category] = l
	return l
}

// Kernel logs an info-level message tagged with the kernel category.
func Kernel(format string, args ...any) {
	Get(CategoryKernel).Infof(format, args...)
}

// KernelDebug logs a debug-level message tagged with the kernel category.
func KernelDebug(format string, args ...any) {
	Get(CategoryKernel).Debugf(format, args...)
}

// KernelWarn logs a warn-level message tagged with the kernel category.
func KernelWarn(format string, args ...any) {
	Get(CategoryKernel).Warnf(format, args...)
}

// Compiler logs an info-level message tagged with the compiler category.
func Compiler(format string, args ...any) {
	Get(CategoryCompiler).Infof(format, args...)
}

// ColdStorage logs an info-level message tagged with the coldstorage category.
func ColdStorage(format string, args ...any) {
	Get(CategoryColdStorage).Infof(format, args...)
}

// ColdStorageWarn logs a warn-level message tagged with the coldstorage category.
func ColdStorageWarn(format string, args ...any) {
	Get(CategoryColdStorage).Warnf(format, args...)
}

// Sync flushes any buffered log entries. Call on facade Close.
func Sync() error {
	if base == nil {
		return nil
	}
	if err := base.Sync(); err != nil {
		// /dev/stderr frequently returns ENOTTY/EINVAL from Sync; that is
		// not a real flush failure, so don't surface it as one.
		if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
			return nil
		}
		return fmt.Errorf("logging sync: %w", err)
	}
	return nil
}
