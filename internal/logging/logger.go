// Package logging provides categorized structured logging for the analysis
// engine. Each subsystem logs under its own named logger so runs can be
// filtered per concern. Logging is a no-op until Init is called, which keeps
// library tests silent.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names one logging subsystem.
type Category string

const (
	CategoryCoordinator Category = "coordinator" // Phase scheduling, synthesis
	CategoryAgent       Category = "agent"       // Agent runs and results
	CategoryLLM         Category = "llm"         // Provider calls, retries
	CategoryStore       Category = "store"       // Persistence gateway
	CategoryRegistry    Category = "registry"    // Component registry
	CategoryValidator   Category = "validator"   // Quality report generation
	CategoryConfig      Category = "config"      // Startup configuration
	CategoryPrompts     Category = "prompts"     // Template loading and overrides
	CategoryReport      Category = "report"      // Output layout writing
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	sugared = map[Category]*zap.SugaredLogger{}
)

// Init configures the process-wide logger. Safe to call once at startup;
// subsequent calls replace the root and invalidate cached category loggers.
func Init(debug bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	mu.Lock()
	root = logger
	sugared = map[Category]*zap.SugaredLogger{}
	mu.Unlock()
	return nil
}

// SetLogger replaces the root logger. Used by tests to capture output.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	root = l
	sugared = map[Category]*zap.SugaredLogger{}
	mu.Unlock()
}

// L returns the sugared logger for a category.
func L(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if s, ok := sugared[cat]; ok {
		mu.RUnlock()
		return s
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if s, ok := sugared[cat]; ok {
		return s
	}
	s := root.Named(string(cat)).Sugar()
	sugared[cat] = s
	return s
}

// Sync flushes buffered log entries. Called before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
