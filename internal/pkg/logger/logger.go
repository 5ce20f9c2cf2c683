// Package logger provides structured key/value logging with PII redaction.
//
// The package-level functions mirror the zap sugared API (msg followed by
// alternating keys and values) so call sites read the same everywhere:
//
//	logger.Info("email sent", "lead_id", id, "to_email", addr)
//
// Values logged under keys containing "email" are masked, and any address
// embedded in another value is masked as well.
package logger

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var zapLevels = map[Level]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
}

// ParseLevel maps a textual level ("debug", "info", ...) to a Level.
// Unknown values resolve to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger wraps a zap sugared logger with optional PII redaction.
type Logger struct {
	sugar     *zap.SugaredLogger
	level     zap.AtomicLevel
	redactPII bool
}

var (
	mu            sync.RWMutex
	defaultLogger = newDefault()
)

func newDefault() *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	z, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{sugar: z.Sugar(), level: level, redactPII: true}
}

// Init replaces the default logger. environment "production" selects the
// JSON production encoder; anything else uses the colored development one.
func Init(environment string, level Level) error {
	atom := zap.NewAtomicLevelAt(zapLevels[level])

	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = atom
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	z, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(2))
	if err != nil {
		return fmt.Errorf("build zap logger: %w", err)
	}

	mu.Lock()
	redact := defaultLogger.redactPII
	defaultLogger = &Logger{sugar: z.Sugar(), level: atom, redactPII: redact}
	mu.Unlock()
	return nil
}

// UseZap installs an existing zap logger (tests use zaptest/observer cores).
func UseZap(z *zap.Logger) {
	mu.Lock()
	defaultLogger = &Logger{
		sugar:     z.WithOptions(zap.AddCallerSkip(2)).Sugar(),
		level:     zap.NewAtomicLevelAt(zapcore.DebugLevel),
		redactPII: defaultLogger.redactPII,
	}
	mu.Unlock()
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { current().level.SetLevel(zapLevels[l]) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	mu.Lock()
	defaultLogger.redactPII = r
	mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() { _ = current().sugar.Sync() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { current().log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { current().log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { current().log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { current().log(ERROR, msg, fields...) }

// Component is a named logger for one module. It shares the default
// logger's sink and redaction settings.
type Component struct {
	name string
}

// Named returns a logger that tags every entry with component=name.
func Named(name string) Component { return Component{name: name} }

func (c Component) with(fields []interface{}) []interface{} {
	return append([]interface{}{"component", c.name}, fields...)
}

func (c Component) Debug(msg string, fields ...interface{}) {
	current().log(DEBUG, msg, c.with(fields)...)
}

func (c Component) Info(msg string, fields ...interface{}) {
	current().log(INFO, msg, c.with(fields)...)
}

func (c Component) Warn(msg string, fields ...interface{}) {
	current().log(WARN, msg, c.with(fields)...)
}

func (c Component) Error(msg string, fields ...interface{}) {
	current().log(ERROR, msg, c.with(fields)...)
}

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	kv := make([]interface{}, 0, len(fields))
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fields[i+1]
		if l.redactPII {
			if s, ok := val.(string); ok {
				val = redactPIIValue(key, s)
			} else if err, ok := val.(error); ok && err != nil {
				val = redactPIIValue(key, err.Error())
			}
		}
		kv = append(kv, key, val)
	}

	switch level {
	case DEBUG:
		l.sugar.Debugw(msg, kv...)
	case INFO:
		l.sugar.Infow(msg, kv...)
	case WARN:
		l.sugar.Warnw(msg, kv...)
	default:
		l.sugar.Errorw(msg, kv...)
	}
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "recipient") {
		return RedactEmail(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
