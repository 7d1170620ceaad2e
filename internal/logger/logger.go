package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes structured trading logs to a rotating file and optionally the console
type Logger struct {
	zl      *zap.Logger
	sugar   *zap.SugaredLogger
	rotator *lumberjack.Logger
	logPath string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// Config controls where and how logs are written
type Config struct {
	Dir        string `json:"dir" yaml:"dir"`
	Name       string `json:"name" yaml:"name"`
	Level      string `json:"level" yaml:"level"` // debug, info, warn, error
	Console    bool   `json:"console" yaml:"console"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// DefaultConfig logs to logs/risk-engine.log at info level
func DefaultConfig() Config {
	return Config{
		Dir:        "logs",
		Name:       "risk-engine",
		Level:      "info",
		Console:    true,
		MaxSizeMB:  50,
		MaxBackups: 7,
		MaxAgeDays: 30,
	}
}

// New creates a logger from cfg
func New(cfg Config) (*Logger, error) {
	if cfg.Dir == "" {
		cfg.Dir = "logs"
	}
	if cfg.Name == "" {
		cfg.Name = "risk-engine"
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	logPath := filepath.Join(cfg.Dir, cfg.Name+".log")
	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "time"

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level),
	}
	if cfg.Console {
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level))
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	l := &Logger{zl: zl, sugar: zl.Sugar(), rotator: rotator, logPath: logPath}
	l.zl.Info("session started", zap.String("log_file", logPath), zap.Time("started", time.Now()))
	return l, nil
}

// NewLogger creates a file logger named after a symbol and interval
func NewLogger(symbol, interval string) (*Logger, error) {
	cfg := DefaultConfig()
	cfg.Name = fmt.Sprintf("%s_%s", symbol, interval)
	cfg.Console = false
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("symbol", symbol), zap.String("interval", interval)), nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	zl := zap.NewNop()
	return &Logger{zl: zl, sugar: zl.Sugar()}
}

// FromZap wraps an existing zap logger, used by tests with observers
func FromZap(zl *zap.Logger) *Logger {
	return &Logger{zl: zl, sugar: zl.Sugar()}
}

// With returns a child logger carrying fields. The child shares the file.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.zl.With(fields...)
	return &Logger{zl: zl, sugar: zl.Sugar(), rotator: l.rotator, logPath: l.logPath}
}

// Zap exposes the underlying structured logger
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Log writes a formatted entry at the given level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	switch level {
	case LogLevelWarning:
		l.sugar.Warnf(format, args...)
	case LogLevelError:
		l.sugar.Errorf(format, args...)
	case LogLevelTrade, LogLevelStatus:
		l.sugar.With("kind", string(level)).Infof(format, args...)
	default:
		l.sugar.Infof(format, args...)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs market status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogError logs an error with context
func (l *Logger) LogError(context string, err error) {
	l.zl.Error(context, zap.Error(err))
}

// LogWarning logs a warning with context
func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	l.zl.Warn(context, zap.String("detail", fmt.Sprintf(message, args...)))
}

// Close flushes buffered entries and closes the log file
func (l *Logger) Close() error {
	_ = l.zl.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// GetLogPath returns the path to the current log file
func (l *Logger) GetLogPath() string {
	return l.logPath
}
