package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rainbow-me/platform-lifecycle/common/env"
)

const MessageKey = "message"

// Logger is a thin wrapper around zap that the rest of the codebase logs through,
// so call sites never import zap directly.
type Logger struct {
	*zap.Logger
}

// NewLogger wraps an existing zap logger.
func NewLogger(z *zap.Logger) *Logger {
	return &Logger{Logger: z}
}

// With returns a child logger with the given fields appended to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Named returns a child logger with the given name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

var (
	instanceOnce sync.Once
	instance     *Logger
)

// Instance returns the process-wide default logger, building it on first use
// from the current environment. Failures fall back to a no-op logger rather
// than blocking startup.
func Instance() *Logger {
	instanceOnce.Do(func() {
		l, err := InitLogger()
		if err != nil {
			l = NewLogger(zap.NewNop())
		}
		instance = l
	})
	return instance
}

// InitLogger initializes and returns a configured logger with environment-specific settings.
func InitLogger(zapOpts ...zap.Option) (*Logger, error) {
	var (
		config  zap.Config
		options []zap.Option
	)

	// Define a consistent encoder configuration
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		FunctionKey:   zapcore.OmitKey, // Hide function name for brevity
		MessageKey:    MessageKey,
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.ISO8601TimeEncoder,  // Use human-readable timestamp format
		EncodeLevel:   zapcore.CapitalLevelEncoder, // INFO, WARN, ERROR, etc.
		EncodeCaller:  zapcore.ShortCallerEncoder,  // Short file path
	}

	// Configure logging based on the environment
	switch env.GetApplicationEnvSafe() {
	case env.EnvironmentLocal:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.MessageKey = MessageKey
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		options = append(options, zap.AddStacktrace(zap.ErrorLevel))

	case env.EnvironmentDevelopment, env.EnvironmentStaging:
		// Development/Staging: JSON logs for log pipeline ingestion
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig = encoderConfig
		config.Encoding = "json"
		options = append(options, zap.AddStacktrace(zap.ErrorLevel))

	case env.EnvironmentProduction:
		// Production: JSON logs with structured metadata
		config = zap.NewProductionConfig()
		config.EncoderConfig = encoderConfig
		config.Encoding = "json"
		config.Level.SetLevel(zap.InfoLevel)
		options = append(options, zap.AddStacktrace(zap.ErrorLevel))
	}

	// Apply additional logging options if provided
	if len(zapOpts) > 0 {
		options = append(options, zapOpts...)
	}

	// Build the logger
	z, err := config.Build(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewLogger(z), nil
}
