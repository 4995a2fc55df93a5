package docmd

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogStyle selects the logger's output encoding.
type LogStyle string

const (
	LogStyleNoop     LogStyle = "noop"
	LogStyleJSON     LogStyle = "json"
	LogStyleTerminal LogStyle = "terminal"
	LogStyleLogfmt   LogStyle = "logfmt"
)

// LogConfig configures the pipeline's structured logger.
type LogConfig struct {
	Style LogStyle
	Level zapcore.Level
}

// NewLogger builds a *zap.Logger for the given style, defaulting to a
// terminal-style logger at Info level when cfg is nil.
func NewLogger(cfg *LogConfig) *zap.Logger {
	style := LogStyleTerminal
	level := zapcore.InfoLevel
	if cfg != nil {
		if cfg.Style != "" {
			style = cfg.Style
		}
		level = cfg.Level
	}

	var (
		logger *zap.Logger
		err    error
	)

	switch style {
	case LogStyleNoop:
		return zap.NewNop()
	case LogStyleJSON:
		c := zap.NewProductionConfig()
		c.Level = zap.NewAtomicLevelAt(level)
		logger, err = c.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	case LogStyleTerminal:
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(level)
		logger, err = c.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	case LogStyleLogfmt:
		encCfg := zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "lvl",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
			ConsoleSeparator: " ",
		}
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(os.Stderr),
			level,
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	default:
		log.Fatalf("docmd: invalid logging style %q: must be one of terminal, json, logfmt, noop", style)
	}

	if err != nil {
		log.Fatalf("docmd: can't initialize zap logger: %v", err)
	}
	return logger
}
