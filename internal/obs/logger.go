package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level  string
	Pretty bool
	App    string
	Env    string
	Ver    string
	File   LogFile
}

// LogFile enables a rotated JSON copy of the log stream when Path is set.
type LogFile struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func NewLogger(c LogConfig) (*zap.Logger, error) {
	var cfg zap.Config
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	level := new(zapcore.Level)
	if err := level.Set(c.Level); err != nil {
		*level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(*level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fields := []zap.Field{
		zap.String("service", c.App),
		zap.String("env", c.Env),
		zap.String("version", c.Ver),
	}

	opts := []zap.Option{zap.Fields(fields...)}
	if c.File.Path != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File.Path,
			MaxSize:    c.File.MaxSizeMB,
			MaxBackups: c.File.MaxBackups,
			MaxAge:     c.File.MaxAgeDays,
			Compress:   c.File.Compress,
		})
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.TimeKey = "ts"
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), sink, cfg.Level).With(fields)
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	l, err := cfg.Build(opts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}
