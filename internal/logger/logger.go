package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/config"
)

const serviceName = "crypto-analyst-agent"

// New builds the process logger. Unknown levels fall back to info.
func New(cfg config.LogConfig, env string) (*zap.Logger, error) {
	zc := buildConfig(cfg)
	fields := zap.Fields(zap.String("service", serviceName))
	if env = strings.TrimSpace(env); env != "" {
		fields = zap.Fields(zap.String("service", serviceName), zap.String("env", env))
	}
	return zc.Build(fields)
}

func buildConfig(cfg config.LogConfig) zap.Config {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := cfg.Encoding
	if encoding != "console" {
		encoding = "json"
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: cfg.DisableStacktrace,
		EncoderConfig:     zap.NewProductionEncoderConfig(),
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if encoding == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	if cfg.Sampling {
		zc.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	}
	return zc
}
