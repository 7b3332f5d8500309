package logging

import (
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"iotauth/distkey/config"
)

// NewLogger builds a console logger for "dev" and a JSON logger for "prod"
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, err
	}

	var zcfg zap.Config
	if strings.EqualFold(cfg.Env, "prod") {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	// stdout is reserved for command output
	zcfg.OutputPaths = []string{"stderr"}

	return zcfg.Build()
}

func newLogger(lc fx.Lifecycle, configProvider config.ConfigProvider) (*zap.Logger, error) {
	logger, err := NewLogger(configProvider.GetConfig().Log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(func() {
		_ = logger.Sync()
	}))

	return logger, nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var Module = fx.Provide(
	newLogger,
)
