package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/exexexll/figwork-knowledge/internal/app"
	"github.com/exexexll/figwork-knowledge/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("init logger", zap.Error(err))
	}
	defer logger.Sync()

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer application.Close()

	logger.Info("knowledge service running", zap.String("port", cfg.Port))
	if err := application.Run(ctx); err != nil {
		logger.Fatal("service error", zap.Error(err))
	}
	logger.Info("shut down cleanly")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
