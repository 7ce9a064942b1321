package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"prompt-service/internal/config"
	"prompt-service/internal/loader"
	"prompt-service/internal/logger"
)

func main() {
	cfg, err := config.LoadLoaderConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	dir := flag.String("dir", "failsafe_prompts", "directory with *.jinja prompt templates")
	apiURL := flag.String("url", cfg.APIURL, "prompt-service API base URL")
	model := flag.String("model", loader.DefaultModelName, "model name to store the prompts under")
	only := flag.String("only", "", "load only this template (file name or prompt name)")
	timeout := flag.Duration("timeout", cfg.RequestTimeout, "per-request timeout")
	flag.Parse()

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: "console"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init zap logger")
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	templates, err := loader.ReadTemplates(*dir, *only)
	if err != nil {
		zapLogger.Fatal("Failed to read failsafe prompts", zap.Error(err))
	}
	zapLogger.Info("Found failsafe prompts", zap.Int("count", len(templates)), zap.String("dir", *dir))

	client, err := loader.NewClient(*apiURL, *timeout, zapLogger)
	if err != nil {
		zapLogger.Fatal("Invalid API URL", zap.Error(err))
	}

	created, err := client.LoadAll(ctx, templates, *model)
	if err != nil {
		zapLogger.Fatal("Failed to load failsafe prompts", zap.Int("loaded", len(created)), zap.Error(err))
	}
	zapLogger.Info("Failsafe prompts loaded", zap.Int("loaded", len(created)), zap.String("model", *model))
}
