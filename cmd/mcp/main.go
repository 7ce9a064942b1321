package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"prompt-service/internal/app"
	"prompt-service/internal/config"
	"prompt-service/internal/logger"
	"prompt-service/internal/mcpserver"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// stdout занят протоколом в режиме stdio, поэтому логи пишем в stderr.
	logCfg := logger.Config{Production: cfg.IsProduction(), Level: cfg.LogLevel, Encoding: cfg.LogEncoding, OutputPath: "stderr"}
	logger.InitZerolog(logCfg, os.Stderr)
	zapLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init zap logger")
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	server := mcpserver.New(deps.Service, version, zapLogger)

	switch cfg.MCPTransport {
	case config.MCPTransportHTTP:
		err = mcpserver.ServeHTTP(ctx, server, ":"+cfg.MCPHTTPPort, zapLogger)
	default:
		zapLogger.Info("Serving MCP over stdio")
		err = mcpserver.ServeStdio(ctx, server)
	}
	if err != nil && ctx.Err() == nil {
		zapLogger.Error("MCP server stopped with error", zap.Error(err))
		deps.Close()
		os.Exit(1)
	}
	zapLogger.Info("MCP server exiting")
}
