package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Chative-rag-chat/server/internal/app"
	"github.com/Chative-rag-chat/server/internal/server"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(".env")
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to load configuration")
	}
	app.InitLogger(cfg, nil)

	historyRepo, closeRepo, err := app.NewHistoryRepository(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise history repository")
	}
	defer closeRepo()

	embedder, err := app.NewEmbedder(cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise embedder")
	}

	sessions, err := app.NewSessionManager(cfg, historyRepo, app.NewBotFactory(cfg, embedder))
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise session manager")
	}
	defer sessions.CloseAll()
	go sessions.Run(ctx)

	timeout, _ := cfg.RequestTimeout()
	srv := server.New(sessions, server.Config{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		RequestTimeout: timeout,
		VerboseErrors:  cfg.Env().ExposeErrorDetail(),
	})

	logx.Info().
		Str("environment", cfg.Env().String()).
		Str("response_model", cfg.Response.Model).
		Str("embedder_model", cfg.Embedder.Model).
		Msg("Starting RAG chat server")

	if err := srv.Start(ctx); err != nil {
		logx.Error().Err(err).Msg("Server stopped with error")
		return
	}
	logx.Info().Msg("Server stopped")
}
