package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"flash-notes/internal/api"
	"flash-notes/internal/config"
	"flash-notes/internal/db"
	"flash-notes/internal/logging"
	"flash-notes/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	primary := services.NewRateLimitedProvider(
		services.NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIEndpoint),
		cfg.ProviderRPS, cfg.ProviderBurst,
	)
	secondary := services.NewRateLimitedProvider(
		services.NewAnthropicProvider(cfg.AnthropicKey, cfg.AnthropicModel, cfg.AnthropicBaseURL),
		cfg.ProviderRPS, cfg.ProviderBurst,
	)
	if cfg.OpenAIKey == "" {
		logger.Warn("OPENAI_API_KEY not set; primary provider disabled")
	}
	if cfg.AnthropicKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set; secondary provider disabled")
	}

	orchestrator := services.NewOrchestrator(primary, secondary, cfg.ProviderTimeout, logger.Named("orchestrator"))
	noteService := services.NewNoteService(conn)
	flashcardService := services.NewFlashcardService(conn, services.NewScheduler())
	quizService := services.NewQuizService(noteService, flashcardService)
	intakeService := services.NewIntakeService(
		noteService,
		orchestrator,
		services.NewVisionService(cfg.OpenAIKey, cfg.OpenAIVisionModel, cfg.OpenAIEndpoint),
		services.NewPDFService(),
		cfg.HeuristicOnFailure,
		logger.Named("intake"),
	)

	server := api.NewServer(noteService, flashcardService, quizService, intakeService, logger.Named("http"))

	// Two sequential provider calls plus upload extraction must fit.
	writeTimeout := 2*cfg.ProviderTimeout + 30*time.Second
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
