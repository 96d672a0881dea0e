package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/pantry/internal/config"
	"github.com/dukerupert/pantry/internal/database"
	"github.com/dukerupert/pantry/internal/logging"
	"github.com/dukerupert/pantry/internal/parser"
	"github.com/dukerupert/pantry/internal/server"
	"github.com/dukerupert/pantry/internal/store"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without an API key the parser stays uninitialized and parse requests
	// with unknown items fail fast.
	var gen parser.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := parser.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		gen = g
	} else {
		logger.Warn("PANTRY_GEMINI_API_KEY not set, unknown items cannot be parsed")
	}

	categories := parser.NewCategoryCache(store.NewCategoryStore(db), cfg.CategoryCacheTTL, nil)
	itemParser := parser.New(gen, categories, store.NewParserLogStore(db), parser.Config{
		Timeout:         cfg.ParserTimeout,
		UnknownCategory: cfg.UnknownCategory,
		Language:        cfg.ListLanguage,
	}, logger.With("component", "parser"))

	srv := server.New(db, server.Config{
		Parser:         itemParser,
		Categories:     categories,
		MaxLines:       cfg.MaxLines,
		ParseRateLimit: cfg.ParseRateLimit,
		WSOrigins:      cfg.WSOrigins,
		TrustProxy:     cfg.TrustProxy,
	}, logger)
	go srv.RunCleanup(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.ParserTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("pantry listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	srv.Hub().Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	itemParser.Wait()
}
