package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/moltocasto/podcast-qa/internal/app"
	"github.com/moltocasto/podcast-qa/internal/handler"
	"github.com/moltocasto/podcast-qa/internal/mcp"
	"github.com/moltocasto/podcast-qa/internal/middleware"
	"github.com/moltocasto/podcast-qa/pkg/config"
)

const version = "1.0.0"

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("Starting "+cfg.AppName,
		"port", cfg.Port,
		"database", cfg.DSN(),
		"provider", cfg.LLMProvider,
		"mcp_enabled", cfg.MCPEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Adapters & services ──────────────────────────────────────────────
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// ── Fiber App ────────────────────────────────────────────────────────
	// No WriteTimeout: answer and job streams stay open longer than a request.
	fiberApp := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		ReadTimeout: 30 * time.Second,
	})

	// Global middleware
	fiberApp.Use(recover.New())
	fiberApp.Use(fiberlogger.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	fiberApp.Use(middleware.AuditMiddleware(a.Store))

	// Health check
	fiberApp.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": version,
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	jobTracker := handler.NewJobTracker(cfg.JobTimeout)

	handler.NewPodcastHandler(a.Store, a.Feeds, a.Store).Register(fiberApp)
	handler.NewEpisodeHandler(a.Store, a.Transcription, a.Questions, jobTracker, a.Store).Register(fiberApp)
	handler.NewEmbeddingHandler(a.Pipeline, a.Vectors, a.WorkQueue(), jobTracker, a.Store).Register(fiberApp)
	handler.NewAskHandler(a.Ask, a.Store).Register(fiberApp)
	handler.NewJobsHandler(jobTracker).Register(fiberApp)
	handler.NewAuditHandler(a.Store).Register(fiberApp)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(mcp.Deps{
			Episodes: a.Store,
			Embedder: a.AI,
			Store:    a.Vectors,
			Ask:      a.Ask,
			Pipeline: a.Pipeline,
			Queue:    a.WorkQueue(),
			Audit:    a.Store,
		}, version, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("Fiber listening", "port", cfg.Port)
	if err := fiberApp.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
