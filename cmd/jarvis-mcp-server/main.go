package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"jarvis/internal/config"
	"jarvis/internal/logging"
	"jarvis/internal/memory"
	"jarvis/internal/schedule"
	"jarvis/internal/skills"
)

func main() {
	if err := config.LoadDotenv(""); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("failed to prepare data dirs: %v", err)
	}
	// stdout carries the protocol; logs go to stderr and LOG_FILE only.
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile, cfg.DebugMode)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := memory.Open(cfg.MemoryBackend, cfg.MemoryDBPath, cfg.MemoryCollection)
	if err != nil {
		logger.Fatal("failed to open memory store", zap.Error(err))
	}
	defer store.Close()
	reminders, err := schedule.NewFileRepository(cfg.SchedulesFile())
	if err != nil {
		logger.Fatal("failed to init reminders", zap.Error(err))
	}
	router, err := skills.NewDefaultRouter(ctx, cfg, skills.Deps{
		Memory:    memory.NewGateway(store, memory.WithCollection(cfg.MemoryCollection), memory.WithLogger(logger)),
		Reminders: reminders,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to init skills", zap.Error(err))
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "jarvis-mcp",
		Version: config.Version,
	}, nil)
	NewJarvisTools(router, logger).Register(server)

	logger.Info("starting JARVIS MCP server on stdin/stdout", zap.Strings("capabilities", router.Names()))
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil && ctx.Err() == nil {
		logger.Error("JARVIS MCP server failed", zap.Error(err))
	}
}
