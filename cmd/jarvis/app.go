package main

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"jarvis/internal/assistant"
	"jarvis/internal/config"
	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/memory"
	"jarvis/internal/schedule"
	"jarvis/internal/scheduler"
	"jarvis/internal/skills"
	"jarvis/internal/storage"
)

type globalOptions struct {
	configPath string
	debug      bool
}

// app owns the process-wide components. Commands build only what they need:
// loadBase for configuration and memory, then withAssistant for the full
// pipeline.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     memory.Store
	memory    *memory.Gateway
	reminders *schedule.FileRepository
	recorder  *storage.FileRecorder
	assistant *assistant.Assistant
}

func loadBase(opts *globalOptions) (*app, error) {
	if err := config.LoadDotenv(opts.configPath); err != nil && opts.configPath != "" {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.DebugMode = true
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile, cfg.DebugMode)
	if err != nil {
		return nil, err
	}

	store, err := memory.Open(cfg.MemoryBackend, cfg.MemoryDBPath, cfg.MemoryCollection)
	if err != nil {
		return nil, err
	}
	reminders, err := schedule.NewFileRepository(cfg.SchedulesFile())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init reminders: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		memory:    memory.NewGateway(store, memory.WithCollection(cfg.MemoryCollection), memory.WithLogger(logger)),
		reminders: reminders,
	}, nil
}

// withAssistant validates the provider settings and assembles the pipeline.
func (a *app) withAssistant(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	backend, err := llm.NewFactory(a.cfg).CreateBackend(a.cfg.AIProvider, a.cfg.Model())
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}
	personas, err := llm.LoadPersonas(a.cfg.PersonasFile)
	if err != nil {
		a.logger.Warn("personas file unreadable, using defaults", zap.Error(err))
		personas = llm.DefaultPersonas()
	}
	gen := llm.NewGenerator(backend,
		personas.SystemPrompt(a.cfg.Personality, a.cfg.ResponseStyle),
		llm.WithDefaults(a.cfg.MaxTokens, a.cfg.Temperature),
		llm.WithTimeout(a.cfg.RequestTimeout),
		llm.WithLogger(a.logger),
	)

	var images skills.ImageGenerator
	if a.cfg.OpenAIAPIKey != "" {
		oc := openai.DefaultConfig(a.cfg.OpenAIAPIKey)
		if a.cfg.OpenAIBaseURL != "" {
			oc.BaseURL = a.cfg.OpenAIBaseURL
		}
		images = openai.NewClientWithConfig(oc)
	}
	router, err := skills.NewDefaultRouter(ctx, a.cfg, skills.Deps{
		Memory:    a.memory,
		Reminders: a.reminders,
		Images:    images,
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("init skills: %w", err)
	}

	var recorder storage.Recorder = storage.Nop{}
	if fr, err := storage.NewFileRecorder(a.cfg.InteractionsLogPath); err != nil {
		a.logger.Warn("failed to init file recorder", zap.Error(err))
	} else {
		a.recorder = fr
		recorder = fr
	}

	a.assistant = assistant.New(assistant.Deps{
		Router:           router,
		Generator:        gen,
		Memory:           a.memory,
		Recorder:         recorder,
		ConversationsDir: a.cfg.ConversationsDir,
		ContextBudget:    a.cfg.ContextTokenBudget,
		UserName:         a.cfg.UserName,
		Logger:           a.logger,
	})
	a.logger.Info("assistant ready",
		zap.String("backend", gen.BackendName()),
		zap.Strings("skills", router.Names()),
	)
	return nil
}

// newScheduler wires the reminder and retention jobs enabled in config.
// Delivery callbacks are registered by the caller.
func (a *app) newScheduler() *scheduler.Scheduler {
	s := scheduler.New(scheduler.Options{
		CheckInterval:   time.Duration(a.cfg.SchedulerCheckInterval) * time.Second,
		CleanupInterval: time.Duration(a.cfg.MemoryCleanupInterval) * time.Second,
		RetentionDays:   a.cfg.ConversationRetentionDays,
		Location:        a.cfg.Location(),
		Logger:          a.logger,
	})
	if a.cfg.EnableScheduler {
		s.SetReminders(a.reminders)
	}
	if a.cfg.MemoryCleanupEnabled {
		s.SetCleaner(a.memory)
	}
	return s
}

func (a *app) Close() {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Warn("close interactions log", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close memory store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
