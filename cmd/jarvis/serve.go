package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jarvis/internal/auth"
	"jarvis/internal/pending"
	"jarvis/internal/schedule"
	"jarvis/internal/telegram"
	"jarvis/internal/web"
)

type serveOptions struct {
	web      bool
	telegram bool
	port     int
}

// runServices starts the requested front ends plus the scheduler and blocks
// until a signal arrives or one of them fails.
func runServices(parent context.Context, opts *globalOptions, so serveOptions) error {
	a, err := loadBase(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.withAssistant(ctx); err != nil {
		return err
	}

	sched := a.newScheduler()
	sched.OnDue(func(_ context.Context, r schedule.Reminder) {
		a.logger.Info("reminder due", zap.String("id", r.ID), zap.String("owner", r.Owner), zap.String("message", r.Message))
	})

	g, gctx := errgroup.WithContext(ctx)

	if so.telegram {
		if a.cfg.TelegramBotToken == "" {
			return errors.New("TELEGRAM_BOT_TOKEN is required for the telegram front end")
		}
		repo, err := auth.NewFileRepository(a.cfg.AllowlistFilePath)
		if err != nil {
			return fmt.Errorf("failed to init allowlist repo: %w", err)
		}
		authSvc, err := auth.NewService(repo, a.cfg.AllowedUsers)
		if err != nil {
			return fmt.Errorf("failed to init auth: %w", err)
		}
		bot, err := telegram.New(a.cfg.TelegramBotToken, authSvc, a.assistant, a.logger)
		if err != nil {
			return err
		}
		if a.cfg.AdminUserID != 0 {
			q, err := pending.Open(a.cfg.PendingFilePath)
			if err != nil {
				return fmt.Errorf("failed to init pending repo: %w", err)
			}
			bot.EnableAccessRequests(q, a.cfg.AdminUserID)
		}
		sched.OnDue(bot.DeliverReminder)
		g.Go(func() error { return bot.Start(gctx) })
	}

	if so.web {
		port := so.port
		if port == 0 {
			port = a.cfg.WebPort
		}
		addr := net.JoinHostPort(a.cfg.WebHost, strconv.Itoa(port))
		srv := web.New(a.assistant, addr, a.logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := sched.Start(); err != nil {
		return err
	}
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("JARVIS shutdown")
	return nil
}
