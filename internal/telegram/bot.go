package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"jarvis/internal/assistant"
	"jarvis/internal/auth"
	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/pending"
	"jarvis/internal/schedule"
)

const ownerPrefix = assistant.ChannelTelegram + ":"

// Bot serves one assistant session per Telegram chat.
type Bot struct {
	api       *tgbotapi.BotAPI
	s         sender
	authSvc   *auth.Service
	assistant *assistant.Assistant
	sessions  *assistant.Sessions
	logger    *zap.Logger

	admin    int64
	requests *pending.Queue
}

func New(botToken string, authSvc *auth.Service, a *assistant.Assistant, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	b := newBot(botAPISender{api: api}, authSvc, a, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, authSvc *auth.Service, a *assistant.Assistant, logger *zap.Logger) *Bot {
	return &Bot{
		s:         s,
		authSvc:   authSvc,
		assistant: a,
		sessions:  assistant.NewSessions(a, assistant.ChannelTelegram),
		logger:    logging.OrNop(logger),
	}
}

// EnableAccessRequests queues messages from unknown users for adminID to
// approve. Without it unknown users are only told their id.
func (b *Bot) EnableAccessRequests(q *pending.Queue, adminID int64) {
	b.requests = q
	b.admin = adminID
}

func (b *Bot) isAllowed(userID int64) bool {
	return (b.admin != 0 && userID == b.admin) || b.authSvc.IsAllowed(userID)
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleUpdate(ctx, update.Message)
			}
		}
	}
}

// handleUpdate keeps the loop alive when a turn panics.
func (b *Bot) handleUpdate(ctx context.Context, msg *tgbotapi.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("telegram handler panicked", zap.Any("panic", rec))
			b.sendMessage(msg.Chat.ID, llm.ApologyText)
		}
	}()
	b.handleIncomingMessage(ctx, msg)
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if !b.isAllowed(msg.From.ID) {
		b.logger.Warn("unauthorized access attempt",
			zap.Int64("user_id", msg.From.ID),
			zap.String("username", msg.From.UserName))
		b.requestAccess(msg)
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	sess := b.sessions.Open(strconv.FormatInt(msg.Chat.ID, 10))
	b.logger.Info("incoming message", zap.Int64("chat_id", msg.Chat.ID), zap.Int64("user_id", msg.From.ID))
	reply := sess.Process(ctx, text)
	b.sendMessage(msg.Chat.ID, reply.Text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	sess := b.sessions.Open(strconv.FormatInt(msg.Chat.ID, 10))
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, llm.ConversationStarter)
	case "clear":
		sess.Clear()
		b.sendMessage(msg.Chat.ID, "Conversation cleared")
	case "stats":
		b.sendMessage(msg.Chat.ID, b.stats(ctx, sess))
	case "skills":
		var sb strings.Builder
		sb.WriteString("Available skills:\n")
		for _, c := range b.assistant.Router().Capabilities() {
			fmt.Fprintf(&sb, "- %s: %s\n", c.Name(), c.Describe())
		}
		b.sendMessage(msg.Chat.ID, sb.String())
	case "pending", "approve", "deny", "remove":
		if b.admin != 0 && msg.From.ID == b.admin {
			b.handleAdminCommand(msg)
			return
		}
		b.sendMessage(msg.Chat.ID, "Unknown command: /"+msg.Command())
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command: /"+msg.Command())
	}
}

func (b *Bot) stats(ctx context.Context, sess *assistant.Session) string {
	var sb strings.Builder
	if ms, err := b.assistant.MemoryStats(ctx); err != nil {
		b.logger.Warn("memory stats failed", zap.Error(err))
	} else {
		fmt.Fprintf(&sb, "Total memories: %d\n", ms.Total)
	}
	if ds, err := b.assistant.DailyStats(time.Now()); err == nil {
		fmt.Fprintf(&sb, "Messages today: %d\n", ds.TotalMessages)
	}
	sb.WriteString(sess.Summary())
	return sb.String()
}

// DeliverReminder sends a due reminder to the chat that created it.
// Reminders owned by other channels are ignored.
func (b *Bot) DeliverReminder(_ context.Context, r schedule.Reminder) {
	chat, ok := strings.CutPrefix(r.Owner, ownerPrefix)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		b.logger.Warn("bad reminder owner", zap.String("owner", r.Owner))
		return
	}
	b.sendMessage(id, "⏰ Reminder: "+r.Message)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
