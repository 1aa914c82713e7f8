package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"jarvis/internal/auth"
)

func (b *Bot) requestAccess(msg *tgbotapi.Message) {
	if b.requests == nil || b.admin == 0 {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Access denied. Ask the owner to add your id %d to the allowlist.", msg.From.ID))
		return
	}
	u := auth.User{ID: msg.From.ID, Username: msg.From.UserName, FirstName: msg.From.FirstName}
	added, err := b.requests.Add(u)
	if err != nil {
		b.logger.Warn("failed to persist access request", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	if !added {
		b.sendMessage(msg.Chat.ID, "Your access request is already waiting for the administrator.")
		return
	}
	b.sendMessage(msg.Chat.ID, "Access request sent to the administrator. You will be notified once it is approved.")
	b.sendMessage(b.admin, fmt.Sprintf("Access request from %s (id %d).\n/approve %d or /deny %d", displayName(u), u.ID, u.ID, u.ID))
}

func (b *Bot) handleAdminCommand(msg *tgbotapi.Message) {
	if msg.Command() == "pending" {
		b.sendMessage(msg.Chat.ID, b.pendingList())
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Usage: /%s <user_id>", msg.Command()))
		return
	}
	uid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMessage(msg.Chat.ID, "Invalid user_id")
		return
	}

	switch msg.Command() {
	case "approve":
		b.approveUser(msg.Chat.ID, uid)
	case "deny":
		b.denyUser(msg.Chat.ID, uid)
	case "remove":
		if err := b.authSvc.Remove(uid); err != nil {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Failed to remove user: %v", err))
			return
		}
		b.sessions.Close(strconv.FormatInt(uid, 10))
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("User %d removed from the allowlist", uid))
	}
}

func (b *Bot) pendingList() string {
	var reqs []string
	if b.requests != nil {
		for _, r := range b.requests.List() {
			reqs = append(reqs, fmt.Sprintf("- %d %s (since %s)", r.User.ID, displayName(r.User), r.RequestedAt.Format("2006-01-02 15:04")))
		}
	}
	if len(reqs) == 0 {
		return "No pending access requests"
	}
	return "Pending access requests:\n" + strings.Join(reqs, "\n")
}

func (b *Bot) approveUser(adminChat, uid int64) {
	u := auth.User{ID: uid}
	if b.requests != nil {
		r, ok, err := b.requests.Take(uid)
		if err != nil {
			b.logger.Warn("failed to persist access request removal", zap.Int64("user_id", uid), zap.Error(err))
		}
		if ok {
			u = r.User
		}
	}
	if err := b.authSvc.Upsert(u); err != nil {
		b.sendMessage(adminChat, fmt.Sprintf("Failed to approve user: %v", err))
		return
	}
	b.logger.Info("access approved", zap.Int64("user_id", uid))
	b.sendMessage(adminChat, fmt.Sprintf("User %d approved", uid))
	b.sendMessage(uid, "Access granted. Say hello!")
}

func (b *Bot) denyUser(adminChat, uid int64) {
	if b.requests != nil {
		if _, ok, _ := b.requests.Take(uid); !ok {
			b.sendMessage(adminChat, fmt.Sprintf("No pending request from %d", uid))
			return
		}
	}
	b.logger.Info("access denied", zap.Int64("user_id", uid))
	b.sendMessage(adminChat, fmt.Sprintf("Request from %d denied", uid))
	b.sendMessage(uid, "Your access request was declined.")
}

func displayName(u auth.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "unknown"
}
