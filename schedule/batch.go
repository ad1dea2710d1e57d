// Package schedule applies wall-clock group-access transitions: closing
// groups to admins-only at night and reopening them in the morning.
package schedule

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"gatekeeper/contract"
	"gatekeeper/directory"
	"gatekeeper/domain"
)

const (
	closeAnnouncement = "🌙 The group is closed for the night. Only admins can post until morning."
	openAnnouncement  = "☀️ Good morning! The group is open again."
)

// Batch applies one access transition across every known group. It is
// safe to run concurrently with message processing and with itself:
// it only reads chat state and issues idempotent adapter calls.
type Batch struct {
	log       *slog.Logger
	platform  contract.Platform
	directory *directory.Directory
	session   contract.Session
}

func NewBatch(log *slog.Logger, platform contract.Platform, dir *directory.Directory, session contract.Session) *Batch {
	return &Batch{log: log, platform: platform, directory: dir, session: session}
}

// Apply walks all group chats sequentially. A failure on one group is
// logged and never aborts the rest of the batch.
func (b *Batch) Apply(ctx context.Context, action domain.AccessAction) {
	chats, err := b.platform.GetAllChats(ctx)
	if err != nil {
		b.log.Error("Chat enumeration failed, batch skipped", "action", action, "error", err)
		return
	}
	groups := lo.Filter(chats, func(c *domain.Chat, _ int) bool {
		return c != nil && c.IsGroup
	})

	b.log.Info("Applying access transition", "action", action, "groups", len(groups))
	for _, group := range groups {
		b.applyToGroup(ctx, group, action)
	}
}

func (b *Batch) applyToGroup(ctx context.Context, group *domain.Chat, action domain.AccessAction) {
	b.directory.EnsureParticipants(ctx, group)

	// When the bot's own admin status cannot be resolved we skip the
	// group instead of guessing: fail-safe for destructive actions.
	bot, known := b.directory.FindParticipant(group, b.session.BotIdentity())
	if !known || !bot.Privileged() {
		b.log.Info("Bot is not a resolved admin, group skipped", "chat", group.ID, "action", action)
		return
	}

	if err := b.platform.SetAdminsOnlyMode(ctx, group.ID, action.AdminsOnly()); err != nil {
		b.log.Warn("Admins-only toggle failed", "chat", group.ID, "action", action, "error", err)
		return
	}
	if err := b.platform.SendMessage(ctx, group.ID, announcement(action), nil); err != nil {
		b.log.Warn("Announcement send failed", "chat", group.ID, "action", action, "error", err)
	}
}

func announcement(action domain.AccessAction) string {
	if action == domain.AccessClose {
		return closeAnnouncement
	}
	return openAnnouncement
}
