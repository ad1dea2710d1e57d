package workers

import (
	"context"
	"log/slog"

	"gatekeeper/contract"
	"gatekeeper/domain"
	"gatekeeper/moderation"
)

// ModerationWorker drains the inbound message feed into the moderation
// engine. A single goroutine drains the feed, so ordering within a chat
// is preserved and the chat-keyed cooldown state stays consistent.
type ModerationWorker struct {
	log     *slog.Logger
	session contract.Session
	engine  *moderation.Engine
	feed    <-chan domain.Message
}

func NewModerationWorker(
	log *slog.Logger,
	session contract.Session,
	engine *moderation.Engine,
	feed <-chan domain.Message,
) *ModerationWorker {
	return &ModerationWorker{log: log, session: session, engine: engine, feed: feed}
}

func (w *ModerationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case msg, ok := <-w.feed:
			if !ok {
				w.log.Debug("Message feed closed")
				return nil
			}
			// Anything other than a ready session suspends moderation;
			// the message passes through without error.
			if !w.session.Ready() {
				w.log.Debug("Session not ready, message skipped", "chat", msg.ChatID)
				continue
			}
			action := w.engine.Evaluate(ctx, msg)
			if action != moderation.ActionAllow {
				w.log.Debug("Message moderated", "chat", msg.ChatID, "action", action.String())
			}
		}
	}
}
