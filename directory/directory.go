// Package directory resolves chat membership and admin flags on top of
// the platform adapter. Membership data is eventual and sometimes
// missing; the directory degrades to an empty participant list rather
// than erroring.
package directory

import (
	"context"
	"log/slog"

	"gatekeeper/contract"
	"gatekeeper/domain"
)

type Directory struct {
	platform      contract.Platform
	log           *slog.Logger
	defaultDomain string
}

func New(platform contract.Platform, log *slog.Logger, defaultDomain string) *Directory {
	return &Directory{platform: platform, log: log, defaultDomain: defaultDomain}
}

// EnsureParticipants populates chat.Participants in place. It is
// idempotent and bounded: one direct fetch, then one chat-list
// enumeration, never a retry loop. A chat left empty after both steps
// is a degraded-knowledge state the caller must handle.
func (d *Directory) EnsureParticipants(ctx context.Context, chat *domain.Chat) {
	if chat == nil || chat.HasParticipants() {
		return
	}

	participants, err := d.platform.FetchParticipants(ctx, chat)
	if err != nil {
		d.log.Debug("Direct participant fetch failed", "chat", chat.ID, "error", err)
	}
	if len(participants) > 0 {
		chat.Participants = participants
		return
	}

	all, err := d.platform.GetAllChats(ctx)
	if err != nil {
		d.log.Debug("Chat enumeration fallback failed", "chat", chat.ID, "error", err)
		return
	}
	for _, other := range all {
		if other == nil || other.ID != chat.ID {
			continue
		}
		if len(other.Participants) > 0 {
			chat.Participants = other.Participants
		}
		return
	}
}

// FindParticipant scans the chat's membership for the given canonical
// id. Absence is reported through the boolean, never as an error.
func (d *Directory) FindParticipant(chat *domain.Chat, canonicalID string) (domain.Participant, bool) {
	if chat == nil || canonicalID == "" {
		return domain.Participant{}, false
	}
	for _, p := range chat.Participants {
		id, ok := domain.Canonicalize(domain.CanonicalID(p.ID), d.defaultDomain)
		if ok && id == canonicalID {
			return p, true
		}
	}
	return domain.Participant{}, false
}
