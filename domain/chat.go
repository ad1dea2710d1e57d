// Package domain contains core concepts of the group-guard bot.
// This file defines chats and their participants.
package domain

// Participant is an immutable membership snapshot taken at resolution
// time. IDs are canonical.
type Participant struct {
	ID           string
	IsAdmin      bool
	IsSuperAdmin bool
}

// Privileged reports whether the participant may bypass content policy
// and act on group settings.
func (p Participant) Privileged() bool {
	return p.IsAdmin || p.IsSuperAdmin
}

// Chat is the platform's view of a conversation. Participants start
// empty and are lazily populated by the directory; an empty list means
// membership is unknown, not that the chat has no members.
type Chat struct {
	ID           string
	Name         string
	IsGroup      bool
	Participants []Participant
	AdminsOnly   bool
}

func (c *Chat) HasParticipants() bool {
	return c != nil && len(c.Participants) > 0
}
