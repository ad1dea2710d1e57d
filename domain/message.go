// Package domain contains core concepts of the group-guard bot.
// This file defines inbound messages. Messages are immutable.
package domain

import "time"

// Message represents one inbound chat event. Sender references are kept
// raw; canonicalization happens at evaluation time.
type Message struct {
	ID     string
	ChatID string
	// Author is set for group messages where the platform distinguishes
	// the writing member from the chat origin. May be nil.
	Author IdentityRef
	// From is the message origin, always present.
	From IdentityRef
	Body string
	At   time.Time
}

// SenderRef picks the reference identifying who wrote the message,
// preferring the explicit author over the origin.
func (m Message) SenderRef() IdentityRef {
	if m.Author != nil {
		return m.Author
	}
	return m.From
}
