// Package memory provides a deterministic in-memory platform adapter.
// It backs the tests and stands at the wiring seam of the process
// shell; the real chat transport lives outside this module.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"gatekeeper/domain"
	"gatekeeper/errors"
)

type SentMessage struct {
	ChatID   string
	Text     string
	Mentions []domain.Participant
}

type ToggleCall struct {
	ChatID  string
	Enabled bool
}

type Platform struct {
	mu       sync.Mutex
	events   chan domain.LifecycleEvent
	messages chan domain.Message
	chats    map[string]*domain.Chat
	order    []string
	members  map[string][]domain.Participant
	invites  map[string]string

	pairingCode     string
	pairingRequests int

	ParticipantsErr error
	ChatsErr        error
	InviteErr       error
	SendErr         error
	DeleteErr       error
	ToggleErr       error

	sent        []SentMessage
	deleted     []domain.Message
	toggles     []ToggleCall
	inviteCalls int
}

func NewPlatform() *Platform {
	return &Platform{
		events:   make(chan domain.LifecycleEvent, 64),
		messages: make(chan domain.Message, 64),
		chats:    make(map[string]*domain.Chat),
		members:  make(map[string][]domain.Participant),
		invites:  make(map[string]string),
	}
}

// NewInboundMessage mints a message with a fresh platform id.
func NewInboundMessage(chatID string, from domain.IdentityRef, body string, at time.Time) domain.Message {
	return domain.Message{
		ID:     uuid.NewString(),
		ChatID: chatID,
		From:   from,
		Body:   body,
		At:     at,
	}
}

// Seeding and inspection, used by tests and the process shell.

func (p *Platform) AddChat(chat *domain.Chat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.chats[chat.ID]; !exists {
		p.order = append(p.order, chat.ID)
	}
	p.chats[chat.ID] = chat
}

// SetMembers seeds what a direct participant fetch will return for the
// chat, independently of the chat handle's own list.
func (p *Platform) SetMembers(chatID string, members []domain.Participant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[chatID] = members
}

func (p *Platform) SetInvite(chatID, code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invites[chatID] = code
}

func (p *Platform) SetPairingCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairingCode = code
}

func (p *Platform) EmitEvent(ev domain.LifecycleEvent) {
	p.events <- ev
}

func (p *Platform) EmitMessage(msg domain.Message) {
	p.messages <- msg
}

func (p *Platform) Sent() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SentMessage(nil), p.sent...)
}

func (p *Platform) Deleted() []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Message(nil), p.deleted...)
}

func (p *Platform) Toggles() []ToggleCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ToggleCall(nil), p.toggles...)
}

func (p *Platform) InviteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inviteCalls
}

func (p *Platform) PairingRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pairingRequests
}

// Platform contract.

func (p *Platform) RequestPairing(_ context.Context) error {
	p.mu.Lock()
	p.pairingRequests++
	code := p.pairingCode
	p.mu.Unlock()

	if code != "" {
		p.events <- domain.LifecycleEvent{Kind: domain.EventPairingCode, PairingCode: code}
	}
	return nil
}

func (p *Platform) Events() <-chan domain.LifecycleEvent {
	return p.events
}

func (p *Platform) Messages() <-chan domain.Message {
	return p.messages
}

func (p *Platform) GetChat(_ context.Context, id string) (*domain.Chat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	chat, ok := p.chats[id]
	if !ok {
		return nil, errors.ErrChatNotFound
	}
	return cloneChat(chat), nil
}

func (p *Platform) GetAllChats(_ context.Context) ([]*domain.Chat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ChatsErr != nil {
		return nil, p.ChatsErr
	}
	return lo.Map(p.order, func(id string, _ int) *domain.Chat {
		return cloneChat(p.chats[id])
	}), nil
}

// cloneChat hands out a caller-owned snapshot. Message processing and
// scheduler batches resolve membership on their own handle; sharing one
// mutable chat between them would race.
func cloneChat(chat *domain.Chat) *domain.Chat {
	if chat == nil {
		return nil
	}
	snapshot := *chat
	snapshot.Participants = append([]domain.Participant(nil), chat.Participants...)
	return &snapshot
}

func (p *Platform) FetchParticipants(_ context.Context, chat *domain.Chat) ([]domain.Participant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ParticipantsErr != nil {
		return nil, p.ParticipantsErr
	}
	members := p.members[chat.ID]
	if members == nil {
		return nil, nil
	}
	return append([]domain.Participant(nil), members...), nil
}

func (p *Platform) SendMessage(_ context.Context, chatID, text string, mentions []domain.Participant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SendErr != nil {
		return p.SendErr
	}
	p.sent = append(p.sent, SentMessage{ChatID: chatID, Text: text, Mentions: mentions})
	return nil
}

func (p *Platform) DeleteMessage(_ context.Context, msg domain.Message, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DeleteErr != nil {
		return p.DeleteErr
	}
	p.deleted = append(p.deleted, msg)
	return nil
}

func (p *Platform) GetInviteCode(_ context.Context, chatID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inviteCalls++
	if p.InviteErr != nil {
		return "", p.InviteErr
	}
	code, ok := p.invites[chatID]
	if !ok {
		return "", errors.ErrChatNotFound
	}
	return code, nil
}

func (p *Platform) SetAdminsOnlyMode(_ context.Context, chatID string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ToggleErr != nil {
		return p.ToggleErr
	}
	chat, ok := p.chats[chatID]
	if !ok {
		return errors.ErrChatNotFound
	}
	chat.AdminsOnly = enabled
	p.toggles = append(p.toggles, ToggleCall{ChatID: chatID, Enabled: enabled})
	return nil
}
