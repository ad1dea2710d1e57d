//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"gatekeeper/domain"
	"reflect"
	"time"
)

// Platform is the chat-platform adapter boundary. The transport behind
// it (pairing, session internals, wire protocol) is not part of this
// module; the core only consumes these primitives.
type Platform interface {
	// RequestPairing starts or restarts a pairing cycle. Progress is
	// reported through the lifecycle event feed.
	RequestPairing(ctx context.Context) error
	// Events is the lifecycle feed: pairing codes, authentication,
	// readiness, failures, disconnects.
	Events() <-chan domain.LifecycleEvent
	// Messages is the inbound message feed.
	Messages() <-chan domain.Message

	// GetChat and GetAllChats return caller-owned chat handles.
	// Callers populate participants on their own handle; scheduler
	// batches overlap with message processing, so implementations must
	// never share one mutable chat between calls.
	GetChat(ctx context.Context, id string) (*domain.Chat, error)
	GetAllChats(ctx context.Context) ([]*domain.Chat, error)
	// FetchParticipants may return an empty list; that is a degraded
	// state, not an error.
	FetchParticipants(ctx context.Context, chat *domain.Chat) ([]domain.Participant, error)
	SendMessage(ctx context.Context, chatID, text string, mentions []domain.Participant) error
	DeleteMessage(ctx context.Context, msg domain.Message, forEveryone bool) error
	GetInviteCode(ctx context.Context, chatID string) (string, error)
	SetAdminsOnlyMode(ctx context.Context, chatID string, enabled bool) error
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Clock abstracts current time and timer registration so schedule and
// backoff behavior are testable without waiting for wall-clock time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// WarningLedger records the last enforcement instant per chat.
// Timestamps are monotonically non-decreasing per key.
type WarningLedger interface {
	LastWarning(chatID string) (time.Time, bool, error)
	RecordWarning(chatID string, at time.Time) error
}

// Presenter receives pairing codes for display. Rendering (QR image,
// terminal glyphs, web page) lives outside the core.
type Presenter interface {
	ShowPairingCode(code string)
}

// Session is the read side of the connection lifecycle. Components must
// suspend their actions, without erroring, whenever Ready is false.
type Session interface {
	Ready() bool
	// BotIdentity returns the canonical self identity, empty until the
	// session first reaches ready.
	BotIdentity() string
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
