package schedule_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"gatekeeper/directory"
	"gatekeeper/domain"
	"gatekeeper/moderation"
	"gatekeeper/platform/memory"
	"gatekeeper/schedule"
)

const botID = "bot@c.us"

type fakeSession struct {
	ready bool
	self  string
}

func (s *fakeSession) Ready() bool         { return s.ready }
func (s *fakeSession) BotIdentity() string { return s.self }

func newBatch(platform *memory.Platform) *schedule.Batch {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dir := directory.New(platform, log, "c.us")
	return schedule.NewBatch(log, platform, dir, &fakeSession{ready: true, self: botID})
}

func group(id string, botIsAdmin bool) *domain.Chat {
	return &domain.Chat{ID: id, IsGroup: true, Participants: []domain.Participant{
		{ID: botID, IsAdmin: botIsAdmin},
		{ID: "alice@c.us"},
	}}
}

func toggledIDs(platform *memory.Platform) []string {
	var ids []string
	for _, call := range platform.Toggles() {
		ids = append(ids, call.ChatID)
	}
	return ids
}

func TestApply_ClosesGroupsWhereBotIsAdmin(t *testing.T) {
	req := require.New(t)
	platform := memory.NewPlatform()
	platform.AddChat(group("g1@g.us", true))
	platform.AddChat(group("g2@g.us", false))
	platform.AddChat(group("g3@g.us", true))
	platform.AddChat(&domain.Chat{ID: "dm@c.us", IsGroup: false})

	newBatch(platform).Apply(context.Background(), domain.AccessClose)

	req.ElementsMatch([]string{"g1@g.us", "g3@g.us"}, toggledIDs(platform))
	for _, call := range platform.Toggles() {
		req.True(call.Enabled)
	}

	sent := platform.Sent()
	req.Len(sent, 2)
	for _, msg := range sent {
		req.Contains(msg.Text, "closed")
	}

	g1, err := platform.GetChat(context.Background(), "g1@g.us")
	req.NoError(err)
	req.True(g1.AdminsOnly)
	g2, err := platform.GetChat(context.Background(), "g2@g.us")
	req.NoError(err)
	req.False(g2.AdminsOnly)
}

func TestApply_OpenReversesClose(t *testing.T) {
	req := require.New(t)
	platform := memory.NewPlatform()
	platform.AddChat(group("g1@g.us", true))
	batch := newBatch(platform)
	ctx := context.Background()

	batch.Apply(ctx, domain.AccessClose)
	batch.Apply(ctx, domain.AccessOpen)

	g1, err := platform.GetChat(ctx, "g1@g.us")
	req.NoError(err)
	req.False(g1.AdminsOnly)

	calls := platform.Toggles()
	req.Len(calls, 2)
	req.True(calls[0].Enabled)
	req.False(calls[1].Enabled)

	sent := platform.Sent()
	req.Len(sent, 2)
	req.Contains(sent[1].Text, "open")
}

func TestApply_CloseTwiceIsIdempotent(t *testing.T) {
	req := require.New(t)
	platform := memory.NewPlatform()
	platform.AddChat(group("g1@g.us", true))
	batch := newBatch(platform)
	ctx := context.Background()

	batch.Apply(ctx, domain.AccessClose)
	batch.Apply(ctx, domain.AccessClose)

	g1, err := platform.GetChat(ctx, "g1@g.us")
	req.NoError(err)
	req.True(g1.AdminsOnly)
}

func TestApply_SkipsGroupWithUnresolvedBot(t *testing.T) {
	req := require.New(t)
	platform := memory.NewPlatform()
	// The bot is not in the membership list at all; its admin status is
	// unknown and the group must be left alone.
	platform.AddChat(&domain.Chat{ID: "g1@g.us", IsGroup: true,
		Participants: []domain.Participant{{ID: "alice@c.us"}}})

	newBatch(platform).Apply(context.Background(), domain.AccessClose)

	req.Empty(platform.Toggles())
	req.Empty(platform.Sent())
}

func TestApply_AnnouncementFailureDoesNotStopBatch(t *testing.T) {
	req := require.New(t)
	platform := memory.NewPlatform()
	platform.AddChat(group("g1@g.us", true))
	platform.AddChat(group("g2@g.us", true))
	platform.SendErr = fmt.Errorf("transport flaky")

	newBatch(platform).Apply(context.Background(), domain.AccessClose)

	// Both groups still got their toggle despite every send failing.
	req.ElementsMatch([]string{"g1@g.us", "g2@g.us"}, toggledIDs(platform))
	req.Empty(platform.Sent())
}

type memLedger struct {
	mu       sync.Mutex
	warnings map[string]time.Time
}

func (l *memLedger) LastWarning(chatID string) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.warnings[chatID]
	return at, ok, nil
}

func (l *memLedger) RecordWarning(chatID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings[chatID] = at
	return nil
}

type frozenClock struct{ now time.Time }

func (c frozenClock) Now() time.Time                       { return c.now }
func (c frozenClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

// A scheduled transition may land while the moderation path is busy on
// the same groups; both resolve membership on their own chat handles
// and must not disturb each other.
func TestApply_OverlapsWithMessageProcessing(t *testing.T) {
	req := require.New(t)
	platform := memory.NewPlatform()
	groupIDs := []string{"g1@g.us", "g2@g.us", "g3@g.us"}
	for _, id := range groupIDs {
		platform.AddChat(&domain.Chat{ID: id, IsGroup: true})
		platform.SetMembers(id, []domain.Participant{
			{ID: botID, IsAdmin: true},
			{ID: "alice@c.us"},
		})
	}

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	session := &fakeSession{ready: true, self: botID}
	dir := directory.New(platform, log, "c.us")
	batch := schedule.NewBatch(log, platform, dir, session)

	matcher, err := moderation.NewMatcher([]string{"tiktok.com"})
	req.NoError(err)
	clock := frozenClock{now: time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC)}
	engine := moderation.NewEngine(log, platform, dir, matcher,
		&memLedger{warnings: make(map[string]time.Time)}, clock,
		session, "c.us", moderation.DefaultCooldown)

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		batch.Apply(ctx, domain.AccessClose)
	}()
	for _, id := range groupIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			msg := memory.NewInboundMessage(id,
				domain.CanonicalID("alice@c.us"), "https://tiktok.com/@x", clock.Now())
			action := engine.Evaluate(ctx, msg)
			if action == moderation.ActionAllow {
				t.Errorf("violation in %s passed unmoderated", id)
			}
		}(id)
	}
	wg.Wait()

	req.Len(toggledIDs(platform), len(groupIDs))
	req.Len(platform.Deleted(), len(groupIDs))
}

func TestApply_ChatEnumerationFailure(t *testing.T) {
	req := require.New(t)
	platform := memory.NewPlatform()
	platform.AddChat(group("g1@g.us", true))
	platform.ChatsErr = fmt.Errorf("adapter down")

	newBatch(platform).Apply(context.Background(), domain.AccessClose)

	req.Empty(platform.Toggles())
}
