package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gatekeeper/directory"
	"gatekeeper/domain"
	"gatekeeper/mocks"
	"gatekeeper/moderation"
	"gatekeeper/platform/memory"
)

func TestModerationWorker_DrainsFeedIntoEngine(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	platform := memory.NewPlatform()
	platform.AddChat(&domain.Chat{ID: "g1@g.us", IsGroup: true,
		Participants: []domain.Participant{
			{ID: "bot@c.us", IsAdmin: true},
			{ID: "alice@c.us"},
		}})

	session := &testSession{ready: true, self: "bot@c.us"}
	dir := directory.New(platform, log, "c.us")
	matcher, err := moderation.NewMatcher([]string{"tiktok.com"})
	req.NoError(err)

	ledger := mocks.NewMockWarningLedger(ctrl)
	ledger.EXPECT().LastWarning("g1@g.us").Return(time.Time{}, false, nil)
	ledger.EXPECT().RecordWarning("g1@g.us", gomock.Any()).Return(nil)

	clock := newTestClock()
	engine := moderation.NewEngine(log, platform, dir, matcher, ledger, clock,
		session, "c.us", moderation.DefaultCooldown)

	worker := NewModerationWorker(log, session, engine, platform.Messages())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	platform.EmitMessage(memory.NewInboundMessage("g1@g.us",
		domain.CanonicalID("alice@c.us"), "https://tiktok.com/@x", clock.Now()))

	req.Eventually(func() bool {
		return len(platform.Deleted()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	req.Len(platform.Sent(), 1)
}

func TestModerationWorker_SkipsWhenSessionNotReady(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	platform := memory.NewPlatform()
	platform.AddChat(&domain.Chat{ID: "g1@g.us", IsGroup: true,
		Participants: []domain.Participant{
			{ID: "bot@c.us", IsAdmin: true},
			{ID: "alice@c.us"},
		}})

	session := &testSession{ready: false, self: "bot@c.us"}
	dir := directory.New(platform, log, "c.us")
	matcher, err := moderation.NewMatcher([]string{"tiktok.com"})
	req.NoError(err)

	// The ledger must never be touched while the session is down.
	ledger := mocks.NewMockWarningLedger(ctrl)

	clock := newTestClock()
	engine := moderation.NewEngine(log, platform, dir, matcher, ledger, clock,
		session, "c.us", moderation.DefaultCooldown)

	worker := NewModerationWorker(log, session, engine, platform.Messages())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	platform.EmitMessage(memory.NewInboundMessage("g1@g.us",
		domain.CanonicalID("alice@c.us"), "https://tiktok.com/@x", clock.Now()))

	// Give the worker time to consume the message, then shut down.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	req.Empty(platform.Deleted())
	req.Empty(platform.Sent())
}
