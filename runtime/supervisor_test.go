package runtime_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"gatekeeper/domain"
	"gatekeeper/platform/memory"
	"gatekeeper/runtime"
)

const waitFor = 2 * time.Second

type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	delays []time.Duration
	fire   chan time.Time
}

func newStepClock() *stepClock {
	return &stepClock{
		now:  time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
		fire: make(chan time.Time),
	}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays = append(c.delays, d)
	return c.fire
}

func (c *stepClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// Fire releases the pending timer.
func (c *stepClock) Fire() {
	c.fire <- time.Time{}
}

type recordingPresenter struct {
	mu    sync.Mutex
	codes []string
}

func (p *recordingPresenter) ShowPairingCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, code)
}

func (p *recordingPresenter) Codes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.codes...)
}

type supervisorFixture struct {
	platform  *memory.Platform
	clock     *stepClock
	presenter *recordingPresenter
	sup       *runtime.ConnectionSupervisor
	done      chan error
	cancel    context.CancelFunc
}

func startSupervisor(t *testing.T, cfg runtime.SupervisorConfig) *supervisorFixture {
	t.Helper()
	platform := memory.NewPlatform()
	clock := newStepClock()
	presenter := &recordingPresenter{}
	sup := runtime.NewConnectionSupervisor(
		logs.GetLoggerFromLevel(slog.LevelDebug),
		platform, clock, presenter, cfg, "c.us")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()
	t.Cleanup(cancel)

	return &supervisorFixture{
		platform:  platform,
		clock:     clock,
		presenter: presenter,
		sup:       sup,
		done:      done,
		cancel:    cancel,
	}
}

func defaultConfig() runtime.SupervisorConfig {
	return runtime.SupervisorConfig{
		BaseDelay:   5 * time.Second,
		MaxDelay:    5 * time.Minute,
		MaxAttempts: 10,
		AuthRetries: 3,
	}
}

func (f *supervisorFixture) waitState(t *testing.T, want domain.SessionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.sup.State() == want
	}, waitFor, 5*time.Millisecond, "expected state %s, got %s", want, f.sup.State())
}

func (f *supervisorFixture) bringUp(t *testing.T) {
	t.Helper()
	f.waitState(t, domain.StateAwaitingPairing)
	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventAuthenticated})
	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventReady,
		Self: domain.CanonicalID("bot@c.us")})
	f.waitState(t, domain.StateReady)
}

func TestConnectionSupervisor_PairingToReady(t *testing.T) {
	req := require.New(t)
	f := startSupervisor(t, defaultConfig())
	f.waitState(t, domain.StateAwaitingPairing)
	req.Equal(1, f.platform.PairingRequests())

	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventPairingCode,
		PairingCode: "ABCD-1234"})
	req.Eventually(func() bool {
		return len(f.presenter.Codes()) == 1
	}, waitFor, 5*time.Millisecond)
	req.Equal("ABCD-1234", f.sup.Snapshot().LastPairingPayload)

	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventAuthenticated})
	f.waitState(t, domain.StateAuthenticating)

	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventReady,
		Self: domain.CanonicalID("bot@c.us")})
	f.waitState(t, domain.StateReady)

	req.True(f.sup.Ready())
	req.Equal("bot@c.us", f.sup.BotIdentity())

	status := f.sup.Snapshot()
	req.Empty(status.LastPairingPayload)
	req.Zero(status.ReconnectAttempts)
}

func TestConnectionSupervisor_IgnoresEventsOutOfOrder(t *testing.T) {
	req := require.New(t)
	f := startSupervisor(t, defaultConfig())
	f.waitState(t, domain.StateAwaitingPairing)

	// READY before authentication is not a valid transition.
	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventReady,
		Self: domain.CanonicalID("bot@c.us")})
	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventAuthenticated})
	f.waitState(t, domain.StateAuthenticating)
	req.False(f.sup.Ready())
	req.Empty(f.sup.BotIdentity())
}

func TestConnectionSupervisor_ReconnectBackoff(t *testing.T) {
	req := require.New(t)
	cfg := defaultConfig()
	cfg.MaxAttempts = 2
	f := startSupervisor(t, cfg)
	f.bringUp(t)

	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventDisconnected,
		Reason: "network down"})
	f.waitState(t, domain.StateReconnecting)
	req.Eventually(func() bool { return len(f.clock.Delays()) == 1 }, waitFor, 5*time.Millisecond)
	req.False(f.sup.Ready())
	req.Empty(f.sup.BotIdentity())

	f.clock.Fire()
	req.Eventually(func() bool {
		return f.platform.PairingRequests() == 2
	}, waitFor, 5*time.Millisecond)
	req.Equal(1, f.sup.Snapshot().ReconnectAttempts)

	// Second drop doubles the delay.
	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventDisconnected,
		Reason: "still down"})
	req.Eventually(func() bool { return len(f.clock.Delays()) == 2 }, waitFor, 5*time.Millisecond)
	f.clock.Fire()
	req.Eventually(func() bool {
		return f.platform.PairingRequests() == 3
	}, waitFor, 5*time.Millisecond)

	req.Equal([]time.Duration{5 * time.Second, 10 * time.Second}, f.clock.Delays())

	// Third drop exceeds the attempt cap: terminal failure, no timer.
	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventDisconnected,
		Reason: "gone"})
	f.waitState(t, domain.StateFailed)

	select {
	case err := <-f.done:
		req.NoError(err)
	case <-time.After(waitFor):
		t.Fatal("supervisor did not stop after terminal failure")
	}
	req.Len(f.clock.Delays(), 2)
	req.Equal("gone", f.sup.Snapshot().LastFailureReason)
}

func TestConnectionSupervisor_BackoffCappedAtMaxDelay(t *testing.T) {
	req := require.New(t)
	cfg := defaultConfig()
	cfg.MaxDelay = 8 * time.Second
	f := startSupervisor(t, cfg)
	f.bringUp(t)

	for i := 0; i < 3; i++ {
		f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventDisconnected})
		want := i + 1
		req.Eventually(func() bool { return len(f.clock.Delays()) == want }, waitFor, 5*time.Millisecond)
		f.clock.Fire()
		req.Eventually(func() bool {
			return f.sup.Snapshot().ReconnectAttempts == want
		}, waitFor, 5*time.Millisecond)
	}

	// 5s, then min(10s, 8s), then min(20s, 8s).
	req.Equal([]time.Duration{5 * time.Second, 8 * time.Second, 8 * time.Second}, f.clock.Delays())
}

func TestConnectionSupervisor_ResetCancelsPendingReconnect(t *testing.T) {
	req := require.New(t)
	f := startSupervisor(t, defaultConfig())
	f.bringUp(t)

	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventDisconnected})
	req.Eventually(func() bool { return len(f.clock.Delays()) == 1 }, waitFor, 5*time.Millisecond)

	// The timer never fires; reset must unblock the supervisor itself.
	f.sup.Reset()
	f.waitState(t, domain.StateAwaitingPairing)
	req.Eventually(func() bool {
		return f.platform.PairingRequests() == 2
	}, waitFor, 5*time.Millisecond)
	req.Zero(f.sup.Snapshot().ReconnectAttempts)
}

func TestConnectionSupervisor_AuthFailureRetriesThenFails(t *testing.T) {
	req := require.New(t)
	cfg := defaultConfig()
	cfg.AuthRetries = 1
	f := startSupervisor(t, cfg)
	f.waitState(t, domain.StateAwaitingPairing)

	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventAuthFailure,
		Reason: "bad credentials"})
	req.Eventually(func() bool {
		return f.platform.PairingRequests() == 2
	}, waitFor, 5*time.Millisecond)
	f.waitState(t, domain.StateAwaitingPairing)

	f.platform.EmitEvent(domain.LifecycleEvent{Kind: domain.EventAuthFailure,
		Reason: "bad credentials again"})
	f.waitState(t, domain.StateFailed)

	select {
	case err := <-f.done:
		req.NoError(err)
	case <-time.After(waitFor):
		t.Fatal("supervisor did not stop after auth exhaustion")
	}
	req.Equal("bad credentials again", f.sup.Snapshot().LastFailureReason)
}

func TestConnectionSupervisor_ContextCancellation(t *testing.T) {
	req := require.New(t)
	f := startSupervisor(t, defaultConfig())
	f.waitState(t, domain.StateAwaitingPairing)

	f.cancel()
	select {
	case err := <-f.done:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("supervisor did not stop on context cancellation")
	}
}
