// Package runtime owns the session lifecycle: pairing, authentication,
// readiness, and reconnect-with-backoff. Every other component operates
// only while the supervisor reports a ready session.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gatekeeper/contract"
	"gatekeeper/domain"
	"gatekeeper/errors"
)

type SupervisorConfig struct {
	// BaseDelay seeds the reconnect backoff; attempt n waits
	// min(BaseDelay * 2^n, MaxDelay).
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	// AuthRetries is the fresh-pairing budget after authentication
	// failures. Zero makes the first failure terminal.
	AuthRetries int
}

// Status is the read-only snapshot exposed to the presentation layer.
type Status struct {
	ConnectionState    domain.SessionState
	LastPairingPayload string
	ReconnectAttempts  int
	BotIdentity        string
	LastFailureReason  string
}

// ConnectionSupervisor drives the session state machine from the
// platform lifecycle feed. It implements contract.Worker and
// contract.Session.
type ConnectionSupervisor struct {
	log           *slog.Logger
	platform      contract.Platform
	clock         contract.Clock
	presenter     contract.Presenter
	cfg           SupervisorConfig
	defaultDomain string

	mu           sync.Mutex
	state        domain.SessionState
	botIdentity  string
	lastPairing  string
	attempts     int
	authFailures int
	lastFailure  string

	resetCh chan struct{}
}

func NewConnectionSupervisor(
	log *slog.Logger,
	platform contract.Platform,
	clock contract.Clock,
	presenter contract.Presenter,
	cfg SupervisorConfig,
	defaultDomain string,
) *ConnectionSupervisor {
	return &ConnectionSupervisor{
		log:           log,
		platform:      platform,
		clock:         clock,
		presenter:     presenter,
		cfg:           cfg,
		defaultDomain: defaultDomain,
		state:         domain.StateUninitialized,
		resetCh:       make(chan struct{}, 1),
	}
}

// Run starts the pairing cycle and consumes lifecycle events until the
// context ends, the feed closes, or the session fails terminally. A
// terminal failure returns nil so the worker runner does not restart
// the session; recovery then requires an external reset.
func (s *ConnectionSupervisor) Run(ctx context.Context) error {
	s.setState(domain.StateAwaitingPairing)
	if err := s.platform.RequestPairing(ctx); err != nil {
		s.log.Warn("Initial pairing request failed", "error", err)
	}

	events := s.platform.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.resetCh:
			s.restartPairing(ctx)
		case ev, ok := <-events:
			if !ok {
				s.log.Info("Lifecycle feed closed")
				return nil
			}
			if terminal := s.handle(ctx, ev); terminal {
				s.log.Error("Session failed permanently, external restart required",
					"reason", s.Snapshot().LastFailureReason)
				return nil
			}
		}
	}
}

// handle applies one lifecycle event. The boolean is true when the
// session reached the terminal FAILED state.
func (s *ConnectionSupervisor) handle(ctx context.Context, ev domain.LifecycleEvent) bool {
	next, accepted := domain.NextState(s.State(), ev.Kind)
	if !accepted {
		s.log.Debug("Lifecycle event ignored in current state",
			"state", s.State().String(), "event", ev.Kind.String())
		return false
	}
	s.setState(next)

	switch ev.Kind {
	case domain.EventPairingCode:
		s.mu.Lock()
		s.lastPairing = ev.PairingCode
		s.mu.Unlock()
		if s.presenter != nil {
			s.presenter.ShowPairingCode(ev.PairingCode)
		}
	case domain.EventAuthenticated:
		s.log.Info("Session authenticated")
	case domain.EventReady:
		s.onReady(ev)
	case domain.EventAuthFailure:
		return s.onAuthFailure(ctx, ev)
	case domain.EventDisconnected:
		return s.onDisconnected(ctx, ev)
	}
	return false
}

func (s *ConnectionSupervisor) onReady(ev domain.LifecycleEvent) {
	id, ok := domain.Canonicalize(ev.Self, s.defaultDomain)
	if !ok {
		s.log.Warn("Self identity could not be canonicalized")
	}

	s.mu.Lock()
	s.botIdentity = id
	s.attempts = 0
	s.authFailures = 0
	s.lastPairing = ""
	s.lastFailure = ""
	s.mu.Unlock()

	s.log.Info("Session ready", "bot", id)
}

func (s *ConnectionSupervisor) onAuthFailure(ctx context.Context, ev domain.LifecycleEvent) bool {
	s.mu.Lock()
	s.lastFailure = ev.Reason
	exhausted := s.authFailures >= s.cfg.AuthRetries
	if !exhausted {
		s.authFailures++
	}
	s.mu.Unlock()

	if exhausted {
		s.setState(domain.StateFailed)
		return true
	}

	s.log.Warn("Authentication failed, starting fresh pairing cycle", "reason", ev.Reason)
	if err := s.platform.RequestPairing(ctx); err != nil {
		s.log.Warn("Pairing request failed", "error", err)
	}
	return false
}

// onDisconnected schedules a reconnect attempt with exponential
// backoff. It blocks until the delay elapses, a manual reset arrives,
// or the context ends; no lifecycle events are expected from a dropped
// session in the meantime.
func (s *ConnectionSupervisor) onDisconnected(ctx context.Context, ev domain.LifecycleEvent) bool {
	s.mu.Lock()
	s.lastFailure = ev.Reason
	s.botIdentity = ""
	attempts := s.attempts
	s.mu.Unlock()

	if attempts >= s.cfg.MaxAttempts {
		s.log.Error("Reconnect budget exhausted",
			"attempts", attempts, "error", errors.ErrReconnectExhausted)
		s.setState(domain.StateFailed)
		return true
	}

	delay := s.backoffDelay(attempts)
	s.setState(domain.StateReconnecting)
	s.log.Info("Disconnected, reconnect scheduled",
		"reason", ev.Reason, "attempt", attempts+1, "delay", delay)

	select {
	case <-ctx.Done():
		return false
	case <-s.resetCh:
		// Manual reset cancels the pending reconnect timer.
		s.restartPairing(ctx)
		return false
	case <-s.clock.After(delay):
	}

	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()

	if err := s.platform.RequestPairing(ctx); err != nil {
		s.log.Warn("Reconnect pairing request failed", "error", err)
	}
	return false
}

func (s *ConnectionSupervisor) backoffDelay(attempts int) time.Duration {
	if attempts > 30 {
		return s.cfg.MaxDelay
	}
	delay := s.cfg.BaseDelay << uint(attempts)
	if delay <= 0 || delay > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return delay
}

// restartPairing services a manual reset: counters cleared, fresh
// pairing cycle started.
func (s *ConnectionSupervisor) restartPairing(ctx context.Context) {
	s.mu.Lock()
	s.attempts = 0
	s.authFailures = 0
	s.botIdentity = ""
	s.lastPairing = ""
	s.mu.Unlock()

	s.setState(domain.StateAwaitingPairing)
	s.log.Info("Manual reset, restarting pairing")
	if err := s.platform.RequestPairing(ctx); err != nil {
		s.log.Warn("Pairing request failed", "error", err)
	}
}

// Reset requests a manual restart of the pairing cycle. It cancels a
// pending reconnect timer if one is armed. Non-blocking.
func (s *ConnectionSupervisor) Reset() {
	select {
	case s.resetCh <- struct{}{}:
	default:
	}
}

func (s *ConnectionSupervisor) setState(state domain.SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		s.log.Debug("Session state changed", "from", prev.String(), "to", state.String())
	}
}

func (s *ConnectionSupervisor) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ConnectionSupervisor) Ready() bool {
	return s.State() == domain.StateReady
}

func (s *ConnectionSupervisor) BotIdentity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.botIdentity
}

// Snapshot returns the status surface polled by the presentation layer.
func (s *ConnectionSupervisor) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ConnectionState:    s.state,
		LastPairingPayload: s.lastPairing,
		ReconnectAttempts:  s.attempts,
		BotIdentity:        s.botIdentity,
		LastFailureReason:  s.lastFailure,
	}
}
