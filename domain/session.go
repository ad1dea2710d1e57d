// Package domain contains core concepts of the group-guard bot.
// This file defines the session lifecycle state machine as data.
package domain

// SessionState is the connection lifecycle position.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateAwaitingPairing
	StateAuthenticating
	StateReady
	StateDisconnected
	StateReconnecting
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateAwaitingPairing:
		return "AWAITING_PAIRING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateReady:
		return "READY"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// EventKind identifies a platform lifecycle event.
type EventKind int

const (
	EventPairingCode EventKind = iota
	EventAuthenticated
	EventReady
	EventAuthFailure
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventPairingCode:
		return "pairing_code"
	case EventAuthenticated:
		return "authenticated"
	case EventReady:
		return "ready"
	case EventAuthFailure:
		return "auth_failure"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// LifecycleEvent is one entry of the platform lifecycle feed. Only the
// fields relevant to Kind are set.
type LifecycleEvent struct {
	Kind        EventKind
	PairingCode string      // EventPairingCode
	Self        IdentityRef // EventReady
	Reason      string      // EventAuthFailure, EventDisconnected
}

// SessionTransitions is the lifecycle transition table. A missing entry
// means the event is ignored in that state. Policy decisions that depend
// on runtime counters (auth retry budget, reconnect attempt cap) are
// applied by the supervisor on top of this table.
var SessionTransitions = map[SessionState]map[EventKind]SessionState{
	StateAwaitingPairing: {
		EventPairingCode:   StateAwaitingPairing,
		EventAuthenticated: StateAuthenticating,
		EventAuthFailure:   StateAwaitingPairing,
		EventDisconnected:  StateDisconnected,
	},
	StateAuthenticating: {
		EventReady:        StateReady,
		EventAuthFailure:  StateAwaitingPairing,
		EventDisconnected: StateDisconnected,
	},
	StateReady: {
		EventDisconnected: StateDisconnected,
	},
	StateReconnecting: {
		EventPairingCode:   StateAwaitingPairing,
		EventAuthenticated: StateAuthenticating,
		EventReady:         StateReady,
		EventAuthFailure:   StateReconnecting,
		EventDisconnected:  StateDisconnected,
	},
}

// NextState applies the transition table. The boolean is false when the
// event is not accepted in the current state.
func NextState(cur SessionState, ev EventKind) (SessionState, bool) {
	row, ok := SessionTransitions[cur]
	if !ok {
		return cur, false
	}
	next, ok := row[ev]
	if !ok {
		return cur, false
	}
	return next, true
}
