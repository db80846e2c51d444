// fsm.go is the per-symbol state machine sequencing the institutional
// setup: sweep, change of character, fair value gap, mitigation, entry.
//
// States and triggers are closed sets; every (state, event) pair either
// has a transition here or is a deliberate no-op in the strategy loop.
// Transitions happen only from closed-candle evidence.
package smc

import (
	"time"

	"smc-trader/internal/config"
)

// State is one phase of the setup hunt.
type State string

const (
	StateIdle           State = "IDLE"
	StateWaitSweep      State = "WAIT_SWEEP"
	StateWaitChoch      State = "WAIT_CHOCH"
	StateWaitFVG        State = "WAIT_FVG"
	StateWaitMitigation State = "WAIT_MITIGATION"
	StateWaitEntry      State = "WAIT_ENTRY"
	StateCooldown       State = "COOLDOWN"
)

// Transition is one recorded state change.
type Transition struct {
	From    State
	To      State
	Trigger string
	At      time.Time
}

const maxTransitionHistory = 20

// FSM tracks the current phase, when it was entered, and a bounded
// transition history for the status surface.
type FSM struct {
	state     State
	changedAt time.Time
	history   []Transition
}

// NewFSM starts in IDLE.
func NewFSM(now time.Time) *FSM {
	return &FSM{state: StateIdle, changedAt: now}
}

// State returns the current phase.
func (f *FSM) State() State { return f.state }

// ChangedAt returns when the current phase was entered.
func (f *FSM) ChangedAt() time.Time { return f.changedAt }

// History returns the recorded transitions, oldest first.
func (f *FSM) History() []Transition {
	out := make([]Transition, len(f.history))
	copy(out, f.history)
	return out
}

// Transition moves to a new phase and records it. Self-transitions are
// no-ops so callers can re-assert a state without polluting history.
func (f *FSM) Transition(to State, trigger string, now time.Time) bool {
	if to == f.state {
		return false
	}
	f.history = append(f.history, Transition{From: f.state, To: to, Trigger: trigger, At: now})
	if len(f.history) > maxTransitionHistory {
		f.history = f.history[len(f.history)-maxTransitionHistory:]
	}
	f.state = to
	f.changedAt = now
	return true
}

// timeout returns the configured dwell limit for the current state;
// zero means the state never expires (IDLE).
func (f *FSM) timeout(cfg config.SMCConfig) time.Duration {
	switch f.state {
	case StateWaitSweep:
		return cfg.WaitSweepTimeout
	case StateWaitChoch:
		return cfg.WaitChochTimeout
	case StateWaitFVG:
		return cfg.WaitFVGTimeout
	case StateWaitMitigation:
		return cfg.WaitMitigTimeout
	case StateWaitEntry:
		return cfg.WaitEntryTimeout
	case StateCooldown:
		return cfg.CooldownTimeout
	}
	return 0
}

// Expired reports whether the current state outlived its timeout.
func (f *FSM) Expired(cfg config.SMCConfig, now time.Time) bool {
	limit := f.timeout(cfg)
	return limit > 0 && now.Sub(f.changedAt) > limit
}
