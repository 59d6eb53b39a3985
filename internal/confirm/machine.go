// Package confirm turns a fused detection into a confirmation lifecycle:
// either the store is accepted silently or the user must confirm it.
package confirm

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/model"
)

// State is the confirmation lifecycle state.
type State string

const (
	StateIdle                State = "idle"
	StateDetecting           State = "detecting"
	StateSilentAccept        State = "silent_accept"
	StatePendingConfirmation State = "pending_confirmation"
	StateConfirmed           State = "confirmed"
)

// silentAcceptFloor is the confidence at or above which a first-encounter
// store is accepted without asking the user.
const silentAcceptFloor = 95

// Memory is the externally-persisted set of store ids the user has already
// accepted. The machine only reads it; the accept action that adds to it is
// the caller's responsibility to persist.
type Memory interface {
	Contains(ctx context.Context, storeID string) (bool, error)
}

// ErrNoPending is returned when Accept/Reject/ChangeStore is called with no
// pending confirmation.
var ErrNoPending = eris.New("confirm: no pending confirmation")

// Machine is the confirmation state machine for one detection flow. Safe
// for concurrent use.
type Machine struct {
	mu     sync.Mutex
	state  State
	memory Memory

	// confirmedFloor is the minimum current confidence required to silently
	// accept a previously-confirmed store. Zero (the default) trusts the
	// user's prior confirmation unconditionally.
	confirmedFloor int

	pending *model.Candidate
}

// Option configures a Machine.
type Option func(*Machine)

// WithConfirmedFloor overrides the confidence floor applied to
// previously-confirmed stores.
func WithConfirmedFloor(floor int) Option {
	return func(m *Machine) { m.confirmedFloor = floor }
}

// NewMachine creates an idle machine reading the given memory.
func NewMachine(memory Memory, opts ...Option) *Machine {
	m := &Machine{state: StateIdle, memory: memory}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns the candidate awaiting confirmation, or nil.
func (m *Machine) Pending() *model.Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Begin marks the start of a detection cycle.
func (m *Machine) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateDetecting
	m.pending = nil
}

// Resolve advances the machine from a fused candidate to a terminal state
// for this cycle. A nil candidate returns the machine to Idle. Memory read
// failures degrade to the first-encounter rules rather than failing the
// cycle.
func (m *Machine) Resolve(ctx context.Context, cand *model.Candidate) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cand == nil || cand.Store == nil {
		m.state = StateIdle
		m.pending = nil
		return m.state
	}

	known := false
	if m.memory != nil {
		var err error
		known, err = m.memory.Contains(ctx, cand.Store.ID)
		if err != nil {
			zap.L().Warn("confirmed-store memory read failed",
				zap.String("store_id", cand.Store.ID),
				zap.Error(err),
			)
			known = false
		}
	}

	switch {
	case known && cand.Confidence >= m.confirmedFloor:
		m.state = StateSilentAccept
		m.pending = nil
	case cand.Confidence >= silentAcceptFloor:
		m.state = StateSilentAccept
		m.pending = nil
	default:
		m.state = StatePendingConfirmation
		m.pending = cand
	}
	return m.state
}

// Accept confirms the pending candidate. Persisting the store id into
// Memory is the caller's job.
func (m *Machine) Accept() (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePendingConfirmation || m.pending == nil {
		return nil, ErrNoPending
	}
	cand := m.pending
	m.state = StateConfirmed
	m.pending = nil
	return cand, nil
}

// Reject discards the pending candidate and returns to Idle for a fresh
// detection cycle.
func (m *Machine) Reject() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePendingConfirmation {
		return ErrNoPending
	}
	m.state = StateIdle
	m.pending = nil
	return nil
}

// ChangeStore replaces the pending candidate with a manually selected store
// and confirms it immediately.
func (m *Machine) ChangeStore(store *model.Store) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePendingConfirmation {
		return nil, ErrNoPending
	}
	cand := &model.Candidate{Store: store, Confidence: 100, Method: model.MethodNone}
	m.state = StateConfirmed
	m.pending = nil
	return cand, nil
}

// Cancel aborts an in-flight cycle. The machine never stays in a
// non-terminal state after cancellation.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDetecting || m.state == StatePendingConfirmation {
		m.state = StateIdle
		m.pending = nil
	}
}
