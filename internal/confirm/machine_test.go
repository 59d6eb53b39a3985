package confirm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storesense/internal/model"
)

// fakeMemory is an in-memory Memory for tests.
type fakeMemory struct {
	ids map[string]bool
	err error
}

func (f *fakeMemory) Contains(_ context.Context, storeID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.ids[storeID], nil
}

func candidate(storeID string, conf int) *model.Candidate {
	return &model.Candidate{
		Store:      &model.Store{ID: storeID},
		Confidence: conf,
		Method:     model.MethodDistance,
	}
}

func TestMachine_NilCandidateReturnsToIdle(t *testing.T) {
	m := NewMachine(&fakeMemory{})
	m.Begin()
	assert.Equal(t, StateDetecting, m.State())
	assert.Equal(t, StateIdle, m.Resolve(context.Background(), nil))
}

func TestMachine_HighConfidenceSilentAccept(t *testing.T) {
	m := NewMachine(&fakeMemory{})
	m.Begin()
	st := m.Resolve(context.Background(), candidate("new-store", 95))
	assert.Equal(t, StateSilentAccept, st)
	assert.Nil(t, m.Pending())
}

func TestMachine_LowConfidenceRequiresConfirmation(t *testing.T) {
	m := NewMachine(&fakeMemory{})
	m.Begin()
	st := m.Resolve(context.Background(), candidate("new-store", 94))
	assert.Equal(t, StatePendingConfirmation, st)
	require.NotNil(t, m.Pending())
	assert.Equal(t, "new-store", m.Pending().Store.ID)
}

func TestMachine_KnownStoreAcceptedAtAnyConfidence(t *testing.T) {
	mem := &fakeMemory{ids: map[string]bool{"known": true}}
	m := NewMachine(mem)
	m.Begin()
	// Confidence 30 would normally ask; prior confirmation wins.
	assert.Equal(t, StateSilentAccept, m.Resolve(context.Background(), candidate("known", 30)))
}

func TestMachine_ConfirmedFloorOption(t *testing.T) {
	mem := &fakeMemory{ids: map[string]bool{"known": true}}
	m := NewMachine(mem, WithConfirmedFloor(50))
	m.Begin()
	assert.Equal(t, StatePendingConfirmation, m.Resolve(context.Background(), candidate("known", 30)))
	m.Begin()
	assert.Equal(t, StateSilentAccept, m.Resolve(context.Background(), candidate("known", 50)))
}

func TestMachine_MemoryErrorDegradesToFirstEncounter(t *testing.T) {
	mem := &fakeMemory{ids: map[string]bool{"known": true}, err: errors.New("disk gone")}
	m := NewMachine(mem)
	m.Begin()
	assert.Equal(t, StatePendingConfirmation, m.Resolve(context.Background(), candidate("known", 70)))
}

func TestMachine_AcceptFlow(t *testing.T) {
	m := NewMachine(&fakeMemory{})
	m.Begin()
	m.Resolve(context.Background(), candidate("s", 70))

	cand, err := m.Accept()
	require.NoError(t, err)
	assert.Equal(t, "s", cand.Store.ID)
	assert.Equal(t, StateConfirmed, m.State())

	_, err = m.Accept()
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestMachine_RejectReturnsToIdle(t *testing.T) {
	m := NewMachine(&fakeMemory{})
	m.Begin()
	m.Resolve(context.Background(), candidate("s", 70))

	require.NoError(t, m.Reject())
	assert.Equal(t, StateIdle, m.State())
	assert.ErrorIs(t, m.Reject(), ErrNoPending)
}

func TestMachine_ChangeStore(t *testing.T) {
	m := NewMachine(&fakeMemory{})
	m.Begin()
	m.Resolve(context.Background(), candidate("wrong", 70))

	cand, err := m.ChangeStore(&model.Store{ID: "right"})
	require.NoError(t, err)
	assert.Equal(t, "right", cand.Store.ID)
	assert.Equal(t, StateConfirmed, m.State())
}

func TestMachine_CancelNeverLeavesNonTerminalState(t *testing.T) {
	m := NewMachine(&fakeMemory{})

	m.Begin()
	m.Cancel()
	assert.Equal(t, StateIdle, m.State())

	m.Begin()
	m.Resolve(context.Background(), candidate("s", 70))
	m.Cancel()
	assert.Equal(t, StateIdle, m.State())
	assert.Nil(t, m.Pending())

	// Cancel after a terminal state is a no-op.
	m.Begin()
	m.Resolve(context.Background(), candidate("s", 95))
	m.Cancel()
	assert.Equal(t, StateSilentAccept, m.State())
}

func TestMachine_NilMemory(t *testing.T) {
	m := NewMachine(nil)
	m.Begin()
	assert.Equal(t, StatePendingConfirmation, m.Resolve(context.Background(), candidate("s", 70)))
}
