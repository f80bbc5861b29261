package status

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-monitor/internal/model"
	"parking-status-monitor/internal/upstream"
)

// fakeSession is a scriptable SessionSource.
type fakeSession struct {
	branch  atomic.Int64
	changes chan struct{}
}

func newFakeSession(branchID int64) *fakeSession {
	s := &fakeSession{changes: make(chan struct{}, 1)}
	s.branch.Store(branchID)
	return s
}

func (s *fakeSession) BranchID() int64          { return s.branch.Load() }
func (s *fakeSession) Changes() <-chan struct{} { return s.changes }

func (s *fakeSession) setBranch(branchID int64) {
	s.branch.Store(branchID)
	s.changes <- struct{}{}
}

// fakeFetcher is a scriptable StatusFetcher that counts calls.
type fakeFetcher struct {
	mu    sync.Mutex
	fn    func(call int, branchID int64) (*model.ParkingStatusSnapshot, error)
	calls int
}

func (f *fakeFetcher) ParkingStatus(ctx context.Context, branchID int64) (*model.ParkingStatusSnapshot, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fn := f.fn
	f.mu.Unlock()
	return fn(call, branchID)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingSink collects dispatched alerts.
type recordingSink struct {
	mu     sync.Mutex
	alerts []model.ParkingAlert
}

func (r *recordingSink) Dispatch(branchID int64, alert model.ParkingAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingSink) dispatched() []model.ParkingAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ParkingAlert(nil), r.alerts...)
}

// recordingArchive collects archived snapshots.
type recordingArchive struct {
	mu    sync.Mutex
	snaps []*model.ParkingStatusSnapshot
}

func (r *recordingArchive) RecordSnapshot(ctx context.Context, snap *model.ParkingStatusSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return nil
}

func snapshotFor(branchID int64, available int, alert model.ParkingAlert) *model.ParkingStatusSnapshot {
	return &model.ParkingStatusSnapshot{
		BranchID:  branchID,
		Timestamp: time.Now().UTC(),
		Summary: model.ParkingSummary{
			TotalSpaces:     100,
			AvailableSpaces: available,
			OccupiedSpaces:  100 - available,
			OccupancyRate:   float64(100 - available),
			ActiveVehicles:  100 - available,
		},
		Alert: alert,
	}
}

func TestSynchronizer_RefreshSuccess(t *testing.T) {
	snap := snapshotFor(7, 40, model.ParkingAlert{Level: model.AlertNormal})
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		assert.Equal(t, int64(7), branchID)
		return snap, nil
	}}
	archive := &recordingArchive{}
	s := NewSynchronizer(fetcher, newFakeSession(7), archive, nil, time.Minute)

	s.Refresh(context.Background())

	state := s.State()
	assert.False(t, state.Loading)
	assert.Empty(t, state.Err)
	assert.Same(t, snap, state.Snapshot)
	require.Len(t, archive.snaps, 1)
}

func TestSynchronizer_RefreshNoBranchSkipsNetwork(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		t.Fatal("fetcher must not be called without a branch")
		return nil, nil
	}}
	s := NewSynchronizer(fetcher, newFakeSession(0), nil, nil, time.Minute)

	s.Refresh(context.Background())

	state := s.State()
	assert.False(t, state.Loading)
	assert.Equal(t, msgNoBranch, state.Err)
	assert.Nil(t, state.Snapshot)
	assert.Zero(t, fetcher.callCount())
}

func TestSynchronizer_WellFormedFailureKeepsPriorSnapshot(t *testing.T) {
	first := snapshotFor(7, 40, model.ParkingAlert{Level: model.AlertNormal})
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		if call == 1 {
			return first, nil
		}
		return nil, &upstream.APIError{Message: "X"}
	}}
	s := NewSynchronizer(fetcher, newFakeSession(7), nil, nil, time.Minute)

	s.Refresh(context.Background())
	s.Refresh(context.Background())

	state := s.State()
	assert.Equal(t, "X", state.Err)
	assert.Same(t, first, state.Snapshot) // stale but visible
	assert.False(t, state.Loading)
}

func TestSynchronizer_TransportFailureSetsGenericError(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}
	s := NewSynchronizer(fetcher, newFakeSession(7), nil, nil, time.Minute)

	s.Refresh(context.Background())

	state := s.State()
	assert.Equal(t, msgUnreachable, state.Err)
	assert.Nil(t, state.Snapshot)
	assert.False(t, state.Loading)
}

func TestSynchronizer_SuccessClearsEarlierError(t *testing.T) {
	snap := snapshotFor(7, 40, model.ParkingAlert{Level: model.AlertNormal})
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		if call == 1 {
			return nil, &upstream.APIError{Message: "X"}
		}
		return snap, nil
	}}
	s := NewSynchronizer(fetcher, newFakeSession(7), nil, nil, time.Minute)

	s.Refresh(context.Background())
	assert.Equal(t, "X", s.State().Err)

	s.Refresh(context.Background())
	state := s.State()
	assert.Empty(t, state.Err)
	assert.Same(t, snap, state.Snapshot)
}

func TestSynchronizer_StaleResponseDiscarded(t *testing.T) {
	slow := snapshotFor(7, 99, model.ParkingAlert{Level: model.AlertNormal})
	fresh := snapshotFor(7, 5, model.ParkingAlert{Level: model.AlertWarning})

	release := make(chan struct{})
	started := make(chan struct{})
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		if call == 1 {
			close(started)
			<-release
			return slow, nil
		}
		return fresh, nil
	}}
	s := NewSynchronizer(fetcher, newFakeSession(7), nil, nil, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Refresh(context.Background())
	}()

	<-started
	s.Refresh(context.Background()) // newer generation wins
	close(release)
	<-done

	state := s.State()
	assert.Same(t, fresh, state.Snapshot)
	assert.False(t, state.Loading)
}

func TestSynchronizer_RunPollsOnInterval(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		return snapshotFor(branchID, 40, model.ParkingAlert{Level: model.AlertNormal}), nil
	}}
	s := NewSynchronizer(fetcher, newFakeSession(7), nil, nil, 25*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// One immediate poll, then roughly one per interval.
	assert.Eventually(t, func() bool { return fetcher.callCount() >= 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return fetcher.callCount() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_RunRefreshesOnBranchChange(t *testing.T) {
	var polled sync.Map
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		polled.Store(branchID, true)
		return snapshotFor(branchID, 40, model.ParkingAlert{Level: model.AlertNormal}), nil
	}}
	session := newFakeSession(7)
	s := NewSynchronizer(fetcher, session, nil, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap != nil && snap.BranchID == 7
	}, time.Second, time.Millisecond)

	session.setBranch(9)
	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap != nil && snap.BranchID == 9
	}, time.Second, time.Millisecond)

	_, ok := polled.Load(int64(9))
	assert.True(t, ok)
}

func TestSynchronizer_RunBranchLostDiscardsSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		return snapshotFor(branchID, 40, model.ParkingAlert{Level: model.AlertNormal}), nil
	}}
	session := newFakeSession(7)
	s := NewSynchronizer(fetcher, session, nil, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	assert.Eventually(t, func() bool { return s.Snapshot() != nil }, time.Second, time.Millisecond)

	session.setBranch(0) // logout
	assert.Eventually(t, func() bool {
		state := s.State()
		return state.Snapshot == nil && state.Err == msgNoBranch
	}, time.Second, time.Millisecond)
}

func TestSynchronizer_AlertDispatchIsEdgeTriggered(t *testing.T) {
	alerts := []model.ParkingAlert{
		{Level: model.AlertNormal, ShouldNotify: false},
		{Level: model.AlertCritical, Message: "almost full", ShouldNotify: true},
		{Level: model.AlertCritical, Message: "almost full", ShouldNotify: true}, // repeat: no dispatch
		{Level: model.AlertWarning, Message: "filling up", ShouldNotify: true},   // level change: dispatch
		{Level: model.AlertNormal, ShouldNotify: false},                          // re-arms
		{Level: model.AlertWarning, Message: "filling up", ShouldNotify: true},   // dispatch again
	}
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		return snapshotFor(branchID, 5, alerts[call-1]), nil
	}}
	sink := &recordingSink{}
	s := NewSynchronizer(fetcher, newFakeSession(7), nil, sink, time.Minute)

	for range alerts {
		s.Refresh(context.Background())
	}

	got := sink.dispatched()
	require.Len(t, got, 3)
	assert.Equal(t, model.AlertCritical, got[0].Level)
	assert.Equal(t, model.AlertWarning, got[1].Level)
	assert.Equal(t, model.AlertWarning, got[2].Level)
}

func TestSynchronizer_ShouldNotifyFalseNeverDispatches(t *testing.T) {
	// Level alone never triggers delivery; the backend's shouldNotify flag
	// gates it.
	fetcher := &fakeFetcher{fn: func(call int, branchID int64) (*model.ParkingStatusSnapshot, error) {
		return snapshotFor(branchID, 0, model.ParkingAlert{Level: model.AlertCritical, ShouldNotify: false}), nil
	}}
	sink := &recordingSink{}
	s := NewSynchronizer(fetcher, newFakeSession(7), nil, sink, time.Minute)

	s.Refresh(context.Background())
	s.Refresh(context.Background())

	assert.Empty(t, sink.dispatched())
}
