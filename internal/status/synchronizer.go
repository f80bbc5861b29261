package status

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"parking-status-monitor/internal/model"
	"parking-status-monitor/internal/upstream"
)

// Error messages surfaced through State. The no-branch case is a normal
// blocked state, not a transport problem, so it gets its own text.
const (
	msgNoBranch    = "session has no branch assigned; status polling is paused"
	msgUnreachable = "unable to reach the parking backend"
)

// StatusFetcher fetches a branch's occupancy snapshot. Implemented by
// upstream.Client.
type StatusFetcher interface {
	ParkingStatus(ctx context.Context, branchID int64) (*model.ParkingStatusSnapshot, error)
}

// SessionSource exposes the watch surface of the session manager.
type SessionSource interface {
	BranchID() int64
	Changes() <-chan struct{}
}

// Archiver records successful polls. Implemented by store.Store.
type Archiver interface {
	RecordSnapshot(ctx context.Context, snap *model.ParkingStatusSnapshot) error
}

// AlertSink receives alerts worth surfacing. Implemented by the
// notification worker pool.
type AlertSink interface {
	Dispatch(branchID int64, alert model.ParkingAlert)
}

// State is the consumer-facing view of the synchronizer. Snapshot and Err
// are not mutually exclusive: a prior snapshot stays visible while a later
// poll's error is shown.
type State struct {
	Snapshot *model.ParkingStatusSnapshot `json:"snapshot"`
	Loading  bool                         `json:"loading"`
	Err      string                       `json:"error,omitempty"`
}

// Synchronizer keeps a near-real-time occupancy snapshot for the session's
// branch. It refreshes immediately on start and on every branch change,
// then on a fixed interval; consumers read the latest state at any time.
//
// Refreshes are not serialized. Instead each one takes a generation number
// and a response that is no longer the newest issued is discarded, so an
// overlapping slow poll can never clobber a fresher one.
type Synchronizer struct {
	fetcher  StatusFetcher
	session  SessionSource
	archive  Archiver  // optional
	alerts   AlertSink // optional
	interval time.Duration

	gen atomic.Uint64

	mu        sync.Mutex
	snapshot  *model.ParkingStatusSnapshot
	loading   bool
	errMsg    string
	lastLevel model.AlertLevel
	notified  bool // lastLevel is meaningful
}

// NewSynchronizer creates a synchronizer. archive and alerts may be nil to
// disable archiving or notifications.
func NewSynchronizer(fetcher StatusFetcher, session SessionSource, archive Archiver, alerts AlertSink, interval time.Duration) *Synchronizer {
	return &Synchronizer{
		fetcher:  fetcher,
		session:  session,
		archive:  archive,
		alerts:   alerts,
		interval: interval,
	}
}

// State returns the current consumer view.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Snapshot: s.snapshot, Loading: s.loading, Err: s.errMsg}
}

// Snapshot returns the latest snapshot, nil when none has been fetched.
func (s *Synchronizer) Snapshot() *model.ParkingStatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Refresh performs one poll for the current session's branch.
//
// No branch means no network call: an explanatory error is set and the
// loading flag ends false. A well-formed failure surfaces the server's
// message; a transport failure surfaces a generic connectivity message. In
// both failure shapes the previous snapshot is retained (stale but
// visible). Only success replaces the snapshot, wholesale, and clears the
// error.
func (s *Synchronizer) Refresh(ctx context.Context) {
	branchID := s.session.BranchID()
	gen := s.gen.Add(1)

	if branchID == 0 {
		s.mu.Lock()
		if gen == s.gen.Load() {
			s.errMsg = msgNoBranch
			s.loading = false
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	snap, err := s.fetcher.ParkingStatus(ctx, branchID)

	s.mu.Lock()
	if gen != s.gen.Load() {
		// A newer refresh owns the state now; this response is stale.
		s.mu.Unlock()
		return
	}
	s.loading = false

	var apiErr *upstream.APIError
	switch {
	case err == nil:
		s.snapshot = snap
		s.errMsg = ""
	case errors.As(err, &apiErr):
		s.errMsg = apiErr.Message
		log.Printf("Status poll for branch %d rejected: %s", branchID, apiErr.Message)
	default:
		s.errMsg = msgUnreachable
		log.Printf("Status poll for branch %d failed: %v", branchID, err)
	}

	notify := false
	if err == nil {
		notify = s.shouldNotifyLocked(snap.Alert)
	}
	s.mu.Unlock()

	if err != nil {
		return
	}

	if s.archive != nil {
		if archErr := s.archive.RecordSnapshot(ctx, snap); archErr != nil {
			log.Printf("Failed to archive snapshot for branch %d: %v", branchID, archErr)
		}
	}
	if notify && s.alerts != nil {
		s.alerts.Dispatch(branchID, snap.Alert)
	}
}

// shouldNotifyLocked applies the edge trigger: the alert block must ask for
// notification, and the level must differ from the last one dispatched, so
// a condition persisting across polls is announced once.
func (s *Synchronizer) shouldNotifyLocked(alert model.ParkingAlert) bool {
	if !alert.ShouldNotify {
		// A quiet poll re-arms the trigger.
		s.notified = false
		return false
	}
	if s.notified && s.lastLevel == alert.Level {
		return false
	}
	s.lastLevel = alert.Level
	s.notified = true
	return true
}

// Run polls until ctx is cancelled: once immediately, then on every session
// change that moves the branch, then on the fixed interval. The interval
// restarts after a branch change so a switch is never followed by an
// immediate second poll.
func (s *Synchronizer) Run(ctx context.Context) {
	log.Printf("Starting status synchronizer, polling every %s", s.interval)

	branchID := s.session.BranchID()
	s.Refresh(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Status synchronizer shutting down.")
			return
		case <-s.session.Changes():
			current := s.session.BranchID()
			if current == branchID {
				continue
			}
			branchID = current
			s.resetBranch()
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			s.Refresh(ctx)
			timer.Reset(s.interval)
		case <-timer.C:
			s.Refresh(ctx)
			timer.Reset(s.interval)
		}
	}
}

// resetBranch discards state owned by the previous branch: the snapshot,
// any error, the alert trigger, and every in-flight fetch.
func (s *Synchronizer) resetBranch() {
	s.gen.Add(1)
	s.mu.Lock()
	s.snapshot = nil
	s.errMsg = ""
	s.loading = false
	s.notified = false
	s.mu.Unlock()
}
