package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"parking-status-monitor/internal/model"
	"parking-status-monitor/internal/upstream"
)

// TokenVerifier checks a bearer token against the backend. Implemented by
// upstream.Client.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) error
}

// Manager is the single source of truth for who is logged in and whether
// their credential is currently trusted. It owns the in-memory session and
// its durable copy; everything else receives read-only snapshots.
//
// The validity flag starts false on every process start and is only raised
// by Login or a successful CheckTokenValidity round-trip.
type Manager struct {
	store    Store
	verifier TokenVerifier
	interval time.Duration

	mu      sync.Mutex
	sess    model.Session
	changes chan struct{}
}

// NewManager creates a manager and hydrates any persisted session. Storage
// corruption degrades to a logged-out start, never a failed one.
func NewManager(store Store, verifier TokenVerifier, verifyInterval time.Duration) *Manager {
	m := &Manager{
		store:    store,
		verifier: verifier,
		interval: verifyInterval,
		changes:  make(chan struct{}, 1),
	}

	sess, err := store.Load()
	if err != nil {
		log.Printf("Warning: failed to load persisted session, starting logged out: %v", err)
	} else if sess != nil {
		// Presence is not trust: the hydrated token stays unvalidated
		// until the first verification round-trip.
		m.sess = model.Session{User: sess.User, Token: sess.Token}
	}

	return m
}

// Changes delivers a signal whenever the session is replaced or mutated.
// The channel is buffered; a slow consumer coalesces bursts into one wakeup.
func (m *Manager) Changes() <-chan struct{} {
	return m.changes
}

// Session returns a read-only copy of the current session.
func (m *Manager) Session() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Token returns the current bearer token, empty when logged out. Implements
// upstream.TokenSource.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.Token
}

// BranchID returns the branch scope of the logged-in user, 0 when unknown.
func (m *Manager) BranchID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.BranchID()
}

// Login installs a freshly authenticated identity and token, persists both,
// and marks the session valid. The caller is responsible for having obtained
// them from a successful authentication call; there is no failure path, the
// in-memory state is authoritative and persistence is best-effort.
func (m *Manager) Login(user *model.User, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sess = model.Session{User: user, Token: token, Valid: true}
	if err := m.store.Save(&m.sess); err != nil {
		log.Printf("Warning: failed to persist session: %v", err)
	}
	m.notifyLocked()
}

// Logout clears the session and its durable copy. Idempotent.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sess = model.Session{}
	if err := m.store.Clear(); err != nil {
		log.Printf("Warning: failed to clear persisted session: %v", err)
	}
	m.notifyLocked()
}

// UpdateUser replaces the identity record and re-persists it. Token and
// validity are untouched. Partial updates are the caller's to merge first.
func (m *Manager) UpdateUser(user *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sess.User = user
	if err := m.store.SaveUser(user); err != nil {
		log.Printf("Warning: failed to persist user record: %v", err)
	}
	m.notifyLocked()
}

// CheckTokenValidity re-validates the held token against the backend.
//
// No token short-circuits to false without touching the network. A
// definitive rejection tears the whole session down. A transport-class
// failure says nothing about the token, so the session is kept and only the
// trust flag drops; the error is returned for diagnostics.
func (m *Manager) CheckTokenValidity(ctx context.Context) (bool, error) {
	m.mu.Lock()
	token := m.sess.Token
	if token == "" {
		m.sess.Valid = false
		m.mu.Unlock()
		return false, nil
	}
	m.mu.Unlock()

	err := m.verifier.VerifyToken(ctx, token)

	m.mu.Lock()
	defer m.mu.Unlock()

	// A login or logout may have swapped the token while the request was in
	// flight; a verdict about the old token must not touch the new session.
	if m.sess.Token != token {
		return false, nil
	}

	switch {
	case err == nil:
		m.sess.Valid = true
		return true, nil
	case errors.Is(err, upstream.ErrUnauthorized):
		m.sess = model.Session{}
		if clearErr := m.store.Clear(); clearErr != nil {
			log.Printf("Warning: failed to clear persisted session: %v", clearErr)
		}
		m.notifyLocked()
		return false, nil
	default:
		m.sess.Valid = false
		return false, err
	}
}

// Run re-validates the session on a fixed interval until ctx is cancelled.
// When no token is held the cycle is a no-op, so the loop does not need to
// be torn down across logins and logouts.
func (m *Manager) Run(ctx context.Context) {
	log.Printf("Starting session re-validation every %s", m.interval)

	if _, err := m.CheckTokenValidity(ctx); err != nil {
		log.Printf("Session re-validation failed: %v", err)
	}

	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Session re-validation shutting down.")
			return
		case <-timer.C:
			ok, err := m.CheckTokenValidity(ctx)
			switch {
			case err != nil:
				log.Printf("Session re-validation failed: %v", err)
			case !ok && m.Token() == "":
				log.Println("Session is no longer valid.")
			}
			timer.Reset(m.interval)
		}
	}
}

// snapshotLocked copies the session so callers cannot mutate shared state.
func (m *Manager) snapshotLocked() model.Session {
	out := model.Session{Token: m.sess.Token, Valid: m.sess.Valid}
	if m.sess.User != nil {
		user := *m.sess.User
		out.User = &user
	}
	return out
}

func (m *Manager) notifyLocked() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}
