package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DraftUpserter is the write the autosaver debounces.
type DraftUpserter interface {
	UpsertDraft(ctx context.Context, draftID uint64, f ReservationForm) (uint64, bool, error)
}

type draftSession struct {
	saving  sync.Mutex // held while an upsert is in flight
	timer   *time.Timer
	pending *ReservationForm
	draftID uint64
	lastErr error
	touched time.Time
}

// Autosaver debounces draft upserts per editing session. A burst of
// Schedule calls results in a single upsert of the last form once the
// session has been idle for the delay, and a session never has more than
// one upsert in flight.
type Autosaver struct {
	drafts  DraftUpserter
	delay   time.Duration
	timeout time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*draftSession
}

// NewAutosaver returns an autosaver waiting delay after the last edit.
func NewAutosaver(drafts DraftUpserter, delay time.Duration, log *zap.Logger) *Autosaver {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Autosaver{
		drafts:   drafts,
		delay:    delay,
		timeout:  10 * time.Second,
		log:      log,
		sessions: make(map[string]*draftSession),
	}
}

func (a *Autosaver) session(key string) *draftSession {
	ss, ok := a.sessions[key]
	if !ok {
		ss = &draftSession{}
		a.sessions[key] = ss
	}
	ss.touched = time.Now()
	return ss
}

// Schedule records form as the latest state of session and restarts its
// idle timer.
func (a *Autosaver) Schedule(key string, form ReservationForm) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ss := a.session(key)
	ss.pending = &form
	if ss.timer != nil {
		ss.timer.Stop()
	}
	ss.timer = time.AfterFunc(a.delay, func() { _ = a.run(key) })
}

// Resume binds session to an existing draft so later upserts update it.
func (a *Autosaver) Resume(key string, draftID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session(key).draftID = draftID
}

// Flush runs the pending upsert of session now, waits for any upsert in
// flight and returns the draft id bound to the session.
func (a *Autosaver) Flush(key string) (uint64, error) {
	a.mu.Lock()
	ss, ok := a.sessions[key]
	if ok && ss.timer != nil {
		ss.timer.Stop()
		ss.timer = nil
	}
	a.mu.Unlock()
	if !ok {
		return 0, nil
	}
	if err := a.run(key); err != nil {
		return a.DraftID(key), err
	}
	return a.DraftID(key), nil
}

// DraftID returns the draft bound to session, zero when none was written.
func (a *Autosaver) DraftID(key string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ss, ok := a.sessions[key]; ok {
		return ss.draftID
	}
	return 0
}

// Forget drops session state, typically after the draft was finalized or
// discarded. A pending upsert is cancelled.
func (a *Autosaver) Forget(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ss, ok := a.sessions[key]; ok {
		if ss.timer != nil {
			ss.timer.Stop()
		}
		ss.pending = nil
		delete(a.sessions, key)
	}
}

// FlushAll writes every pending form now. Used at shutdown.
func (a *Autosaver) FlushAll() {
	a.mu.Lock()
	keys := make([]string, 0, len(a.sessions))
	for key, ss := range a.sessions {
		if ss.pending != nil {
			keys = append(keys, key)
		}
	}
	a.mu.Unlock()
	for _, key := range keys {
		if _, err := a.Flush(key); err != nil {
			a.log.Warn("flush draft on shutdown", zap.String("session", key), zap.Error(err))
		}
	}
}

// Prune forgets sessions idle since before cutoff with nothing pending.
func (a *Autosaver) Prune(cutoff time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for key, ss := range a.sessions {
		if ss.pending == nil && ss.touched.Before(cutoff) {
			delete(a.sessions, key)
			n++
		}
	}
	return n
}

func (a *Autosaver) run(key string) error {
	a.mu.Lock()
	ss, ok := a.sessions[key]
	a.mu.Unlock()
	if !ok {
		return nil
	}

	ss.saving.Lock()
	defer ss.saving.Unlock()

	a.mu.Lock()
	form, id := ss.pending, ss.draftID
	ss.pending = nil
	a.mu.Unlock()
	if form == nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		return ss.lastErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	newID, skipped, err := a.drafts.UpsertDraft(ctx, id, *form)

	a.mu.Lock()
	if err == nil && newID != 0 {
		ss.draftID = newID
	}
	ss.lastErr = err
	a.mu.Unlock()

	if err != nil {
		a.log.Warn("draft autosave failed", zap.String("session", key), zap.Error(err))
	} else if !skipped {
		a.log.Debug("draft autosaved", zap.String("session", key), zap.Uint64("draft_id", newID))
	}
	return err
}
