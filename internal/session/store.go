package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wanderio/concierge/internal/domain"
)

// Options tunes the store.
type Options struct {
	LockTimeout      time.Duration
	InactivityWindow time.Duration
	DefaultAutonomy  domain.AutonomyLevel
	DefaultLanguage  string
}

// Store owns all Session state. Processing within a session is serialized
// through a per-session lock; different sessions proceed fully concurrently.
// Sessions and turns are written through to the durable repositories when
// they are configured, so a restart resumes with the committed turn log.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	opts        Options
	sessionRepo domain.SessionRepository
	turnRepo    domain.TurnRepository
}

type entry struct {
	// sem is a one-slot semaphore. Channel acquisition composes with
	// timeouts and context cancellation, which sync.Mutex cannot.
	sem     chan struct{}
	session *domain.Session
}

// NewStore creates a session store. The repositories may be nil, in which
// case state is memory-only (used by tests).
func NewStore(opts Options, sessionRepo domain.SessionRepository, turnRepo domain.TurnRepository) *Store {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 3 * time.Second
	}
	if opts.InactivityWindow <= 0 {
		opts.InactivityWindow = 30 * time.Minute
	}
	if !opts.DefaultAutonomy.Valid() {
		opts.DefaultAutonomy = domain.AutonomyAssisted
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	return &Store{
		entries:     make(map[string]*entry),
		opts:        opts,
		sessionRepo: sessionRepo,
		turnRepo:    turnRepo,
	}
}

// GetOrCreate returns a snapshot of the session, creating it on first use.
// An empty id allocates a fresh session id.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	e, err := s.entryFor(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(e.session), nil
}

// Get returns a snapshot of an existing session.
func (s *Store) Get(ctx context.Context, id string) (*domain.Session, error) {
	e, err := s.entryFor(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(e.session), nil
}

// WithLock runs fn inside the session's exclusive critical section. fn
// receives a working copy; only if fn returns nil is the copy committed
// (and written through to the durable store). On lock contention beyond
// the configured timeout the message is rejected with ErrSessionBusy
// instead of being processed unsynchronized.
func (s *Store) WithLock(ctx context.Context, id string, fn func(sess *domain.Session) error) error {
	e, err := s.entryFor(ctx, id, true)
	if err != nil {
		return err
	}

	timer := time.NewTimer(s.opts.LockTimeout)
	defer timer.Stop()
	select {
	case e.sem <- struct{}{}:
	case <-timer.C:
		return domain.ErrSessionBusy
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	s.mu.Lock()
	working := cloneSession(e.session)
	committedTurns := len(e.session.Turns)
	s.mu.Unlock()

	if err := fn(working); err != nil {
		// Discard the working copy; the committed turn sequence is intact.
		return err
	}
	if len(working.Turns) < committedTurns {
		return fmt.Errorf("session %s: turn log shrank from %d to %d", id, committedTurns, len(working.Turns))
	}

	working.LastActivityAt = time.Now().UTC()

	s.mu.Lock()
	e.session = working
	s.mu.Unlock()

	// The commit already happened in memory; the durable write must not
	// be lost to a client that disconnected while fn was running.
	s.persist(context.WithoutCancel(ctx), working, working.Turns[committedTurns:])
	return nil
}

// ActiveCount returns the number of sessions resident in memory.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor evicts sessions idle past the inactivity window from the
// in-memory cache. Eviction is housekeeping, not deletion: the durable
// copy remains and the session reloads on its next message.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.evictInactive()
			}
		}
	}()
}

func (s *Store) evictInactive() {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if now.Sub(e.session.LastActivityAt) < s.opts.InactivityWindow {
			continue
		}
		// Skip sessions mid-turn.
		select {
		case e.sem <- struct{}{}:
			<-e.sem
		default:
			continue
		}
		delete(s.entries, id)
		log.Debug().Str("session_id", id).Msg("evicted inactive session")
	}
}

func (s *Store) entryFor(ctx context.Context, id string, create bool) (*entry, error) {
	s.mu.Lock()
	if id != "" {
		if e, ok := s.entries[id]; ok {
			s.mu.Unlock()
			return e, nil
		}
	}
	s.mu.Unlock()

	// Fall back to the durable store before creating.
	if id != "" && s.sessionRepo != nil {
		if sess, err := s.sessionRepo.Get(ctx, id); err == nil && sess != nil {
			if s.turnRepo != nil && len(sess.Turns) == 0 {
				if turns, err := s.turnRepo.ListBySession(ctx, id, 0); err == nil {
					sess.Turns = turns
				}
			}
			return s.adopt(sess), nil
		}
	}

	if !create {
		return nil, domain.ErrSessionNotFound
	}

	now := time.Now().UTC()
	if id == "" {
		id = uuid.NewString()
	}
	sess := &domain.Session{
		ID:             id,
		AutonomyLevel:  s.opts.DefaultAutonomy,
		Language:       s.opts.DefaultLanguage,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	e := s.adopt(sess)
	s.persist(context.WithoutCancel(ctx), sess, nil)
	return e, nil
}

// adopt installs a session into the in-memory map, keeping an existing
// entry if another goroutine adopted the same id first.
func (s *Store) adopt(sess *domain.Session) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[sess.ID]; ok {
		return e
	}
	e := &entry{
		sem:     make(chan struct{}, 1),
		session: sess,
	}
	s.entries[sess.ID] = e
	return e
}

func (s *Store) persist(ctx context.Context, sess *domain.Session, newTurns []domain.Turn) {
	if s.sessionRepo != nil {
		if err := s.sessionRepo.Upsert(ctx, sess); err != nil {
			log.Error().Err(err).Str("session_id", sess.ID).Msg("failed to persist session")
		}
	}
	if s.turnRepo != nil {
		for i := range newTurns {
			if err := s.turnRepo.Append(ctx, &newTurns[i]); err != nil {
				log.Error().Err(err).Str("session_id", sess.ID).Msg("failed to persist turn")
			}
		}
	}
}

func cloneSession(sess *domain.Session) *domain.Session {
	c := *sess
	c.Turns = make([]domain.Turn, len(sess.Turns))
	copy(c.Turns, sess.Turns)
	if sess.Location != nil {
		loc := *sess.Location
		c.Location = &loc
	}
	if sess.PendingIntent != nil {
		pending := *sess.PendingIntent
		c.PendingIntent = &pending
	}
	return &c
}
