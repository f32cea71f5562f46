package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanderio/concierge/internal/domain"
)

func newTurn(sessionID, input string) domain.Turn {
	return domain.Turn{
		SessionID: sessionID,
		Input:     input,
		Decision:  domain.DecisionExecute,
		CreatedAt: time.Now().UTC(),
	}
}

func TestStore_GetOrCreateDefaults(t *testing.T) {
	s := NewStore(Options{}, nil, nil)

	sess, err := s.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, domain.AutonomyAssisted, sess.AutonomyLevel)
	assert.Equal(t, "en", sess.Language)

	// Empty id allocates a fresh one.
	fresh, err := s.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.ID)
	assert.NotEqual(t, "s1", fresh.ID)
}

func TestStore_GetUnknownSession(t *testing.T) {
	s := NewStore(Options{}, nil, nil)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStore_ConcurrentMessagesAllCommit(t *testing.T) {
	s := NewStore(Options{LockTimeout: 5 * time.Second}, nil, nil)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.WithLock(context.Background(), "s1", func(sess *domain.Session) error {
				sess.Turns = append(sess.Turns, newTurn("s1", fmt.Sprintf("m%d", i)))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	// Every message became exactly one committed turn; none lost to a race.
	assert.Len(t, sess.Turns, n)
}

func TestStore_LockContentionRejectsWithBusy(t *testing.T) {
	s := NewStore(Options{LockTimeout: 50 * time.Millisecond}, nil, nil)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithLock(context.Background(), "s1", func(sess *domain.Session) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := s.WithLock(context.Background(), "s1", func(sess *domain.Session) error {
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrSessionBusy)
	close(release)
}

func TestStore_FailedTurnDoesNotCommit(t *testing.T) {
	s := NewStore(Options{}, nil, nil)

	require.NoError(t, s.WithLock(context.Background(), "s1", func(sess *domain.Session) error {
		sess.Turns = append(sess.Turns, newTurn("s1", "good"))
		return nil
	}))

	boom := errors.New("boom")
	err := s.WithLock(context.Background(), "s1", func(sess *domain.Session) error {
		sess.Turns = append(sess.Turns, newTurn("s1", "bad"))
		sess.Language = "es"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sess, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	// The failed critical section left no trace, partial or otherwise.
	require.Len(t, sess.Turns, 1)
	assert.Equal(t, "good", sess.Turns[0].Input)
	assert.Equal(t, "en", sess.Language)
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	s := NewStore(Options{}, nil, nil)

	require.NoError(t, s.WithLock(context.Background(), "s1", func(sess *domain.Session) error {
		sess.Turns = append(sess.Turns, newTurn("s1", "one"))
		return nil
	}))

	snap, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	snap.Turns[0].Input = "tampered"
	snap.Language = "xx"

	again, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "one", again.Turns[0].Input)
	assert.Equal(t, "en", again.Language)
}

func TestStore_ContextCancelDuringLockWait(t *testing.T) {
	s := NewStore(Options{LockTimeout: 5 * time.Second}, nil, nil)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithLock(context.Background(), "s1", func(sess *domain.Session) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithLock(ctx, "s1", func(sess *domain.Session) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// captureSessionRepo records the context state seen by each write.
type captureSessionRepo struct {
	mu      sync.Mutex
	ctxErrs []error
}

func (r *captureSessionRepo) Upsert(ctx context.Context, _ *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

func (r *captureSessionRepo) Get(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}

func (r *captureSessionRepo) Delete(context.Context, string) error { return nil }

func TestStore_PersistSurvivesRequestCancel(t *testing.T) {
	repo := &captureSessionRepo{}
	s := NewStore(Options{}, repo, nil)

	// The client disconnects right after the turn finishes; the durable
	// write still has to land.
	ctx, cancel := context.WithCancel(context.Background())
	err := s.WithLock(ctx, "s1", func(sess *domain.Session) error {
		sess.Turns = append(sess.Turns, newTurn("s1", "one"))
		cancel()
		return nil
	})
	require.NoError(t, err)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.NotEmpty(t, repo.ctxErrs)
	for _, e := range repo.ctxErrs {
		assert.NoError(t, e)
	}
}

func TestStore_EvictInactiveKeepsDurableState(t *testing.T) {
	s := NewStore(Options{InactivityWindow: time.Nanosecond}, nil, nil)

	_, err := s.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 1, s.ActiveCount())

	time.Sleep(time.Millisecond)
	s.evictInactive()
	assert.Equal(t, 0, s.ActiveCount())
}
