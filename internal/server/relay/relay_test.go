package relay

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/events"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	mu      sync.Mutex
	got     []events.Envelope
	failOn  string
	failErr error
}

func (p *stubPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if env.ID == p.failOn {
		return p.failErr
	}
	p.got = append(p.got, env)
	return nil
}

func (p *stubPublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.got {
		out = append(out, e.ID)
	}
	return out
}

func seed(t *testing.T, repo outbox.Repository, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, repo.Append(context.Background(), &models.OutboxRecord{
			ID: id, EventKind: string(events.KindUserCreated), IdentityID: "i-1",
			Payload: []byte(`{"identityId":"i-1"}`), OccurredAt: time.Now(),
		}))
	}
}

// loggingOutbox logs every MarkDispatched call with the context it receives.
type loggingOutbox struct {
	outbox.Repository
	log logging.Logger
}

func (o *loggingOutbox) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	o.log.Info(ctx, "mark dispatched")
	return o.Repository.MarkDispatched(ctx, id, at)
}

func TestDrainOnce_MarksDispatchedWithEventFields(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	repo := &loggingOutbox{Repository: outbox.NewMemoryRepository(outbox.NewMemoryStore(), nil), log: log}
	seed(t, repo, "a")

	n, err := New(repo, &stubPublisher{}, logging.Nop{}, time.Second, 10).DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Contains(t, buf.String(), "event_id=a")
	assert.Contains(t, buf.String(), "event_kind="+string(events.KindUserCreated))
}

func TestDrainOnce_PublishesInOrderAndMarks(t *testing.T) {
	store := outbox.NewMemoryStore()
	repo := outbox.NewMemoryRepository(store, nil)
	seed(t, repo, "a", "b", "c")

	pub := &stubPublisher{}
	r := New(repo, pub, logging.Nop{}, time.Second, 2)

	n, err := r.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, []string{"a", "b", "c"}, pub.ids())
	assert.Equal(t, events.KindUserCreated, pub.got[0].Kind)
	assert.Equal(t, "i-1", pub.got[0].IdentityID)
}

func TestDrainOnce_StopsAtFailureAndRecordsAttempt(t *testing.T) {
	store := outbox.NewMemoryStore()
	repo := outbox.NewMemoryRepository(store, nil)
	seed(t, repo, "a", "b", "c")

	pub := &stubPublisher{failOn: "b", failErr: errors.New("broker down")}
	r := New(repo, pub, logging.Nop{}, time.Second, 10)

	n, err := r.DrainOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a"}, pub.ids())

	pending, _ := repo.Pending(context.Background(), 10)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, 1, pending[0].Attempts)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "broker down", *pending[0].LastError)

	pub.failOn = ""
	n, err = r.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b", "c"}, pub.ids())
}

func TestRun_DrainsUntilCancelled(t *testing.T) {
	store := outbox.NewMemoryStore()
	repo := outbox.NewMemoryRepository(store, nil)
	seed(t, repo, "a")

	pub := &stubPublisher{}
	r := New(repo, pub, logging.Nop{}, 10*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return len(pub.ids()) == 1 }, time.Second, 5*time.Millisecond)
	seed(t, repo, "b")
	require.Eventually(t, func() bool { return len(pub.ids()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
