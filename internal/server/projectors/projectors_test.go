package projectors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/events"
	"github.com/dmitrijs2005/accountkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/profiles"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailer.Message(nil), s.sent...)
}

type failingProfiles struct {
	profiles.Repository
}

func (failingProfiles) CreateIfAbsent(context.Context, *models.Profile) (bool, error) {
	return false, errors.New("db down")
}

func (failingProfiles) DeleteIfPresent(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

func strPtr(s string) *string { return &s }

func meta(id string) events.Meta {
	return events.Meta{ID: id, OccurredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func TestProfileProjector_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := profiles.NewMemoryRepository(profiles.NewMemoryStore(), nil)
	p := NewProfileProjector(repo, logging.Nop{})

	e := events.UserCreated{IdentityID: "u1", Username: "alice", DisplayName: "Alice", Email: "a@b.co", Role: common.DefaultRole, Location: strPtr("Riga")}
	require.NoError(t, p.OnUserCreated(ctx, meta("e1"), e))

	e.DisplayName = "changed"
	require.NoError(t, p.OnUserCreated(ctx, meta("e1"), e))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, "Riga", *got.Location)
	assert.Equal(t, meta("e1").OccurredAt, got.CreatedAt)
}

func TestProfileProjector_DeleteOfMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := profiles.NewMemoryRepository(profiles.NewMemoryStore(), nil)
	p := NewProfileProjector(repo, logging.Nop{})

	require.NoError(t, p.OnUserDeleted(ctx, meta("e1"), events.UserDeleted{IdentityID: "nobody"}))

	require.NoError(t, p.OnUserCreated(ctx, meta("e2"), events.UserCreated{IdentityID: "u1", Username: "a"}))
	require.NoError(t, p.OnUserDeleted(ctx, meta("e3"), events.UserDeleted{IdentityID: "u1"}))
	require.NoError(t, p.OnUserDeleted(ctx, meta("e3"), events.UserDeleted{IdentityID: "u1"}))

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestProfileProjector_StoreErrorsPropagate(t *testing.T) {
	p := NewProfileProjector(failingProfiles{}, logging.Nop{})

	assert.Error(t, p.OnUserCreated(context.Background(), meta("e1"), events.UserCreated{IdentityID: "u1"}))
	assert.Error(t, p.OnUserDeleted(context.Background(), meta("e2"), events.UserDeleted{IdentityID: "u1"}))
}

func TestProfileProjector_IgnoresMailEvents(t *testing.T) {
	p := NewProfileProjector(failingProfiles{}, logging.Nop{})

	assert.NoError(t, p.OnMailVerifyRequested(context.Background(), meta("e1"), events.MailVerifyRequested{}))
	assert.NoError(t, p.OnMailVerified(context.Background(), meta("e2"), events.MailVerified{}))
}

func TestVerificationLink(t *testing.T) {
	link, err := VerificationLink("http://localhost:8080/api/v1/verify-email", events.MailVerifyRequested{
		IdentityID:        "u1",
		Email:             "a+b@c.io",
		VerificationToken: "ab+/cd",
		Username:          "alice",
		DisplayName:       "Alice Smith",
		Occupation:        strPtr("dev & ops"),
	})
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/verify-email", u.Path)

	q := u.Query()
	assert.Equal(t, "ab+/cd", q.Get("token"))
	assert.Equal(t, "u1", q.Get("userId"))
	assert.Equal(t, "a+b@c.io", q.Get("email"))
	assert.Equal(t, "alice", q.Get("username"))
	assert.Equal(t, "Alice Smith", q.Get("displayname"))
	assert.Equal(t, "", q.Get("location"))
	assert.Equal(t, "dev & ops", q.Get("occupation"))
	assert.NotContains(t, u.RawQuery, "ab+/cd")
}

func TestMailProjector_SendsVerificationAndWelcome(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	p := NewMailProjector(sender, nil, "http://x/verify", logging.Nop{})

	require.NoError(t, p.OnMailVerifyRequested(ctx, meta("e1"), events.MailVerifyRequested{
		IdentityID: "u1", Email: "a@b.co", VerificationToken: "tok", Username: "alice", DisplayName: "Alice",
	}))
	require.NoError(t, p.OnMailVerified(ctx, meta("e2"), events.MailVerified{IdentityID: "u1", Username: "alice", Email: "a@b.co"}))
	require.NoError(t, p.OnUserCreated(ctx, meta("e3"), events.UserCreated{IdentityID: "u1"}))
	require.NoError(t, p.OnUserDeleted(ctx, meta("e4"), events.UserDeleted{IdentityID: "u1"}))

	sent := sender.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, mailer.SubjectVerification, sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "token=tok")
	assert.Equal(t, mailer.SubjectWelcome, sent[1].Subject)
	assert.Equal(t, "a@b.co", sent[1].To)
}

func TestMailProjector_DedupeSkipsRedelivery(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	p := NewMailProjector(sender, NewMemoryDeduper(time.Hour), "http://x/verify", logging.Nop{})

	e := events.MailVerified{IdentityID: "u1", Username: "alice", Email: "a@b.co"}
	require.NoError(t, p.OnMailVerified(ctx, meta("e1"), e))
	require.NoError(t, p.OnMailVerified(ctx, meta("e1"), e))
	require.NoError(t, p.OnMailVerified(ctx, meta("e2"), e))

	assert.Len(t, sender.messages(), 2)
}

func TestMailProjector_SendFailureReleasesClaim(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{err: errors.New("smtp down")}
	p := NewMailProjector(sender, NewMemoryDeduper(time.Hour), "http://x/verify", logging.Nop{})

	e := events.MailVerified{IdentityID: "u1", Username: "alice", Email: "a@b.co"}
	require.Error(t, p.OnMailVerified(ctx, meta("e1"), e))

	sender.err = nil
	require.NoError(t, p.OnMailVerified(ctx, meta("e1"), e))
	assert.Len(t, sender.messages(), 1)
}

func TestMailProjector_FailedDedupeLookupStillSends(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	sender := &recordingSender{}
	p := NewMailProjector(sender, NewRedisDeduper(client, time.Hour), "http://x/verify", logging.Nop{})

	require.NoError(t, p.OnMailVerified(context.Background(), meta("e1"), events.MailVerified{IdentityID: "u1", Email: "a@b.co"}))
	assert.Len(t, sender.messages(), 1)
}

func TestMemoryDeduper_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper(time.Minute)
	d.now = func() time.Time { return now }

	fresh, err := d.Claim(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, _ = d.Claim(ctx, "e1")
	assert.False(t, fresh)

	now = now.Add(2 * time.Minute)
	fresh, _ = d.Claim(ctx, "e1")
	assert.True(t, fresh)

	require.NoError(t, d.Release(ctx, "e1"))
	fresh, _ = d.Claim(ctx, "e1")
	assert.True(t, fresh)
}
