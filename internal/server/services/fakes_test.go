package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/access"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/events"
	"github.com/dmitrijs2005/casevault/internal/server/keys"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/ratelimit"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/casevault/internal/server/storage"
	"github.com/stretchr/testify/mock"
)

// fakeGateway is an in-memory object store. hideFor makes a key invisible
// to the next n HeadObject calls, like an eventually consistent backend.
type fakeGateway struct {
	mu       sync.Mutex
	objects  map[string]storage.ObjectInfo
	hideFor  map[string]int
	heads    map[string]int
	deleted  []string
	presigns int
	headErr  error
	putErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		objects: map[string]storage.ObjectInfo{},
		hideFor: map[string]int{},
		heads:   map[string]int{},
	}
}

func (g *fakeGateway) put(key string, size int64, contentType string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[key] = storage.ObjectInfo{Key: key, Size: size, ContentType: contentType}
}

func (g *fakeGateway) headCount(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.heads[key]
}

func (g *fakeGateway) PresignPut(_ context.Context, key, contentType string, expires time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.putErr != nil {
		return "", g.putErr
	}
	g.presigns++
	return fmt.Sprintf("https://storage.test/%s?type=%s&expires=%s", key, contentType, expires), nil
}

func (g *fakeGateway) PresignGet(_ context.Context, key, filename string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key + "?download=" + filename, nil
}

func (g *fakeGateway) HeadObject(_ context.Context, key string) (*storage.ObjectInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.heads[key]++
	if g.headErr != nil {
		return nil, g.headErr
	}
	if g.hideFor[key] > 0 {
		g.hideFor[key]--
		return nil, storage.ErrNotFound
	}
	obj, ok := g.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &obj, nil
}

func (g *fakeGateway) DeleteObject(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, key)
	g.deleted = append(g.deleted, key)
	return nil
}

// hookedStore runs a one-shot hook before the next transaction starts, so
// a test can land a competing commit ahead of the service's own.
type hookedStore struct {
	*memory.Store

	mu       sync.Mutex
	beforeTx func(ctx context.Context)
}

func (s *hookedStore) onNextTx(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeTx = fn
}

func (s *hookedStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	s.mu.Lock()
	hook := s.beforeTx
	s.beforeTx = nil
	s.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	return s.Store.WithTx(ctx, fn)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishVersionFinalized(ctx context.Context, evt events.VersionFinalized) error {
	return m.Called(ctx, evt).Error(0)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key ratelimit.Key) (ratelimit.Decision, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const (
	tenant = "t1"
	caseID = "c1"
)

var (
	editor = auth.Caller{UserID: "u-editor", TenantID: tenant,
		Permissions: []string{auth.PermDocumentUpload, auth.PermDocumentView}}
	viewerNoUpload = auth.Caller{UserID: "u-viewer", TenantID: tenant,
		Permissions: []string{auth.PermDocumentView}}
	stranger = auth.Caller{UserID: "u-stranger", TenantID: tenant,
		Permissions: []string{auth.PermDocumentUpload, auth.PermDocumentView}}
	admin = auth.Caller{UserID: "u-admin", TenantID: tenant,
		Permissions: []string{auth.PermAdminSettings, auth.PermDocumentView}}
)

type harness struct {
	store *hookedStore
	gw    *fakeGateway
	pub   *mockPublisher
	clock *fakeClock
	svc   *UploadService
	docs  *DocumentService
	keys  *keys.Builder
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := &hookedStore{Store: memory.New()}
	store.SeedCase(models.Case{ID: caseID, TenantID: tenant, Title: "Smith v Jones"}, map[string]string{
		editor.UserID:         "editor",
		viewerNoUpload.UserID: "viewer",
	})
	store.SeedCase(models.Case{ID: "c-other", TenantID: "t2", Title: "Other"}, nil)

	var (
		nmu sync.Mutex
		n   int
	)
	kb := keys.NewBuilder("tenants/t1").WithNonce(func() string {
		nmu.Lock()
		defer nmu.Unlock()
		n++
		return fmt.Sprintf("n%03d", n)
	})

	gw := newFakeGateway()
	pub := &mockPublisher{}
	pub.On("PublishVersionFinalized", mock.Anything, mock.Anything).Return(nil).Maybe()

	policy := DefaultUploadPolicy()
	policy.HeadRetry = storage.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	authz := access.NewCaseAuthorizer(store.Cases())
	log := logging.NewNop()
	svc := NewUploadService(store, gw, kb, ratelimit.NewMemoryLimiter(ratelimit.Policy{Limit: 1000, Window: time.Minute}),
		authz, pub, policy, log)

	clock := &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	svc.now = clock.Now

	var (
		imu sync.Mutex
		ids int
	)
	svc.newID = func() string {
		imu.Lock()
		defer imu.Unlock()
		ids++
		return fmt.Sprintf("id-%04d", ids)
	}

	return &harness{
		store: store,
		gw:    gw,
		pub:   pub,
		clock: clock,
		svc:   svc,
		docs:  NewDocumentService(store, gw, authz, 5*time.Minute, log),
		keys:  kb,
	}
}
