package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authclient/notify"
	"github.com/MrEthical07/authclient/permission"
	"github.com/MrEthical07/authclient/session"
	"github.com/MrEthical07/authclient/token"
	"golang.org/x/sync/errgroup"
)

const testSecret = "refresh-test-secret"

type fixture struct {
	issuer   *token.Issuer
	codec    *token.Codec
	store    *session.Store
	notes    *notify.ChannelSink
	nav      *recordingNavigator
	calls    atomic.Int64
	coord    *Coordinator
	refreshF func(ctx context.Context, refreshToken string) (session.Credentials, error)
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()

	issuer, err := token.NewIssuer(token.IssuerConfig{
		SigningMethod: token.MethodHS256,
		PrivateKey:    []byte(testSecret),
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	codec, err := token.NewCodec(token.Config{})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	store, err := session.NewStore(context.Background(), session.NewMemoryPersistence(), session.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	f := &fixture{
		issuer: issuer,
		codec:  codec,
		store:  store,
		notes:  notify.NewChannelSink(16),
		nav:    &recordingNavigator{},
	}
	coord, err := New(Config{
		Store: store,
		Refresher: RefresherFunc(func(ctx context.Context, refreshToken string) (session.Credentials, error) {
			f.calls.Add(1)
			return f.refreshF(ctx, refreshToken)
		}),
		Expiry:    codec,
		Notifier:  f.notes,
		Navigator: f.nav,
		Timeout:   timeout,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.coord = coord
	return f
}

func (f *fixture) mint(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok, err := f.issuer.Issue("u1", "alice", permission.RoleSalesAgent, ttl)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func (f *fixture) seedExpired(t *testing.T) session.Credentials {
	t.Helper()
	expired := f.mint(t, -time.Second)
	if err := f.store.SetCredentials(context.Background(), expired, "R1"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}
	creds, _ := f.store.Current()
	return creds
}

func TestEnsureFreshFastPath(t *testing.T) {
	f := newFixture(t, 0)
	f.refreshF = func(context.Context, string) (session.Credentials, error) {
		t.Error("fresh token must not trigger a refresh")
		return session.Credentials{}, nil
	}
	creds := session.Credentials{AccessToken: f.mint(t, time.Hour), RefreshToken: "R1"}

	got, err := f.coord.EnsureFresh(context.Background(), creds)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if got != creds {
		t.Fatalf("expected unchanged credentials")
	}
	if f.coord.InFlight() {
		t.Fatal("fast path must not mark a refresh in flight")
	}
}

func TestEnsureFreshSingleFlightSuccess(t *testing.T) {
	f := newFixture(t, 0)
	a2 := f.mint(t, time.Hour)
	f.refreshF = func(_ context.Context, refreshToken string) (session.Credentials, error) {
		if refreshToken != "R1" {
			t.Errorf("unexpected refresh token %q", refreshToken)
		}
		time.Sleep(100 * time.Millisecond)
		return session.Credentials{AccessToken: a2, RefreshToken: "R2"}, nil
	}
	creds := f.seedExpired(t)

	const n = 3
	results := make([]session.Credentials, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			got, err := f.coord.EnsureFresh(context.Background(), creds)
			results[i] = got
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	for i, r := range results {
		if r.AccessToken != a2 {
			t.Fatalf("caller %d got a different token", i)
		}
	}
	stored, ok := f.store.Current()
	if !ok || stored.AccessToken != a2 || stored.RefreshToken != "R2" {
		t.Fatalf("store not updated: %+v", stored)
	}
	if f.coord.InFlight() || f.coord.Waiters() != 0 {
		t.Fatal("refresh state must be idle after settle")
	}
}

func TestEnsureFreshSingleFlightFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.refreshF = func(context.Context, string) (session.Credentials, error) {
		time.Sleep(100 * time.Millisecond)
		return session.Credentials{}, errors.New("status 401")
	}
	creds := f.seedExpired(t)

	const n = 3
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.coord.EnsureFresh(context.Background(), creds)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrRefreshFailed) {
			t.Fatalf("caller %d: expected ErrRefreshFailed, got %v", i, err)
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	if _, ok := f.store.Current(); ok {
		t.Fatal("session must be cleared after failed refresh")
	}

	select {
	case n := <-f.notes.Notifications():
		if n.Kind != notify.KindSessionExpired || n.Message != notify.MessageSessionExpired {
			t.Fatalf("unexpected notification %+v", n)
		}
	default:
		t.Fatal("expected a session expired notification")
	}
	select {
	case n := <-f.notes.Notifications():
		t.Fatalf("expected exactly one notification, got extra %+v", n)
	default:
	}

	if paths := f.nav.Paths(); len(paths) != 1 || paths[0] != "/login" {
		t.Fatalf("expected one redirect to /login, got %v", paths)
	}
}

func TestEnsureFreshWithoutSessionFails(t *testing.T) {
	f := newFixture(t, 0)
	f.refreshF = func(context.Context, string) (session.Credentials, error) {
		t.Error("no network call without a refresh token")
		return session.Credentials{}, nil
	}

	_, err := f.coord.EnsureFresh(context.Background(), session.Credentials{AccessToken: "garbage"})
	if !errors.Is(err, ErrRefreshFailed) || !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrRefreshFailed/ErrNoRefreshToken, got %v", err)
	}
	if paths := f.nav.Paths(); len(paths) != 0 {
		t.Fatalf("no session means nothing to redirect away from, got %v", paths)
	}
	select {
	case n := <-f.notes.Notifications():
		t.Fatalf("unexpected notification %+v", n)
	default:
	}
}

func TestLateCallerAfterFailedRenewalHasNoSideEffects(t *testing.T) {
	f := newFixture(t, 0)
	f.refreshF = func(context.Context, string) (session.Credentials, error) {
		return session.Credentials{}, errors.New("status 401")
	}
	creds := f.seedExpired(t)

	if _, err := f.coord.EnsureFresh(context.Background(), creds); !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("first caller: expected ErrRefreshFailed, got %v", err)
	}
	// Same stale snapshot, read before the failed batch settled.
	if _, err := f.coord.EnsureFresh(context.Background(), creds); !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("late caller: expected ErrRefreshFailed, got %v", err)
	}

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
	if paths := f.nav.Paths(); len(paths) != 1 || paths[0] != "/login" {
		t.Fatalf("expected a single redirect to /login, got %v", paths)
	}
	<-f.notes.Notifications()
	select {
	case n := <-f.notes.Notifications():
		t.Fatalf("expected one session expired notification, got extra %+v", n)
	default:
	}
}

// hangingStore blocks SetCredentials until its context ends.
type hangingStore struct {
	mu      sync.Mutex
	creds   session.Credentials
	present bool
}

func (s *hangingStore) Current() (session.Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, s.present
}

func (s *hangingStore) SetCredentials(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *hangingStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds, s.present = session.Credentials{}, false
	return nil
}

func TestEnsureFreshTimeoutBoundsSave(t *testing.T) {
	f := newFixture(t, 0)
	store := &hangingStore{
		creds:   session.Credentials{AccessToken: f.mint(t, -time.Second), RefreshToken: "R1"},
		present: true,
	}
	fresh := f.mint(t, time.Hour)
	coord, err := New(Config{
		Store: store,
		Refresher: RefresherFunc(func(context.Context, string) (session.Credentials, error) {
			return session.Credentials{AccessToken: fresh, RefreshToken: "R2"}, nil
		}),
		Expiry:  f.codec,
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	seed, _ := store.Current()
	done := make(chan error, 1)
	go func() {
		_, err := coord.EnsureFresh(context.Background(), seed)
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrRefreshFailed) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected timeout refresh failure, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a hung save was not bounded by the refresh timeout")
	}
	if _, ok := store.Current(); ok {
		t.Fatal("session must be cleared after the save timed out")
	}
}

func TestEnsureFreshTimeout(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	f.refreshF = func(ctx context.Context, _ string) (session.Credentials, error) {
		<-ctx.Done()
		return session.Credentials{}, ctx.Err()
	}
	creds := f.seedExpired(t)

	start := time.Now()
	_, err := f.coord.EnsureFresh(context.Background(), creds)
	if !errors.Is(err, ErrRefreshFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout refresh failure, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout did not bound the refresh call")
	}
	if _, ok := f.store.Current(); ok {
		t.Fatal("session must be cleared after timeout")
	}
}

func TestEnsureFreshRejectsUnusableRenewal(t *testing.T) {
	f := newFixture(t, 0)
	stale := f.mint(t, -time.Minute)
	f.refreshF = func(context.Context, string) (session.Credentials, error) {
		return session.Credentials{AccessToken: stale, RefreshToken: "R2"}, nil
	}
	creds := f.seedExpired(t)

	_, err := f.coord.EnsureFresh(context.Background(), creds)
	if !errors.Is(err, ErrUnusableToken) {
		t.Fatalf("expected ErrUnusableToken, got %v", err)
	}
}

func TestEnsureFreshWaiterCancellation(t *testing.T) {
	f := newFixture(t, 0)
	a2 := f.mint(t, time.Hour)
	release := make(chan struct{})
	f.refreshF = func(context.Context, string) (session.Credentials, error) {
		<-release
		return session.Credentials{AccessToken: a2, RefreshToken: "R2"}, nil
	}
	creds := f.seedExpired(t)

	leaderDone := make(chan error, 1)
	go func() {
		_, err := f.coord.EnsureFresh(context.Background(), creds)
		leaderDone <- err
	}()
	waitFor(t, func() bool { return f.coord.Waiters() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, err := f.coord.EnsureFresh(ctx, creds)
		waiterDone <- err
	}()
	waitFor(t, func() bool { return f.coord.Waiters() == 2 })
	if !f.coord.InFlight() {
		t.Fatal("expected refresh in flight")
	}

	cancel()
	select {
	case err := <-waiterDone:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled waiter was not released")
	}

	close(release)
	select {
	case err := <-leaderDone:
		if err != nil {
			t.Fatalf("leader: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("leader did not settle")
	}
	if f.calls.Load() != 1 {
		t.Fatalf("expected one refresh call, got %d", f.calls.Load())
	}
}

func TestEnsureFreshReusesEarlierRenewal(t *testing.T) {
	f := newFixture(t, 0)
	f.refreshF = func(context.Context, string) (session.Credentials, error) {
		t.Error("store already holds a fresh token")
		return session.Credentials{}, nil
	}
	observed := f.seedExpired(t)
	fresh := f.mint(t, time.Hour)
	if err := f.store.SetCredentials(context.Background(), fresh, "R2"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}

	got, err := f.coord.EnsureFresh(context.Background(), observed)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if got.AccessToken != fresh {
		t.Fatal("expected the already-renewed token")
	}
}

func TestWaitFollowsOutstandingRenewal(t *testing.T) {
	f := newFixture(t, 0)
	if err := f.coord.Wait(context.Background()); err != nil {
		t.Fatalf("idle Wait: %v", err)
	}

	release := make(chan struct{})
	f.refreshF = func(context.Context, string) (session.Credentials, error) {
		<-release
		return session.Credentials{}, errors.New("status 500")
	}
	creds := f.seedExpired(t)

	go func() { _, _ = f.coord.EnsureFresh(context.Background(), creds) }()
	waitFor(t, f.coord.InFlight)

	waitErr := make(chan error, 1)
	go func() { waitErr <- f.coord.Wait(context.Background()) }()
	waitFor(t, func() bool { return f.coord.Waiters() == 2 })
	close(release)

	if err := <-waitErr; !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed from Wait, got %v", err)
	}
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("Wait must not start a renewal, got %d calls", got)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	codec, _ := token.NewCodec(token.Config{})
	store, _ := session.NewStore(context.Background(), session.NewMemoryPersistence(), session.Options{})
	r := RefresherFunc(func(context.Context, string) (session.Credentials, error) { return session.Credentials{}, nil })

	cases := []Config{
		{Refresher: r, Expiry: codec},
		{Store: store, Expiry: codec},
		{Store: store, Refresher: r},
		{Store: store, Refresher: r, Expiry: codec, Timeout: -time.Second},
	}
	for i, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
