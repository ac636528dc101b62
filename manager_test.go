package authclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authclient/authapi"
	"github.com/MrEthical07/authclient/internal/devserver"
	"github.com/MrEthical07/authclient/notify"
	"github.com/MrEthical07/authclient/permission"
	"github.com/MrEthical07/authclient/route"
	"github.com/MrEthical07/authclient/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

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

type harness struct {
	dev   *devserver.Server
	srv   *httptest.Server
	mgr   *Manager
	pers  session.Persistence
	sink  *notify.ChannelSink
	nav   *recordingNavigator
}

func newHarness(t *testing.T, seed func(dev *devserver.Server) map[string]string) *harness {
	t.Helper()

	dev, err := devserver.New(devserver.Config{})
	require.NoError(t, err)
	require.NoError(t, dev.AddUser("ana", "correct horse", permission.RoleAdministrator))
	require.NoError(t, dev.AddUser("sale", "correct horse", permission.RoleSalesAgent))
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	h := &harness{
		dev:  dev,
		srv:  srv,
		pers: session.NewMemoryPersistence(),
		sink: notify.NewChannelSink(16),
		nav:  &recordingNavigator{},
	}
	if seed != nil {
		require.NoError(t, h.pers.Save(context.Background(), seed(dev)))
	}

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.Notify.Async = false

	h.mgr, err = New().
		WithConfig(cfg).
		WithPersistence(h.pers).
		WithNotifier(h.sink).
		WithNavigator(h.nav).
		Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.mgr.Close() })
	return h
}

// expiredSession seeds an access token that expired a second ago for user.
func expiredSession(t *testing.T, user string) func(*devserver.Server) map[string]string {
	return func(dev *devserver.Server) map[string]string {
		access, refresh, err := dev.Credentials(user, -time.Second)
		require.NoError(t, err)
		return map[string]string{
			session.DefaultAccessTokenSlot:  access,
			session.DefaultRefreshTokenSlot: refresh,
		}
	}
}

func (h *harness) get(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.srv.URL+devserver.ProtectedPath, nil)
	if err != nil {
		return 0, err
	}
	resp, err := h.mgr.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (h *harness) drain() []notify.Notification {
	var out []notify.Notification
	for {
		select {
		case n := <-h.sink.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}

func TestManagerLoginLogout(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.mgr.Login(ctx, "ana", "nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, h.mgr.IsAuthenticated())

	claims, err := h.mgr.Login(ctx, "ana", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ana", claims.Username)
	assert.True(t, h.mgr.IsAuthenticated())

	role, ok := h.mgr.Role()
	require.True(t, ok)
	assert.Equal(t, permission.RoleAdministrator, role)

	status, err := h.get(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	require.NoError(t, h.mgr.Logout(ctx))
	require.NoError(t, h.mgr.Logout(ctx))
	assert.False(t, h.mgr.IsAuthenticated())

	stored, err := h.pers.Load(ctx, session.DefaultAccessTokenSlot, session.DefaultRefreshTokenSlot)
	require.NoError(t, err)
	assert.Empty(t, stored)

	var loggedOut int
	for _, n := range h.drain() {
		if n.Kind == notify.KindLoggedOut {
			loggedOut++
		}
	}
	assert.Equal(t, 1, loggedOut)

	snap := h.mgr.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[MetricLoginSuccess])
	assert.Equal(t, uint64(1), snap.Counters[MetricLoginFailure])
	assert.Equal(t, uint64(1), snap.Counters[MetricLogout])
}

func TestManagerRegisterAndVerify(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.mgr.Register(ctx, authapi.Registration{
		Username:     "mile",
		Password:     "pa55word!!",
		UserRoleType: string(permission.RoleSalesAgent),
	}))
	assert.False(t, h.mgr.IsAuthenticated())

	id, ok := h.dev.VerificationID("mile")
	require.True(t, ok)
	require.NoError(t, h.mgr.Verify(ctx, id))

	var statusErr *authapi.StatusError
	require.ErrorAs(t, h.mgr.Verify(ctx, id), &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err := h.mgr.Login(ctx, "mile", "pa55word!!")
	require.NoError(t, err)
}

func TestManagerConcurrentCallsShareOneRefresh(t *testing.T) {
	h := newHarness(t, expiredSession(t, "ana"))
	h.dev.SetRefreshDelay(100 * time.Millisecond)
	before, _ := h.mgr.store.Current()

	var g errgroup.Group
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			status, err := h.get(context.Background())
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return errors.New(http.StatusText(status))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), h.dev.RefreshCalls())

	after, ok := h.mgr.store.Current()
	require.True(t, ok)
	assert.NotEqual(t, before.AccessToken, after.AccessToken)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)

	bearers := h.dev.Bearers()
	require.Len(t, bearers, 3)
	for _, b := range bearers {
		assert.Equal(t, after.AccessToken, b)
	}

	stored, err := h.pers.Load(context.Background(), session.DefaultAccessTokenSlot, session.DefaultRefreshTokenSlot)
	require.NoError(t, err)
	assert.Equal(t, after.AccessToken, stored[session.DefaultAccessTokenSlot])
	assert.Equal(t, after.RefreshToken, stored[session.DefaultRefreshTokenSlot])

	snap := h.mgr.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[MetricRefreshStarted])
	assert.Equal(t, uint64(1), snap.Counters[MetricRefreshSuccess])
	assert.Equal(t, uint64(3), snap.Counters[MetricRequestAuthorized])
}

func TestManagerFailedRefreshRejectsEveryCaller(t *testing.T) {
	h := newHarness(t, expiredSession(t, "ana"))
	h.dev.SetRefreshDelay(50 * time.Millisecond)
	h.dev.SetRefreshFailure(http.StatusInternalServerError)

	errs := make([]error, 3)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.get(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrRefreshFailed)
	}
	assert.Equal(t, int64(1), h.dev.RefreshCalls())
	assert.Zero(t, h.dev.ProtectedCalls())
	assert.False(t, h.mgr.IsAuthenticated())

	var expired int
	for _, n := range h.drain() {
		if n.Kind == notify.KindSessionExpired {
			expired++
			assert.Equal(t, notify.MessageSessionExpired, n.Message)
		}
	}
	assert.Equal(t, 1, expired)
	assert.Equal(t, []string{"/login"}, h.nav.Paths())
}

func TestManagerCallWithoutSessionNeverDispatched(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.get(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, h.dev.ProtectedCalls())

	notes := h.drain()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.KindMustLogIn, notes[0].Kind)

	_, err = h.mgr.EnsureFresh(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestManagerNavigate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	dest, err := h.mgr.Navigate(ctx, "/currencies")
	require.NoError(t, err)
	assert.Equal(t, "/", dest)
	assert.ErrorIs(t, h.mgr.Authorize("/currencies"), ErrUnauthenticated)

	_, err = h.mgr.Login(ctx, "sale", "correct horse")
	require.NoError(t, err)

	dest, err = h.mgr.Navigate(ctx, "/login")
	require.NoError(t, err)
	assert.Equal(t, "/home", dest)

	dest, err = h.mgr.Navigate(ctx, "/currencies")
	require.NoError(t, err)
	assert.Equal(t, "/home", dest)
	assert.ErrorIs(t, h.mgr.Authorize("/currencies"), ErrUnauthorizedRoute)

	dest, err = h.mgr.Navigate(ctx, "/profile")
	require.NoError(t, err)
	assert.Equal(t, "/profile", dest)
	assert.NoError(t, h.mgr.Authorize("/profile"))

	assert.Equal(t, []string{"/", "/home", "/home", "/profile"}, h.nav.Paths())

	d := h.mgr.Decide("/no/such/view")
	assert.False(t, d.Allowed)
	assert.Equal(t, route.ReasonUnknownRoute, d.Reason)
}

func TestManagerFailedRefreshRedirectWinsOverNavigation(t *testing.T) {
	h := newHarness(t, expiredSession(t, "ana"))
	h.dev.SetRefreshDelay(150 * time.Millisecond)
	h.dev.SetRefreshFailure(http.StatusUnauthorized)

	done := make(chan error, 1)
	go func() {
		_, err := h.get(context.Background())
		done <- err
	}()
	require.Eventually(t, h.mgr.refresh.InFlight, time.Second, 5*time.Millisecond)

	dest, err := h.mgr.Navigate(context.Background(), "/currencies")
	require.NoError(t, err)
	assert.Equal(t, "/login", dest)
	assert.ErrorIs(t, <-done, ErrRefreshFailed)
	assert.Equal(t, []string{"/login"}, h.nav.Paths())
}

func TestManagerClosed(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.mgr.Close())
	require.NoError(t, h.mgr.Close())

	_, err := h.mgr.Login(context.Background(), "ana", "correct horse")
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.ErrorIs(t, h.mgr.Logout(context.Background()), ErrManagerClosed)
	_, err = h.mgr.Navigate(context.Background(), "/")
	assert.ErrorIs(t, err, ErrManagerClosed)
}
