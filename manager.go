package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authclient/authapi"
	"github.com/MrEthical07/authclient/gatekeeper"
	"github.com/MrEthical07/authclient/notify"
	"github.com/MrEthical07/authclient/permission"
	"github.com/MrEthical07/authclient/refresh"
	"github.com/MrEthical07/authclient/route"
	"github.com/MrEthical07/authclient/session"
	"github.com/MrEthical07/authclient/token"
	"go.uber.org/zap"
)

// Manager owns one client session: its credentials, the gated HTTP client, the refresh
// coordinator, and the route table. Safe for concurrent use.
type Manager struct {
	config  Config
	logger  *zap.Logger
	metrics *Metrics

	codec   *token.Codec
	store   *session.Store
	api     *authapi.Client
	refresh *refresh.Coordinator
	gate    *gatekeeper.Transport
	client  *http.Client
	routes  *route.Table
	nav     *route.Serialized

	notifier   notify.Notifier
	dispatcher *notify.Dispatcher

	closers   []func() error
	closed    atomic.Bool
	closeOnce sync.Once
}

/*
====================================
ACCOUNT
====================================
*/

// Login exchanges username and password for a credential pair and stores it. The returned
// claims are decoded from the new access token.
func (m *Manager) Login(ctx context.Context, username, password string) (token.Claims, error) {
	if m.closed.Load() {
		return token.Claims{}, ErrManagerClosed
	}

	creds, err := m.api.Login(ctx, username, password)
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		return token.Claims{}, err
	}

	claims, ok := m.codec.Decode(creds.AccessToken)
	if !ok {
		m.metrics.Inc(MetricLoginFailure)
		m.metrics.Inc(MetricMalformedToken)
		return token.Claims{}, ErrMalformedToken
	}

	if err := m.store.SetCredentials(ctx, creds.AccessToken, creds.RefreshToken); err != nil {
		m.metrics.Inc(MetricLoginFailure)
		return token.Claims{}, err
	}

	m.metrics.Inc(MetricLoginSuccess)
	m.logger.Debug("login succeeded", zap.String("subject", claims.Subject))
	return claims, nil
}

// Register creates an account. It does not log in.
func (m *Manager) Register(ctx context.Context, reg authapi.Registration) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	return m.api.Register(ctx, reg)
}

// Verify confirms an account by its verification id.
func (m *Manager) Verify(ctx context.Context, id string) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	return m.api.Verify(ctx, id)
}

// Logout clears the stored session. Logging out without a session is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}

	_, had := m.store.Current()
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	if !had {
		return nil
	}

	m.metrics.Inc(MetricLogout)
	m.notifier.Notify(ctx, notify.New(notify.KindLoggedOut, notify.MessageLoggedOut))
	return nil
}

/*
====================================
SESSION
====================================
*/

// Claims decodes the stored access token. It reports false with no session or when the
// stored token does not decode.
func (m *Manager) Claims() (token.Claims, bool) {
	creds, ok := m.store.Current()
	if !ok {
		return token.Claims{}, false
	}
	claims, ok := m.codec.Decode(creds.AccessToken)
	if !ok {
		m.metrics.Inc(MetricMalformedToken)
		return token.Claims{}, false
	}
	return claims, true
}

// Role returns the role claim of the current session.
func (m *Manager) Role() (permission.Role, bool) {
	claims, ok := m.Claims()
	if !ok || !claims.HasRole {
		return "", false
	}
	return claims.Role, true
}

func (m *Manager) Subject() (string, bool) {
	claims, ok := m.Claims()
	if !ok {
		return "", false
	}
	return claims.Subject, true
}

// IsAuthenticated reports whether a credential pair is stored. An expired access token
// still counts; it is renewed on the next call.
func (m *Manager) IsAuthenticated() bool {
	_, ok := m.store.Current()
	return ok
}

// EnsureFresh returns credentials whose access token has not expired, renewing them if
// needed. Concurrent callers share one renewal.
func (m *Manager) EnsureFresh(ctx context.Context) (session.Credentials, error) {
	if m.closed.Load() {
		return session.Credentials{}, ErrManagerClosed
	}
	creds, ok := m.store.Current()
	if !ok {
		return session.Credentials{}, ErrUnauthenticated
	}
	return m.refresh.EnsureFresh(ctx, creds)
}

/*
====================================
TRANSPORT
====================================
*/

// HTTPClient returns the gated client. Non-exempt requests carry the current bearer token.
func (m *Manager) HTTPClient() *http.Client {
	return m.client
}

// Transport returns the gate so callers can build their own clients around it.
func (m *Manager) Transport() http.RoundTripper {
	return m.gate
}

// Do sends req through the gated client.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	return m.client.Do(req)
}

/*
====================================
ROUTES
====================================
*/

// Decide evaluates path against the route table for the current session. A stored token
// that does not decode is treated as no session.
func (m *Manager) Decide(path string) route.Decision {
	var (
		role    permission.Role
		hasRole bool
	)
	if claims, ok := m.Claims(); ok {
		role, hasRole = claims.Role, claims.HasRole
	}

	d := m.routes.Decide(path, role, hasRole)
	if d.Allowed {
		m.metrics.Inc(MetricRouteAllowed)
	} else {
		m.metrics.Inc(MetricRouteRedirected)
	}
	return d
}

// Navigate sends the user to path, or to the redirect the route table chooses for it, and
// returns the destination. A renewal in flight is awaited first; if it fails, its login
// redirect stands and Navigate does not navigate again.
func (m *Manager) Navigate(ctx context.Context, path string) (string, error) {
	if m.closed.Load() {
		return "", ErrManagerClosed
	}
	if err := m.refresh.Wait(ctx); err != nil {
		if errors.Is(err, ErrRefreshFailed) {
			return m.routes.Landings().Login, nil
		}
		return "", err
	}

	d := m.Decide(path)
	dest := path
	if !d.Allowed {
		dest = d.Redirect
	}
	m.nav.Navigate(ctx, dest)
	return dest, nil
}

// Authorize reports whether the current session may enter path.
func (m *Manager) Authorize(path string) error {
	d := m.Decide(path)
	if d.Allowed {
		return nil
	}
	if d.Reason == route.ReasonUnauthenticated {
		return ErrUnauthenticated
	}
	return fmt.Errorf("%w: %s (%s)", ErrUnauthorizedRoute, path, d.Reason)
}

// Routes returns the route table.
func (m *Manager) Routes() *route.Table {
	return m.routes
}

/*
====================================
LIFECYCLE
====================================
*/

func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// NotificationsDropped counts notifications discarded by a full async queue.
func (m *Manager) NotificationsDropped() uint64 {
	if m.dispatcher == nil {
		return 0
	}
	return m.dispatcher.Dropped()
}

// Config returns a copy of the configuration the Manager was built with.
func (m *Manager) Config() Config {
	return cloneConfig(m.config)
}

// Close drains pending notifications and releases owned connections. Close is idempotent.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		err = m.closeResources()
	})
	return err
}

func (m *Manager) closeResources() error {
	if m.dispatcher != nil {
		m.dispatcher.Close()
	}
	var errs []error
	for _, c := range m.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

func (m *Manager) refreshHooks() refresh.Hooks {
	return refresh.Hooks{
		OnStart: func() { m.metrics.Inc(MetricRefreshStarted) },
		OnSuccess: func(d time.Duration) {
			m.metrics.Inc(MetricRefreshSuccess)
			m.metrics.Observe(MetricRefreshLatency, d)
		},
		OnFailure: func(error) {
			m.metrics.Inc(MetricRefreshFailure)
		},
		OnCoalesced: func() { m.metrics.Inc(MetricRefreshCoalesced) },
	}
}

func (m *Manager) gateHooks() gatekeeper.Hooks {
	return gatekeeper.Hooks{
		OnExempt:          func() { m.metrics.Inc(MetricRequestExempt) },
		OnAuthorized:      func() { m.metrics.Inc(MetricRequestAuthorized) },
		OnUnauthenticated: func() { m.metrics.Inc(MetricRequestUnauthenticated) },
		OnRejected:        func(error) { m.metrics.Inc(MetricRequestRejected) },
	}
}
