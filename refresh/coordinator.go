package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/authclient/notify"
	"github.com/MrEthical07/authclient/route"
	"github.com/MrEthical07/authclient/session"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one renewal network call.
const DefaultTimeout = 10 * time.Second

var (
	// ErrRefreshFailed rejects every caller of a failed renewal batch.
	ErrRefreshFailed = errors.New("session refresh failed")
	// ErrNoRefreshToken is the cause when there is nothing to renew with.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrUnusableToken is the cause when the renewed access token is expired or undecodable.
	ErrUnusableToken = errors.New("renewed access token unusable")
)

// Store is the slice of the session store the coordinator needs.
type Store interface {
	Current() (session.Credentials, bool)
	SetCredentials(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

// Refresher exchanges a refresh token for a new credential pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (session.Credentials, error)
}

// RefresherFunc adapts a function to [Refresher].
type RefresherFunc func(ctx context.Context, refreshToken string) (session.Credentials, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (session.Credentials, error) {
	return f(ctx, refreshToken)
}

// Expiry judges access tokens.
type Expiry interface {
	IsExpired(token string) bool
}

// Hooks observe renewals. Any field may be nil.
type Hooks struct {
	OnStart     func()
	OnSuccess   func(time.Duration)
	OnFailure   func(error)
	OnCoalesced func()
}

// Config wires a [Coordinator].
type Config struct {
	Store      Store
	Refresher  Refresher
	Expiry     Expiry
	Notifier   notify.Notifier
	Navigator  route.Navigator
	LoginRoute string
	Timeout    time.Duration
	Logger     *zap.Logger
	Hooks      Hooks
}

// Result is what each waiter receives when a renewal settles: the new credentials or the
// batch error, never both.
type Result struct {
	Credentials session.Credentials
	Err         error
}

// Coordinator owns the refresh state.
type Coordinator struct {
	store      Store
	refresher  Refresher
	expiry     Expiry
	notifier   notify.Notifier
	navigator  route.Navigator
	loginRoute string
	timeout    time.Duration
	logger     *zap.Logger
	hooks      Hooks

	mu       sync.Mutex
	inFlight bool
	waiters  []chan Result
}

// New validates cfg and returns a [Coordinator].
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errors.New("refresh coordinator requires a session store")
	}
	if cfg.Refresher == nil {
		return nil, errors.New("refresh coordinator requires a refresher")
	}
	if cfg.Expiry == nil {
		return nil, errors.New("refresh coordinator requires an expiry checker")
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("refresh timeout must be >= 0")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard{}
	}
	if cfg.Navigator == nil {
		cfg.Navigator = route.NopNavigator{}
	}
	if cfg.LoginRoute == "" {
		cfg.LoginRoute = route.DefaultLandings().Login
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Coordinator{
		store:      cfg.Store,
		refresher:  cfg.Refresher,
		expiry:     cfg.Expiry,
		notifier:   cfg.Notifier,
		navigator:  cfg.Navigator,
		loginRoute: cfg.LoginRoute,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger.Named("refresh"),
		hooks:      cfg.Hooks,
	}, nil
}

// EnsureFresh returns creds unchanged when its access token is still valid. Otherwise it
// joins, or starts, the single in-flight renewal and waits for its [Result].
//
// Cancelling ctx releases this caller with ctx.Err() but does not cancel the renewal other
// callers are waiting on.
func (c *Coordinator) EnsureFresh(ctx context.Context, creds session.Credentials) (session.Credentials, error) {
	if creds.AccessToken != "" && !c.expiry.IsExpired(creds.AccessToken) {
		return creds, nil
	}

	ch := make(chan Result, 1)

	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	leader := !c.inFlight
	c.inFlight = true
	c.mu.Unlock()

	if leader {
		go c.run(context.WithoutCancel(ctx), creds)
	} else if c.hooks.OnCoalesced != nil {
		c.hooks.OnCoalesced()
	}

	select {
	case res := <-ch:
		return res.Credentials, res.Err
	case <-ctx.Done():
		return session.Credentials{}, ctx.Err()
	}
}

// Wait blocks until the outstanding renewal settles and returns its error. It returns nil
// at once when nothing is in flight.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	if !c.inFlight {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan Result, 1)
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight reports whether a renewal is outstanding.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Waiters returns the number of callers queued on the outstanding renewal.
func (c *Coordinator) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *Coordinator) run(ctx context.Context, observed session.Credentials) {
	current, ok := c.store.Current()
	if ok && current.AccessToken != observed.AccessToken && !c.expiry.IsExpired(current.AccessToken) {
		c.logger.Debug("reusing credentials renewed by an earlier flight")
		c.settle(Result{Credentials: current})
		return
	}
	if !ok {
		// An earlier failed flight already cleared the session and redirected.
		c.logger.Debug("no session to renew")
		c.settle(Result{Err: fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNoRefreshToken)})
		return
	}

	if c.hooks.OnStart != nil {
		c.hooks.OnStart()
	}
	start := time.Now()

	renewed, err := c.renew(ctx, current)
	if err != nil {
		c.fail(ctx, err)
		return
	}

	elapsed := time.Since(start)
	c.logger.Info("session refreshed", zap.Duration("elapsed", elapsed))
	if c.hooks.OnSuccess != nil {
		c.hooks.OnSuccess(elapsed)
	}
	c.settle(Result{Credentials: renewed})
}

// renew bounds both the network call and the save by the refresh timeout.
func (c *Coordinator) renew(ctx context.Context, current session.Credentials) (session.Credentials, error) {
	if current.RefreshToken == "" {
		return session.Credentials{}, ErrNoRefreshToken
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	renewed, err := c.refresher.Refresh(callCtx, current.RefreshToken)
	if err != nil {
		return session.Credentials{}, err
	}
	if renewed.AccessToken == "" || renewed.RefreshToken == "" || c.expiry.IsExpired(renewed.AccessToken) {
		return session.Credentials{}, ErrUnusableToken
	}
	if err := c.store.SetCredentials(callCtx, renewed.AccessToken, renewed.RefreshToken); err != nil {
		return session.Credentials{}, err
	}
	return renewed, nil
}

func (c *Coordinator) fail(ctx context.Context, cause error) {
	err := fmt.Errorf("%w: %w", ErrRefreshFailed, cause)
	c.logger.Warn("session refresh failed", zap.Error(cause))

	if clearErr := c.store.Clear(ctx); clearErr != nil {
		c.logger.Warn("clear session after failed refresh", zap.Error(clearErr))
	}
	if c.hooks.OnFailure != nil {
		c.hooks.OnFailure(err)
	}
	c.notifier.Notify(ctx, notify.New(notify.KindSessionExpired, notify.MessageSessionExpired).
		With("cause", cause.Error()))
	c.navigator.Navigate(ctx, c.loginRoute)

	c.settle(Result{Err: err})
}

// settle answers every waiter in FIFO order and clears the flight in one critical section.
func (c *Coordinator) settle(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.waiters {
		ch <- res
	}
	c.waiters = nil
	c.inFlight = false
}
