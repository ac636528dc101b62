package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authclient/notify"
	"github.com/MrEthical07/authclient/session"
	"go.uber.org/zap"
)

var (
	// ErrUnauthenticated rejects a non-exempt call made without a session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrStaleToken rejects a call whose token expired again before it could be attached.
	ErrStaleToken = errors.New("access token expired before dispatch")
)

// maxRenewals bounds renewal attempts per call.
const maxRenewals = 2

// Store reads the current credentials.
type Store interface {
	Current() (session.Credentials, bool)
}

// Refresher renews expired credentials. Implemented by refresh.Coordinator.
type Refresher interface {
	EnsureFresh(ctx context.Context, creds session.Credentials) (session.Credentials, error)
}

// Expiry judges access tokens.
type Expiry interface {
	IsExpired(token string) bool
}

// Hooks observe gate outcomes. Any field may be nil.
type Hooks struct {
	OnExempt          func()
	OnAuthorized      func()
	OnUnauthenticated func()
	OnRejected        func(error)
}

// Config wires a [Transport].
type Config struct {
	// Base performs the actual round trip; nil means http.DefaultTransport.
	Base     http.RoundTripper
	Store    Store
	Refresh  Refresher
	Expiry   Expiry
	Notifier notify.Notifier
	// Exempt defaults to DefaultExemptions when both lists are empty.
	Exempt Exemptions
	Logger *zap.Logger
	Hooks  Hooks
}

// Transport gates outgoing calls. Safe for concurrent use.
type Transport struct {
	base     http.RoundTripper
	store    Store
	refresh  Refresher
	expiry   Expiry
	notifier notify.Notifier
	exempt   Exemptions
	logger   *zap.Logger
	hooks    Hooks
}

// New validates cfg and returns a [Transport].
func New(cfg Config) (*Transport, error) {
	if cfg.Store == nil {
		return nil, errors.New("gatekeeper requires a session store")
	}
	if cfg.Refresh == nil {
		return nil, errors.New("gatekeeper requires a refresher")
	}
	if cfg.Expiry == nil {
		return nil, errors.New("gatekeeper requires an expiry checker")
	}
	if cfg.Base == nil {
		cfg.Base = http.DefaultTransport
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard{}
	}
	if cfg.Exempt.IsZero() {
		cfg.Exempt = DefaultExemptions()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Transport{
		base:     cfg.Base,
		store:    cfg.Store,
		refresh:  cfg.Refresh,
		expiry:   cfg.Expiry,
		notifier: cfg.Notifier,
		exempt:   cfg.Exempt,
		logger:   cfg.Logger.Named("gatekeeper"),
		hooks:    cfg.Hooks,
	}, nil
}

// Exempt reports whether path bypasses the gate.
func (t *Transport) Exempt(path string) bool {
	return t.exempt.Match(path)
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.exempt.Match(req.URL.Path) {
		if t.hooks.OnExempt != nil {
			t.hooks.OnExempt()
		}
		return t.dispatch(req)
	}

	ctx := req.Context()
	creds, ok := t.store.Current()
	if !ok {
		t.transition(req, StateUnauthenticated, StateRejected)
		closeBody(req)
		if t.hooks.OnUnauthenticated != nil {
			t.hooks.OnUnauthenticated()
		}
		t.notifier.Notify(ctx, notify.New(notify.KindMustLogIn, notify.MessageMustLogIn).
			With("path", req.URL.Path))
		return nil, ErrUnauthenticated
	}

	state := StateAuthenticated
	for attempt := 0; t.expiry.IsExpired(creds.AccessToken); attempt++ {
		if attempt == maxRenewals {
			return nil, t.reject(req, state, ErrStaleToken)
		}
		t.transition(req, state, StateRefreshing)
		state = StateRefreshing

		renewed, err := t.refresh.EnsureFresh(ctx, creds)
		if err != nil {
			return nil, t.reject(req, state, err)
		}
		t.transition(req, state, StateAuthenticated)
		state = StateAuthenticated
		creds = renewed
	}

	out := req.Clone(ctx)
	out.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	if t.hooks.OnAuthorized != nil {
		t.hooks.OnAuthorized()
	}
	return t.dispatch(out)
}

// dispatch forwards req and reports transport failures. A call abandoned by its caller is
// not a failure.
func (t *Transport) dispatch(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil && req.Context().Err() == nil {
		t.logger.Debug("call failed", zap.String("path", req.URL.Path), zap.Error(err))
		t.notifier.Notify(req.Context(), notify.New(notify.KindCallFailed, notify.MessageCallFailed).
			With("method", req.Method).
			With("path", req.URL.Path))
	}
	return resp, err
}

func (t *Transport) reject(req *http.Request, from State, err error) error {
	t.transition(req, from, StateRejected)
	closeBody(req)
	if t.hooks.OnRejected != nil {
		t.hooks.OnRejected(err)
	}
	return fmt.Errorf("gatekeeper rejected %s %s: %w", req.Method, req.URL.Path, err)
}

func (t *Transport) transition(req *http.Request, from, to State) {
	t.logger.Debug("gate transition",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
