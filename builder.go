package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authclient/authapi"
	"github.com/MrEthical07/authclient/gatekeeper"
	"github.com/MrEthical07/authclient/notify"
	"github.com/MrEthical07/authclient/refresh"
	"github.com/MrEthical07/authclient/route"
	"github.com/MrEthical07/authclient/session"
	"github.com/MrEthical07/authclient/token"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a [Manager]. Configure it during initialization, call Build once, and
// discard it.
type Builder struct {
	config Config
	logger *zap.Logger
	redis  redis.UniversalClient

	persistence session.Persistence
	notifier    notify.Notifier
	navigator   route.Navigator
	routes      *route.Table
	transport   http.RoundTripper

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the logger shared by every component. Without it the Manager is silent.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithRedis supplies the client used by the redis session backend. The caller keeps
// ownership; Close does not close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPersistence overrides the configured session backend.
func (b *Builder) WithPersistence(p session.Persistence) *Builder {
	b.persistence = p
	return b
}

// WithNotifier sets the notification surface. The default logs notifications.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithNavigator sets the view navigator used for redirects.
func (b *Builder) WithNavigator(n route.Navigator) *Builder {
	b.navigator = n
	return b
}

// WithRouteTable replaces the default back-office route table.
func (b *Builder) WithRouteTable(t *route.Table) *Builder {
	b.routes = t
	return b
}

// WithBaseTransport sets the transport the gate forwards to.
func (b *Builder) WithBaseTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, hydrates the session store, and wires the Manager.
func (b *Builder) Build(ctx context.Context) (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		config:  cloneConfig(cfg),
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
	}

	codec, err := token.NewCodec(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		VerifyKey:     []byte(cfg.Token.VerifyKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		ExpirySkew:    cfg.Token.ExpirySkew,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}
	m.codec = codec

	// -------- SESSION STORE --------
	persistence, err := b.buildPersistence(cfg, m)
	if err != nil {
		m.closeResources()
		return nil, err
	}
	store, err := session.NewStore(ctx, persistence, session.Options{
		AccessSlot:  cfg.Session.AccessSlot,
		RefreshSlot: cfg.Session.RefreshSlot,
		Logger:      logger,
	})
	if err != nil {
		m.closeResources()
		return nil, err
	}
	m.store = store

	// -------- NOTIFY / NAVIGATE --------
	var sink notify.Notifier = notify.NewLogSink(logger)
	if b.notifier != nil {
		sink = b.notifier
	}
	if cfg.Notify.Async {
		m.dispatcher = notify.NewDispatcher(notify.DispatcherConfig{
			BufferSize: cfg.Notify.BufferSize,
			DropIfFull: cfg.Notify.DropIfFull,
		}, sink)
		m.notifier = m.dispatcher
	} else {
		m.notifier = sink
	}
	m.nav = route.Serialize(b.navigator)

	landings := route.Landings{
		Login:           cfg.Routes.Login,
		Unauthenticated: cfg.Routes.Unauthenticated,
		Authenticated:   cfg.Routes.Authenticated,
	}
	m.routes = b.routes
	if m.routes == nil {
		m.routes = route.DefaultTableWithLandings(landings)
	}

	// -------- TRANSPORT --------
	base := b.transport
	if base == nil {
		base = http.DefaultTransport
	}
	m.client = &http.Client{Timeout: cfg.API.Timeout}

	api, err := authapi.New(authapi.Config{
		BaseURL:           cfg.API.BaseURL,
		LoginPath:         cfg.API.LoginPath,
		RegisterPath:      cfg.API.RegisterPath,
		VerifyPath:        cfg.API.VerifyPath,
		RefreshPath:       cfg.API.RefreshPath,
		HTTPClient:        m.client,
		RefreshHTTPClient: &http.Client{Transport: base},
	})
	if err != nil {
		m.closeResources()
		return nil, err
	}
	m.api = api

	coord, err := refresh.New(refresh.Config{
		Store:      store,
		Refresher:  api,
		Expiry:     codec,
		Notifier:   m.notifier,
		Navigator:  m.nav,
		LoginRoute: m.routes.Landings().Login,
		Timeout:    cfg.Refresh.Timeout,
		Logger:     logger,
		Hooks:      m.refreshHooks(),
	})
	if err != nil {
		m.closeResources()
		return nil, err
	}
	m.refresh = coord

	gate, err := gatekeeper.New(gatekeeper.Config{
		Base:     base,
		Store:    store,
		Refresh:  coord,
		Expiry:   codec,
		Notifier: m.notifier,
		Exempt:   authExemptions(cfg.API),
		Logger:   logger,
		Hooks:    m.gateHooks(),
	})
	if err != nil {
		m.closeResources()
		return nil, err
	}
	m.gate = gate
	m.client.Transport = gate

	b.built = true

	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		logger.Warn("config lint", zap.String("code", w.Code), zap.String("detail", w.Message))
	}
	return m, nil
}

func (b *Builder) buildPersistence(cfg Config, m *Manager) (session.Persistence, error) {
	if b.persistence != nil {
		return b.persistence, nil
	}

	switch cfg.Session.Backend {
	case BackendFile:
		return session.NewFilePersistence(cfg.Session.FilePath)
	case BackendRedis:
		client := b.redis
		if client == nil {
			if cfg.Session.RedisAddr == "" {
				return nil, errors.New("redis session backend requires WithRedis or Session RedisAddr")
			}
			owned := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr})
			m.closers = append(m.closers, owned.Close)
			client = owned
		}
		return session.NewRedisPersistence(client, cfg.Session.RedisPrefix, cfg.Session.RedisTTL)
	default:
		return session.NewMemoryPersistence(), nil
	}
}

// authExemptions returns the configured gate exemptions, or the defaults, plus the login,
// register and refresh endpoints actually in use.
func authExemptions(api APIConfig) gatekeeper.Exemptions {
	exempt := gatekeeper.Exemptions{
		Suffixes:  api.ExemptSuffixes,
		Substring: api.ExemptSubstrings,
	}
	if exempt.IsZero() {
		exempt = gatekeeper.DefaultExemptions()
	}
	return exempt.WithSuffixes(api.LoginPath, api.RegisterPath, api.RefreshPath)
}
