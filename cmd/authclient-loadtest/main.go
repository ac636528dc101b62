package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/internal/devserver"
	"github.com/MrEthical07/authclient/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

type options struct {
	clients      int
	rounds       int
	refreshDelay time.Duration
	accessTTL    time.Duration
	backend      string
	redisAddr    string
	logLevel     string
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("authclient-loadtest", pflag.ContinueOnError)
	flagSet.IntVar(&opts.clients, "clients", 64, "concurrent calls fired at each expiry")
	flagSet.IntVar(&opts.rounds, "rounds", 5, "number of expiry rounds")
	flagSet.DurationVar(&opts.refreshDelay, "refresh-delay", 50*time.Millisecond, "artificial latency of the refresh endpoint")
	flagSet.DurationVar(&opts.accessTTL, "access-ttl", time.Second, "lifetime of issued access tokens (whole seconds)")
	flagSet.StringVar(&opts.backend, "session-backend", authclient.BackendMemory, "session persistence: memory or redis")
	flagSet.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; empty starts miniredis")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if opts.clients <= 0 || opts.rounds <= 0 || opts.accessTTL < time.Second {
		return errors.New("clients and rounds must be > 0 and access-ttl >= 1s")
	}

	logger, err := authclient.NewLogger(authclient.LogConfig{Level: opts.logLevel, Pretty: true, App: "authclient-loadtest"})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	dev, err := devserver.New(devserver.Config{AccessTTL: opts.accessTTL, Logger: logger.Named("devserver")})
	if err != nil {
		return err
	}
	if err := dev.AddUser("loadtest", "loadtest-password", permission.RoleAdministrator); err != nil {
		return err
	}
	dev.SetRefreshDelay(opts.refreshDelay)
	srv := httptest.NewServer(dev.Handler())
	defer srv.Close()

	cfg := authclient.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.Session.Backend = opts.backend

	builder := authclient.New().WithConfig(cfg).WithLogger(logger)
	if opts.backend == authclient.BackendRedis {
		client, cleanup, err := redisClient(opts.redisAddr)
		if err != nil {
			return err
		}
		defer cleanup()
		builder = builder.WithRedis(client)
	}

	mgr, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	if _, err := mgr.Login(ctx, "loadtest", "loadtest-password"); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var violations int
	var latencies []time.Duration
	for round := 1; round <= opts.rounds; round++ {
		claims, ok := mgr.Claims()
		if !ok {
			return errors.New("session lost between rounds")
		}
		time.Sleep(time.Until(claims.ExpiresAt) + 5*time.Millisecond)

		before := dev.RefreshCalls()
		samples, err := fire(ctx, mgr, srv.URL+devserver.ProtectedPath, opts.clients)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		refreshes := dev.RefreshCalls() - before
		if refreshes != 1 {
			violations++
		}
		latencies = append(latencies, samples...)
		fmt.Printf("round %d: calls=%d refreshes=%d\n", round, len(samples), refreshes)
	}

	printSummary(mgr, latencies, violations)
	if violations > 0 {
		return fmt.Errorf("%d rounds issued more than one refresh", violations)
	}
	return nil
}

func fire(ctx context.Context, mgr *authclient.Manager, url string, clients int) ([]time.Duration, error) {
	var (
		mu      sync.Mutex
		samples = make([]time.Duration, 0, clients)
		start   = make(chan struct{})
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < clients; i++ {
		g.Go(func() error {
			<-start
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			t0 := time.Now()
			resp, err := mgr.Do(req)
			if err != nil {
				return err
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("protected call: status %d", resp.StatusCode)
			}
			d := time.Since(t0)

			mu.Lock()
			samples = append(samples, d)
			mu.Unlock()
			return nil
		})
	}
	close(start)
	return samples, g.Wait()
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func printSummary(mgr *authclient.Manager, samples []time.Duration, violations int) {
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	snap := mgr.MetricsSnapshot()
	fmt.Println("---- results ----")
	fmt.Printf("calls=%d p50=%s p95=%s p99=%s\n",
		len(samples),
		percentile(samples, 50).Round(time.Microsecond),
		percentile(samples, 95).Round(time.Microsecond),
		percentile(samples, 99).Round(time.Microsecond),
	)
	fmt.Printf("refresh started=%d coalesced=%d failures=%d violations=%d\n",
		snap.Counters[authclient.MetricRefreshStarted],
		snap.Counters[authclient.MetricRefreshCoalesced],
		snap.Counters[authclient.MetricRefreshFailure],
		violations,
	)
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}
