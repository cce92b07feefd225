package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/escalaflow/scalegate/pkg/ack"
	"github.com/escalaflow/scalegate/pkg/artifacts"
	"github.com/escalaflow/scalegate/pkg/config"
	"github.com/escalaflow/scalegate/pkg/contracts"
	"github.com/escalaflow/scalegate/pkg/engine"
	"github.com/escalaflow/scalegate/pkg/gateway"
	"github.com/escalaflow/scalegate/pkg/identity"
	"github.com/escalaflow/scalegate/pkg/inflight"
	"github.com/escalaflow/scalegate/pkg/notify"
	"github.com/escalaflow/scalegate/pkg/observability"
	"github.com/escalaflow/scalegate/pkg/reconcile"
	"github.com/escalaflow/scalegate/pkg/runner"
	"github.com/escalaflow/scalegate/pkg/store"
	"github.com/escalaflow/scalegate/pkg/view"
)

// app is the wired component graph for one invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	styles view.Styles
	actor  contracts.Actor

	client  *engine.Client
	gateway *gateway.Gateway
	ack     *ack.Controller
	rec     *reconcile.Reconciler
	journal store.Journal
	obs     *observability.Provider
	runner  *runner.Runner

	closers []func() error
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newApp(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	logger := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, styles: view.DefaultStyles()}

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.OTelEnabled
	obsCfg.OTLPEndpoint = cfg.OTelEndpoint
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	a.obs = obs
	a.closers = append(a.closers, func() error { return obs.Shutdown(context.Background()) })

	opts := []engine.Option{
		engine.WithTimeout(cfg.Timeout),
		engine.WithTracer(obs.Tracer()),
		engine.WithLogger(logger.With("component", "engine")),
	}
	if cfg.EngineToken != "" {
		opts = append(opts, engine.WithToken(cfg.EngineToken))
	}
	if cfg.RPS > 0 {
		opts = append(opts, engine.WithRateLimit(cfg.RPS, cfg.Burst))
	}
	a.client, err = engine.New(cfg.EngineURL, opts...)
	if err != nil {
		return nil, err
	}

	a.gateway, err = gateway.New(a.client, gateway.DefaultCacheSize, gateway.WithLogger(logger.With("component", "gateway")))
	if err != nil {
		return nil, err
	}

	policy := ack.DefaultPolicy()
	if cfg.AckRule != "" || cfg.AckMinLength != ack.DefaultMinReasonLength {
		rule := cfg.AckRule
		if rule == "" {
			rule = ack.DefaultReasonRule
		}
		policy, err = ack.NewReasonPolicy(rule, cfg.AckMinLength)
		if err != nil {
			return nil, fmt.Errorf("ack policy: %w", err)
		}
	}
	actor := identity.Resolve(cfg.EngineToken, cfg.Actor)
	a.actor = actor
	a.ack = ack.NewController(actor, policy).WithLogger(logger.With("component", "ack"))
	a.rec = reconcile.New()

	a.journal, err = store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("receipts: %w", err)
	}
	a.closers = append(a.closers, a.journal.Close)

	ropts := []runner.Option{
		runner.WithJournal(a.journal),
		runner.WithObservability(obs),
		runner.WithLogger(logger.With("component", "runner")),
		runner.WithNotifier(notify.Multi{&notify.Console{W: stdout}, notify.Log{Logger: logger}}),
	}
	if cfg.RedisAddr != "" {
		guard := inflight.NewRedisGuardFromAddr(cfg.RedisAddr, "", 0)
		if err := guard.Ping(ctx); err != nil {
			_ = guard.Close()
			logger.WarnContext(ctx, "redis unavailable, using local in-flight guard only", "addr", cfg.RedisAddr, "error", err)
		} else {
			ropts = append(ropts, runner.WithGuard(guard))
			a.closers = append(a.closers, guard.Close)
		}
	}
	a.runner = runner.New(a.client, a.gateway, a.ack, a.rec, ropts...)
	return a, nil
}

func (a *app) exporter(ctx context.Context) (*artifacts.Exporter, error) {
	st, err := artifacts.Open(ctx, a.cfg.ExportTarget, artifacts.S3Options{
		Endpoint: a.cfg.ExportS3Endpoint,
		Region:   a.cfg.ExportS3Region,
	})
	if err != nil {
		return nil, err
	}
	return artifacts.NewExporter(a.client, st), nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
