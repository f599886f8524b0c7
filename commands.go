package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/derekk024/TelemetryOps/internal/aggregate"
	"github.com/derekk024/TelemetryOps/internal/config"
	"github.com/derekk024/TelemetryOps/internal/loadgen"
	"github.com/derekk024/TelemetryOps/internal/logging"
	"github.com/derekk024/TelemetryOps/internal/metrics"
	"github.com/derekk024/TelemetryOps/internal/scheduler"
	"github.com/derekk024/TelemetryOps/internal/server"
	"github.com/derekk024/TelemetryOps/internal/state"
	"github.com/derekk024/TelemetryOps/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// env is what every service command starts from.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	close  func() error
}

func setup(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Lookup("port") != nil && cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		switch cmd.Name() {
		case "ingest":
			cfg.IngestPort = port
		case "aggregator":
			cfg.AggregatorPort = port
		case "controlplane":
			cfg.ControlPort = port
		case "serve":
			cfg.ServePort = port
		}
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, closeFn, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	gin.SetMode(gin.ReleaseMode)
	return &env{cfg: cfg, logger: logger, close: closeFn}, nil
}

func (e *env) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, storage.Options{
		Driver: e.cfg.DBDriver,
		Path:   e.cfg.DBPath,
		DSN:    e.cfg.DBDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return store, nil
}

// diskPath is the directory whose volume backs the store, when it is local.
func (e *env) diskPath() string {
	if e.cfg.DBDriver != "sqlite" {
		return ""
	}
	return filepath.Dir(e.cfg.DBPath)
}

func (e *env) newRegistry() (*state.Registry, error) {
	reg, err := state.NewRegistry(e.cfg.Thresholds, e.cfg.Watchlist)
	if err != nil {
		return nil, fmt.Errorf("initial thresholds/watchlist: %w", err)
	}
	return reg, nil
}

func (e *env) newScheduler(agg aggregate.Aggregator, reg *state.Registry, rec *metrics.Recorder) *scheduler.Scheduler {
	c := e.cfg
	return scheduler.New(agg, reg, scheduler.Options{
		Interval:     c.PollInterval,
		Concurrency:  c.PollConcurrency,
		FetchTimeout: c.FetchConnectTimeout + c.FetchWriteTimeout + c.FetchReadTimeout,
		Logger:       e.logger.With("component", "scheduler"),
		Recorder:     rec,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// run serves every srv and runs every loop until ctx is done, then shuts the
// servers down gracefully. Loops must return once their context is done.
func run(ctx context.Context, logger *slog.Logger, servers []*http.Server, loops ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	for _, loop := range loops {
		loop := loop
		g.Go(func() error { return loop(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("shutdown", "addr", srv.Addr, "error", err)
			}
		}
		return nil
	})
	return g.Wait()
}

// ── ingest ────────────────────────────────────────────────────────────────────

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Start the ingest plane (POST /telemetry)",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner(cmd.OutOrStdout(), "INGEST")
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			store, err := e.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			api := server.New(server.Dependencies{
				Logger:          e.logger,
				Store:           store,
				IngestToken:     e.cfg.IngestToken,
				DiskPath:        e.diskPath(),
				DiskFullPercent: e.cfg.DiskFullPercent,
			})
			addr := e.cfg.Addr(e.cfg.IngestPort)
			fmt.Printf("  ✓ Ingest plane → http://%s/telemetry\n", addr)
			fmt.Printf("  ✓ Store:         %s %s\n\n", e.cfg.DBDriver, e.cfg.DBPath)

			srv := &http.Server{Addr: addr, Handler: api.Engine("ingest", server.PlaneIngest), ReadHeaderTimeout: 5 * time.Second}
			ctx, stop := signalContext()
			defer stop()
			return run(ctx, e.logger, []*http.Server{srv})
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (overrides ingest_port)")
	cmd.Flags().String("db", "", "SQLite database path (overrides db_path)")
	return cmd
}

// ── aggregator ────────────────────────────────────────────────────────────────

func aggregatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregator",
		Short: "Start the aggregator plane (GET /metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner(cmd.OutOrStdout(), "AGGREGATOR")
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			store, err := e.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			api := server.New(server.Dependencies{
				Logger:     e.logger,
				Store:      store,
				Aggregator: aggregate.NewService(store, e.logger.With("component", "aggregate")),
			})
			addr := e.cfg.Addr(e.cfg.AggregatorPort)
			fmt.Printf("  ✓ Aggregator plane → http://%s/metrics\n\n", addr)

			srv := &http.Server{Addr: addr, Handler: api.Engine("aggregator", server.PlaneAggregator), ReadHeaderTimeout: 5 * time.Second}
			ctx, stop := signalContext()
			defer stop()
			return run(ctx, e.logger, []*http.Server{srv})
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (overrides aggregator_port)")
	cmd.Flags().String("db", "", "SQLite database path (overrides db_path)")
	return cmd
}

// ── controlplane ──────────────────────────────────────────────────────────────

func controlplaneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "controlplane",
		Short: "Start the control plane: poll loop, thresholds, watch-list and alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner(cmd.OutOrStdout(), "CONTROL PLANE")
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if u, _ := cmd.Flags().GetString("aggregator"); u != "" {
				e.cfg.AggregatorURL = u
			}

			reg, err := e.newRegistry()
			if err != nil {
				return err
			}
			rec := metrics.New()
			client := aggregate.NewClient(e.cfg.AggregatorURL, aggregate.Timeouts{
				Connect: e.cfg.FetchConnectTimeout,
				Read:    e.cfg.FetchReadTimeout,
				Write:   e.cfg.FetchWriteTimeout,
			})
			sched := e.newScheduler(client, reg, rec)

			api := server.New(server.Dependencies{
				Logger:   e.logger,
				Metrics:  rec,
				Registry: reg,
				Upstream: client,
				Tokens:   server.NewTokenIssuer(e.cfg.JWTSecret),
			})
			addr := e.cfg.Addr(e.cfg.ControlPort)
			fmt.Printf("  ✓ Control plane → http://%s\n", addr)
			fmt.Printf("  ✓ Aggregator:     %s\n", e.cfg.AggregatorURL)
			fmt.Printf("  ✓ Poll interval:  %s\n\n", e.cfg.PollInterval)

			srv := &http.Server{Addr: addr, Handler: api.Engine("controlplane", server.PlaneControl), ReadHeaderTimeout: 5 * time.Second}
			ctx, stop := signalContext()
			defer stop()
			return run(ctx, e.logger, []*http.Server{srv}, sched.Run)
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (overrides control_port)")
	cmd.Flags().String("aggregator", "", "Aggregator base URL (overrides aggregator_url)")
	return cmd
}

// ── serve (all-in-one) ────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run ingest, aggregator and control plane in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner(cmd.OutOrStdout(), "ALL-IN-ONE")
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			store, err := e.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			reg, err := e.newRegistry()
			if err != nil {
				return err
			}
			rec := metrics.New()
			svc := aggregate.NewService(store, e.logger.With("component", "aggregate"))
			sched := e.newScheduler(svc, reg, rec)

			api := server.New(server.Dependencies{
				Logger:          e.logger,
				Metrics:         rec,
				Store:           store,
				Aggregator:      svc,
				Registry:        reg,
				Tokens:          server.NewTokenIssuer(e.cfg.JWTSecret),
				IngestToken:     e.cfg.IngestToken,
				DiskPath:        e.diskPath(),
				DiskFullPercent: e.cfg.DiskFullPercent,
			})
			addr := e.cfg.Addr(e.cfg.ServePort)
			fmt.Printf("  ✓ All planes → http://%s\n\n", addr)

			srv := &http.Server{Addr: addr, Handler: api.Engine("serve", server.PlaneAll), ReadHeaderTimeout: 5 * time.Second}
			ctx, stop := signalContext()
			defer stop()
			return run(ctx, e.logger, []*http.Server{srv}, sched.Run)
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (overrides serve_port)")
	cmd.Flags().String("db", "", "SQLite database path (overrides db_path)")
	return cmd
}

// ── loadgen ───────────────────────────────────────────────────────────────────

func loadgenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Post synthetic telemetry with periodic anomalies to an ingest plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, _ := cmd.Flags().GetString("host")
			qps, _ := cmd.Flags().GetFloat64("qps")
			seconds, _ := cmd.Flags().GetInt("seconds")
			sats, _ := cmd.Flags().GetInt("sats")
			token, _ := cmd.Flags().GetString("token")

			g, err := loadgen.New(loadgen.Options{
				URL:      host,
				QPS:      qps,
				Duration: time.Duration(seconds) * time.Second,
				Sats:     sats,
				Token:    token,
			})
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			res := g.Run(ctx)
			fmt.Printf("sent %d events in %s (~%.1f eps, %d failed)\n",
				res.Sent, res.Elapsed.Round(time.Second), res.Rate(), res.Failed)
			return nil
		},
	}
	cmd.Flags().String("host", "http://localhost:8081", "Ingest base URL")
	cmd.Flags().Float64("qps", 20, "Samples per second")
	cmd.Flags().Int("seconds", 60, "Run duration in seconds")
	cmd.Flags().Int("sats", 5, "Number of satellites (SAT-001..)")
	cmd.Flags().String("token", "", "Ingest bearer token")
	return cmd
}

// ── token ─────────────────────────────────────────────────────────────────────

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a control-plane JWT signed with jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			operator, _ := cmd.Flags().GetString("operator")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			tok, err := server.NewTokenIssuer(cfg.JWTSecret).Issue(operator, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("operator", "operator", "Operator name embedded in the token")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

// ── config ────────────────────────────────────────────────────────────────────

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			redacted := *cfg
			if redacted.JWTSecret != "" {
				redacted.JWTSecret = "<redacted>"
			}
			if redacted.IngestToken != "" {
				redacted.IngestToken = "<redacted>"
			}
			out, err := yaml.Marshal(&redacted)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// ── version ───────────────────────────────────────────────────────────────────

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print TelemetryOps version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TelemetryOps %s\n", version)
		},
	}
}
