package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cameronmore/go-members/auth"
	"github.com/cameronmore/go-members/env"
	"github.com/cameronmore/go-members/logging"
	"github.com/cameronmore/go-members/password"
	"github.com/cameronmore/go-members/sessions"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().String("env-file", ".env", "Path to a .env file, skipped when missing")
	cmd.Flags().StringP("port", "p", "", "Listen port, overrides PORT")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*env.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := env.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	return cfg, nil
}

// stores holds what the server reads users and sessions from, plus whatever has to be closed on exit.
type stores struct {
	users    sessions.UserStore
	sessions sessions.SessionStore
	closers  []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *env.Config) (*stores, error) {
	st := &stores{}

	var store sessions.AuthStore
	switch cfg.StoreDriver {
	case env.DriverMemory:
		store = auth.NewMemoryAuthStore()
	case env.DriverSQLite, env.DriverPostgres:
		open, build := auth.OpenSQLite, sqliteStore
		if cfg.StoreDriver == env.DriverPostgres {
			open, build = auth.OpenPostgres, postgresStore
		}
		db, err := open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db.Close)
		if store, err = build(ctx, db); err != nil {
			st.Close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	st.users, st.sessions = store, store

	if cfg.SessionBackend == env.SessionBackendRedis {
		rdb, err := auth.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, rdb.Close)
		st.sessions = auth.NewRedisSessionStore(rdb)
	}
	return st, nil
}

func sqliteStore(ctx context.Context, db *sql.DB) (sessions.AuthStore, error) {
	return auth.NewSQLiteAuthStore(ctx, db)
}

func postgresStore(ctx context.Context, db *sql.DB) (sessions.AuthStore, error) {
	return auth.NewPostgresAuthStore(ctx, db)
}

// newHandler wires the service graph on top of the opened stores.
func newHandler(cfg *env.Config, st *stores, log logging.Logger) (http.Handler, error) {
	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	manager := sessions.NewManager(st.sessions, cfg.SessionSecret, cfg.SessionTTL,
		sessions.WithSecureCookies(cfg.CookieSecure))
	svc, err := auth.NewService(st.users, manager, hasher)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthContext(svc, manager, log).Routes(), nil
}

// scheduleSweeper starts the expired-session sweep when the session store keeps rows that
// nothing else removes. Redis expires keys on its own.
func scheduleSweeper(ctx context.Context, cfg *env.Config, st *stores, log logging.Logger) (*cron.Cron, error) {
	expiring, ok := st.sessions.(sessions.ExpiringSessionStore)
	if !ok || cfg.SessionSweep == "" {
		return nil, nil
	}
	c := cron.New()
	if _, err := auth.NewSweeper(expiring, log).Schedule(ctx, c, cfg.SessionSweep); err != nil {
		return nil, fmt.Errorf("SESSION_SWEEP: %w", err)
	}
	c.Start()
	return c, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.NewJSON(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening stores: %w", err)
	}
	defer st.Close()

	handler, err := newHandler(cfg, st, log)
	if err != nil {
		return err
	}

	sweeper, err := scheduleSweeper(ctx, cfg, st, log)
	if err != nil {
		return err
	}
	if sweeper != nil {
		defer func() { <-sweeper.Stop().Done() }()
	}

	addr := net.JoinHostPort("", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", addr, "store", cfg.StoreDriver, "sessions", cfg.SessionBackend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}
