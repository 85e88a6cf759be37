package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/questline/walletcore/internal/api"
	"github.com/questline/walletcore/internal/infra/logging"
	"github.com/questline/walletcore/internal/infra/pgutils"
	pgaccounts "github.com/questline/walletcore/internal/repos/accounts/postgres"
	"github.com/questline/walletcore/internal/services/ledger"
	"github.com/questline/walletcore/internal/sweeps"
	"github.com/questline/walletcore/pkg/envconf"
	"github.com/questline/walletcore/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Close database pool")
		return db.Close()
	})

	// --- Core ---
	ledgerSrv := ledger.New(db, cfg.Ledger)
	reporter := ledger.NewReporter(db)

	// --- Maintenance sweeps ---
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	runner := sweeps.New(pgaccounts.New(db), cfg.Sweeps, cfg.Ledger.PayoutRateLimitWindow)

	go runner.Run(sweepCtx)

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Stop maintenance sweeps")
		stopSweeps()
		return nil
	})

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, ledgerSrv, reporter)

	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("Wallet core API started", "port", cfg.Port)

	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
