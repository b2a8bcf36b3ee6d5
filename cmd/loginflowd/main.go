package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"golang.org/x/sync/errgroup"

	sqliteadapter "github.com/parlorchat/loginflow/internal/adapter/driven/sqlite"
	"github.com/parlorchat/loginflow/internal/adapter/driven/webclient"
	httphandler "github.com/parlorchat/loginflow/internal/adapter/driving/http"
	"github.com/parlorchat/loginflow/internal/application"
	"github.com/parlorchat/loginflow/internal/config"
	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"server_url", cfg.ServerURL,
		"login_scheme", cfg.LoginScheme,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)
	if cfg.SecretKey == nil {
		slog.Warn("LOGINFLOW_SECRET_KEY not set, account storage disabled")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	accountStore := sqliteadapter.NewAccountRepo(db, cfg.SecretKey)
	trustStore := sqliteadapter.NewTrustRepo(db)

	// 6. Build the trust manager and hydrate previously approved certificates.
	trust := application.NewTrustManager(trustStore, nil)
	if err := trust.Hydrate(ctx); err != nil {
		return err
	}
	slog.Info("trust overlay hydrated", "approved", len(trust.Approved()))

	// 7. Create the decision gate. Prompts are logged; the operator resolves
	// them through the HTTP API.
	listener := driven.DecisionListenerFunc(func(pending model.PendingDecision) {
		slog.Warn("certificate requires a trust decision",
			"decision_id", pending.ID,
			"host", pending.Host,
			"fingerprint", model.Fingerprint(pending.Certificate),
		)
	})
	gate := application.NewDecisionGate(trust, listener, slog.Default())

	// 8. Create the session driver over the reconciler.
	recon := application.NewReconciler(accountStore)
	driver := application.NewSessionDriver(
		cfg.LoginScheme,
		false, // fresh login, not a password update
		recon,
		gate,
		nil, // no platform client-certificate source in the daemon
		&logFlowUI{},
		slog.Default(),
	)
	defer driver.Close()

	// 9. Create the server client and status poller.
	client := webclient.NewClient(cfg.ServerURL, cfg.UserAgent, trust, driver)
	statusSvc := application.NewStatusService(client, cfg.PollInterval)

	// 10. Create HTTP handler and register API routes.
	startFlow := func(fctx context.Context) error {
		page, err := client.FetchLoginPage(fctx)
		if err != nil {
			return err
		}
		slog.Info("login page fetched",
			"load_id", page.LoadID,
			"status", page.StatusCode,
			"intercepted", page.Intercepted,
		)
		return nil
	}
	apiHandler := httphandler.NewHandler(accountStore, gate, trust, statusSvc, startFlow, ctx, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 11. Run the status poller and HTTP server until shutdown.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		statusSvc.Start(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	slog.Info("loginflowd started", "listen_addr", cfg.ListenAddr)

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}

// logFlowUI reports flow results to the log. A real client replaces this with
// its login screen.
type logFlowUI struct{}

func (*logFlowUI) AccountCreated(account model.Account, duplicateNoted bool) {
	slog.Info("signed in", "username", account.Username, "server_url", account.ServerURL, "duplicate_noted", duplicateNoted)
}

func (*logFlowUI) PasswordUpdated(accountID int64) {
	slog.Info("password updated", "account_id", accountID)
}

func (*logFlowUI) FlowFailed(kind model.OutcomeKind, err error) {
	slog.Warn("login flow failed", "kind", kind, "error", err)
}
