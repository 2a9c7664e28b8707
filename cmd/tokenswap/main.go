package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/efreitasn/tokenswap/internal/config"
	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/efreitasn/tokenswap/internal/engine"
	"github.com/efreitasn/tokenswap/internal/escrow"
	"github.com/efreitasn/tokenswap/internal/events"
	"github.com/efreitasn/tokenswap/internal/handler"
	"github.com/efreitasn/tokenswap/internal/ledger"
	"github.com/efreitasn/tokenswap/internal/service"
	"github.com/efreitasn/tokenswap/internal/store"
	"github.com/efreitasn/tokenswap/internal/transfer"
)

func main() {
	app := cli.NewApp()
	app.Name = "tokenswap"
	app.Usage = "custodial token exchange"
	app.Action = serveAction

	app.Commands = []cli.Command{
		serveCMD,
		healthcheckCMD,
		addressCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the exchange HTTP server",
		Action:      serveAction,
		Description: `Run the exchange with configuration taken from the environment`,
	}
	healthcheckCMD = cli.Command{
		Name:   "healthcheck",
		Usage:  "check a running server, exit 0 when healthy",
		Action: healthcheckAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "port", EnvVar: "PORT", Value: "8080"},
		},
	}
	addressCMD = cli.Command{
		Name:      "address",
		Usage:     "print the deposit address of a principal",
		ArgsUsage: "<principal>",
		Action:    addressAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "exchange", EnvVar: "EXCHANGE_ID", Value: "tokenswap"},
		},
	}
)

// healthcheckAction performs an HTTP GET to localhost:PORT/healthz.
func healthcheckAction(c *cli.Context) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/healthz", c.String("port")))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return cli.NewExitError(fmt.Sprintf("unhealthy: status %d", resp.StatusCode), 1)
	}
	return nil
}

func addressAction(c *cli.Context) error {
	owner := c.Args().First()
	addr, err := domain.DepositAddress(domain.Principal(c.String("exchange")), domain.Principal(owner))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Println(hex.EncodeToString(addr))
	return nil
}

func serveAction(_ *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	tokens := domain.NewTokenRegistry()
	for _, id := range cfg.TokenIDs() {
		tokens.Register(domain.Token(id), cfg.Tokens[id])
	}

	// Persistence is optional; without DATA_DIR state lives in memory only.
	var db *store.PebbleStore
	var pending []domain.Reconciliation
	if cfg.DataDir != "" {
		db, err = store.OpenPebble(cfg.DataDir)
		if err != nil {
			logger.Error("failed to open data dir", slog.String("dir", cfg.DataDir), slog.String("error", err.Error()))
			return err
		}
		defer db.Close()

		pending, err = db.LoadReconciliations()
		if err != nil {
			logger.Error("failed to load reconciliation journal", slog.String("error", err.Error()))
			return err
		}
	}

	var journal *escrow.Journal
	if db != nil {
		journal = escrow.NewJournal(db, pending)
	} else {
		journal = escrow.NewJournal(nil, nil)
	}

	var remote transfer.Ledger
	if cfg.LedgerURL != "" {
		remote = transfer.NewHTTPLedger(cfg.LedgerURL, cfg.LedgerTimeout)
	} else {
		logger.Warn("LEDGER_URL not set, using in-memory token ledger")
		remote = transfer.NewMemoryLedger()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer publisher.Close()

	book := engine.NewBook(cfg.MaxOpenOrders)
	trades := store.NewTradeStore()
	exchange := service.NewExchange(service.Deps{
		Ledger:     ledger.New(),
		Book:       book,
		Trades:     trades,
		Remote:     remote,
		Journal:    journal,
		Tokens:     tokens,
		Publisher:  publisher,
		Logger:     logger,
		ExchangeID: domain.Principal(cfg.ExchangeID),
		Admin:      domain.Principal(cfg.AdminPrincipal),
	})

	if db != nil {
		snap, ok, err := db.LoadSnapshot()
		if err != nil {
			logger.Error("failed to load snapshot", slog.String("error", err.Error()))
			return err
		}
		if ok {
			exchange.Restore(snap)
			logger.Info("state restored",
				slog.Int("balances", len(snap.Balances)),
				slog.Int("orders", len(snap.Orders)),
				slog.Time("saved_at", snap.SavedAt),
			)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine.NewJanitor(cfg.RetentionInterval, cfg.OrderRetention, book, trades, logger).Start(ctx)

	var snapshots *service.SnapshotJob
	if db != nil {
		snapshots = service.NewSnapshotJob(cfg.SnapshotInterval, exchange, db, logger)
		snapshots.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(exchange, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.Int("tokens", len(cfg.Tokens)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server error", slog.String("error", err.Error()))
		cancel()
		return err
	}

	// Stop accepting requests first so the final snapshot sees settled state.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	if snapshots != nil {
		if err := snapshots.Save(); err != nil {
			logger.Error("final snapshot failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}
