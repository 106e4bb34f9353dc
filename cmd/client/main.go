package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"unibank/internal/config"
	"unibank/internal/console"
	"unibank/internal/gateway"
	"unibank/internal/metrics"
	"unibank/internal/orchestrator"
	"unibank/internal/session"
	"unibank/internal/state"
	"unibank/internal/status"
	"unibank/internal/view"
)

func main() {
	app := &cli.App{
		Name:  "unibank",
		Usage: "terminal client for the UniBank ledger service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-dir", Value: ".", Usage: "directory holding an optional .env file"},
			&cli.StringFlag{Name: "ledger-url", Usage: "override LEDGER_BASE_URL"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithField("component", "bootstrap").WithError(err).Fatal("client stopped")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadClientConfig(c.String("env-dir"))
	if err != nil {
		return err
	}
	if u := c.String("ledger-url"); u != "" {
		cfg.LedgerBaseURL = u
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(cfg.Level())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.NewEntry(logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithField("component", "bootstrap").WithError(err).Warn("metrics listener stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	store := session.NewStore(nil, session.NewFileCredentials(cfg.CredentialsPath, cfg.CredentialsKey), log)
	client := gateway.NewClient(cfg.LedgerBaseURL, store, gateway.WithLogger(log))
	store.SetAuthenticator(client)

	appState := state.New()
	statusCh := status.New()
	views := view.New(store)
	orch := orchestrator.New(client, store, appState, views, statusCh, orchestrator.Config{
		Timeout:      cfg.RequestTimeout,
		AmountPolicy: orchestrator.AmountPolicy(cfg.AmountValidation),
	}, log)
	views.Bind(orch)

	log.WithFields(logrus.Fields{
		"component": "bootstrap",
		"ledger":    cfg.LedgerBaseURL,
		"policy":    cfg.AmountValidation,
	}).Info("client starting")

	if _, err := orch.Restore(ctx); err != nil {
		log.WithField("component", "bootstrap").WithError(err).Warn("stored session could not be restored")
	}

	return console.New(orch, views, store, appState, statusCh, os.Stdout, log).Run(ctx, os.Stdin)
}
