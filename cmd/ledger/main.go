package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"unibank/internal/config"
	"unibank/internal/handlers"
	"unibank/internal/services"
	"unibank/pkg/database"
)

func main() {
	log := logrus.WithField("component", "bootstrap")

	cfg, err := config.LoadLedgerConfig(".")
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	logrus.SetLevel(cfg.Level())
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Balances and amounts go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database initialisation failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	svc := services.NewService(db, cfg.JWTSecret, cfg.TokenTTL())
	h := handlers.NewHandler(svc, logrus.NewEntry(logrus.StandardLogger()))
	app := handlers.NewApp(h, handlers.AppOptions{
		CORSOrigins:        cfg.CORSOrigins,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		RequestLog:         os.Stdout,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		_ = app.Shutdown()
	}()

	log.WithField("port", cfg.Port).Info("ledger listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
