package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/solidangle/housemetrics/config"
	"github.com/solidangle/housemetrics/db"
	httpserver "github.com/solidangle/housemetrics/http"
	"github.com/solidangle/housemetrics/sensor"
	"github.com/solidangle/housemetrics/tariff"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatal("timezone error")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connection error")
	}
	defer store.Close()

	resolver := sensor.NewResolver(sensor.NewTTLCache())
	tariffs := tariff.NewClassifier(loc, cfg.Holidays)

	srv := httpserver.New(cfg, store, resolver, tariffs, log)
	log.WithField("addr", cfg.ListenAddr()).Info("collector listening")

	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
