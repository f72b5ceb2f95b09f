package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dtw/internal/issuer/apiv1"
	"dtw/internal/issuer/db"
	"dtw/internal/issuer/httpserver"
	"dtw/pkg/configuration"
	"dtw/pkg/logger"
	"dtw/pkg/messagebroker"
	"dtw/pkg/trace"
)

func main() {
	ctx := context.Background()

	cfg, err := configuration.New()
	if err != nil {
		panic(err)
	}

	log, err := logger.New("issuer", cfg.Common.Log.Level, cfg.Common.Production)
	if err != nil {
		panic(err)
	}
	mainLog := log.New("main")

	tracer, err := trace.New(ctx, cfg, log.New("trace"), "dtw", "issuer")
	if err != nil {
		mainLog.Error(err, "tracer init failed")
		os.Exit(1)
	}

	dbService, err := db.New(ctx, cfg, tracer, log.New("db"))
	if err != nil {
		mainLog.Error(err, "datastore init failed")
		os.Exit(1)
	}

	var broker messagebroker.Publisher = messagebroker.Noop{}
	if cfg.Common.Kafka.Enabled {
		broker, err = messagebroker.NewKafka(cfg.Common.Kafka.Brokers, cfg.Common.Kafka.Topic, log.New("kafka"))
		if err != nil {
			mainLog.Error(err, "kafka init failed")
			os.Exit(1)
		}
	}

	apiClient, err := apiv1.New(ctx, dbService.CredentialColl, dbService.StatusListColl, broker, cfg, tracer, log.New("apiv1"))
	if err != nil {
		mainLog.Error(err, "api init failed")
		os.Exit(1)
	}

	httpService, err := httpserver.New(ctx, cfg, apiClient, tracer, log.New("httpserver"))
	if err != nil {
		mainLog.Error(err, "httpserver init failed")
		os.Exit(1)
	}
	go func() {
		if err := httpService.Start(ctx); err != nil {
			mainLog.Error(err, "httpserver stopped")
		}
	}()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	mainLog.Info("shutting down")
	if err := httpService.Close(ctx); err != nil {
		mainLog.Error(err, "httpserver close failed")
	}
	if err := broker.Close(); err != nil {
		mainLog.Error(err, "broker close failed")
	}
	if err := dbService.Close(ctx); err != nil {
		mainLog.Error(err, "datastore close failed")
	}
	if err := tracer.Shutdown(ctx); err != nil {
		mainLog.Error(err, "tracer shutdown failed")
	}
	mainLog.Info("stopped")
}
