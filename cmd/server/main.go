package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/address-correction-service/internal/adapter/geocode"
	httpadapter "github.com/couchcryptid/address-correction-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/address-correction-service/internal/adapter/kafka"
	"github.com/couchcryptid/address-correction-service/internal/adapter/postal"
	"github.com/couchcryptid/address-correction-service/internal/config"
	"github.com/couchcryptid/address-correction-service/internal/domain"
	"github.com/couchcryptid/address-correction-service/internal/observability"
	"github.com/couchcryptid/address-correction-service/internal/pipeline"
	"github.com/couchcryptid/address-correction-service/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	corrections := domain.NewCorrections()
	flight := resilience.NewGroup(cfg.Dedup.TTL, cfg.Dedup.Grace, cfg.Dedup.SweepInterval)

	postalBreaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:             "postal",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		MonitoringPeriod: cfg.Breaker.MonitoringPeriod,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	})
	geocodeBreaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:             "geocode",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		MonitoringPeriod: cfg.Breaker.MonitoringPeriod,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	})

	postalCfg := postal.Config{
		BaseURL:      cfg.Postal.BaseURL,
		TokenURL:     cfg.Postal.TokenURL,
		ClientID:     cfg.Postal.ClientID,
		ClientSecret: cfg.Postal.ClientSecret,
		Timeout:      cfg.Postal.Timeout,
	}
	tokens := postal.NewTokenManager(postalCfg, flight, postalBreaker, metrics, logger, clock)
	postalClient := postal.NewClient(postalCfg, corrections, tokens, flight, postalBreaker, metrics, logger)

	geocodeClient := geocode.NewClient(geocode.Config{
		APIKey:        cfg.Geocode.APIKey,
		BaseURL:       cfg.Geocode.BaseURL,
		Timeout:       cfg.Geocode.Timeout,
		CacheCapacity: cfg.Geocode.CacheCapacity,
		CacheTTL:      cfg.Geocode.CacheTTL,
	}, flight, geocodeBreaker, metrics, logger)

	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.Kafka.Enabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "topic", cfg.Kafka.Topic)
	}

	svc := pipeline.New(postalClient, geocodeClient, publisher, logger, metrics)

	stats := func() map[string]any {
		geoStats, countyStats := geocodeClient.GetStats()
		return map[string]any{
			"geocode_cache":   geoStats,
			"county_cache":    countyStats,
			"postal_breaker":  postalBreaker.GetStats(),
			"geocode_breaker": geocodeBreaker.GetStats(),
			"dedup":           flight.GetStats(),
		}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, postalClient, stats, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	geocodeClient.Clear()
	flight.Clear()
	flight.Close()

	logger.Info("shutdown complete")
}
