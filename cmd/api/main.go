package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/powerbackus/powerback-sub000/internal/adapter/repo"
	"github.com/powerbackus/powerback-sub000/internal/compliance"
	"github.com/powerbackus/powerback-sub000/internal/election"
	"github.com/powerbackus/powerback-sub000/internal/http/handlers"
	"github.com/powerbackus/powerback-sub000/internal/http/httpapi"
	"github.com/powerbackus/powerback-sub000/internal/infra"
	"github.com/powerbackus/powerback-sub000/internal/settlement"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := repo.EnsureSchema(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	celebrations := repo.NewCelebrationRepository(dbpool)
	keys := repo.NewIdempotencyStore(dbpool)
	inbox := repo.NewSettlementInbox(dbpool)

	datesClient := election.NewHTTPDatesClient(cfg.ElectionAPIBaseURL, nil)
	resolver := election.NewResolver(datesClient, logger, cfg.ElectionAPITimeout)

	caps := compliance.Caps{
		BasePerContributionCents: cfg.BasePerContributionCents,
		BaseAnnualCents:          cfg.BaseAnnualCents,
		ElevatedPerElectionCents: cfg.ElevatedPerElectionCents,
	}
	calculator := compliance.NewCalculator(caps, resolver, celebrations, election.ReferenceZone(cfg.ReferenceUTCOffsetHours))

	coordinator := settlement.NewCoordinator(celebrations, keys, calculator, logger)

	app := handlers.NewApp(celebrations, inbox, coordinator, calculator, logger)
	router := httpapi.NewRouter(app, logger, httpapi.Options{
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  cfg.AllowedOrigins,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
