package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lolfu/winrate-engine/internal/crawler"
	"github.com/lolfu/winrate-engine/internal/handlers"
	"github.com/lolfu/winrate-engine/internal/logic"
	"github.com/lolfu/winrate-engine/internal/stats"
)

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	policy, err := stats.LoadPositionPolicy(cfg.PositionPolicyFile)
	if err != nil {
		return err
	}
	source, _, ttl, err := newFetcher(ctx, cfg, logger)
	if err != nil {
		return err
	}

	recommender := logic.NewRecommender(source, logic.RecommendationConfig{
		PlayerSmoothing:     cfg.PlayerSmoothing,
		PopulationSmoothing: cfg.PopulationSmoothing,
		Policy:              policy,
	}, logger)
	if err := loadPopulation(ctx, recommender); err != nil {
		return err
	}

	h := handlers.New(handlers.Config{
		Recommendations: recommender,
		TTL:             ttl,
		MinSamples:      cfg.MinSamples,
		Logger:          logger,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handlers.Router(h, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(gctx, srv, logger) })
	g.Go(func() error {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := loadPopulation(gctx, recommender); err != nil {
					logger.Warn("Population refresh failed", zap.Error(err))
				}
			}
		}
	})
	return g.Wait()
}

// loadPopulation rebuilds the population table from the ledger and swaps it
// into the recommender.
func loadPopulation(ctx context.Context, r *logic.Recommender) error {
	suite, matches, err := crawler.Recompute(ctx, cfg.LedgerFile, nil, 4, logger)
	if err != nil {
		return err
	}
	r.SetPopulation(suite.Population, uint64(matches))
	logger.Info("Population loaded", zap.Int("matches", matches))
	return nil
}
