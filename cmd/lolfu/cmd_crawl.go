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
	"github.com/lolfu/winrate-engine/internal/stats"
	"github.com/lolfu/winrate-engine/internal/worker"
)

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	policy, err := stats.LoadPositionPolicy(cfg.PositionPolicyFile)
	if err != nil {
		return err
	}

	source, store, ttl, err := newFetcher(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sink, err := worker.OpenFileSink(cfg.LedgerFile)
	if err != nil {
		return err
	}
	defer sink.Close()

	ledger := worker.NewPool(worker.PoolConfig{
		BatchSize:     cfg.LedgerBatchSize,
		FlushInterval: cfg.LedgerFlushInterval,
		Sink:          sink,
		Logger:        logger,
	})
	ledger.Start(ctx)
	defer ledger.Stop()

	suite := stats.NewSuite()
	c := crawler.New(source, ledger, suite, crawler.Config{
		Width:         cfg.CrawlWidth,
		QueueType:     cfg.QueueType,
		VersionPrefix: cfg.MatchVersionPrefix,
		CycleInterval: cfg.CrawlCycleInterval,
		Policy:        policy,
		Matches:       crawler.NewStoreMatches(store, logger),
		Logger:        logger,
	})

	players := append(append([]int64{}, cfg.SeedPlayerIDs...), seedPlayers...)
	reseed := func(context.Context) error {
		restored, err := c.Resume(cfg.LedgerFile)
		if err != nil {
			return err
		}
		cached, err := c.SeedFromCache(store)
		if err != nil {
			return err
		}
		c.Seed(players, seedMatches)
		logger.Info("Frontier seeded",
			zap.Int("restored", restored),
			zap.Int("cached", cached),
			zap.Int("seed_players", len(players)),
			zap.Int("seed_matches", len(seedMatches)))
		return nil
	}

	crawlCtx, stopCrawl := context.WithCancel(ctx)
	defer stopCrawl()
	g, gctx := errgroup.WithContext(crawlCtx)

	g.Go(func() error {
		defer stopCrawl()
		if continuous {
			return c.RunContinuous(gctx, reseed)
		}
		if err := reseed(gctx); err != nil {
			return err
		}
		if err := c.Run(gctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(exportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				exportTables(suite)
			}
		}
	})

	if metricsAddr != "" {
		h := handlers.New(handlers.Config{TTL: ttl, Crawl: c, Logger: logger})
		srv := &http.Server{Addr: metricsAddr, Handler: handlers.Router(h, cfg.AllowedOrigins)}
		g.Go(func() error { return serveHTTP(gctx, srv, logger) })
	}

	err = g.Wait()
	exportTables(suite)

	status := c.Status()
	logger.Info("Crawl finished",
		zap.String("run_id", status.RunID),
		zap.Int("matches_ok", status.Matches.DoneOK),
		zap.Int("matches_failed", status.Matches.DoneError),
		zap.Int("players_ok", status.Players.DoneOK),
		zap.Int("players_failed", status.Players.DoneError))
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	return nil
}

func exportTables(suite *stats.Suite) {
	if err := stats.ExportTables(cfg.ExportDir(), suite, uint64(cfg.MinSamples)); err != nil {
		logger.Error("Failed to export tables", zap.Error(err))
	}
}
