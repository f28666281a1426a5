package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/config"
)

// --- Global Command Variables ---
var (
	cfg    *config.Config
	logger *zap.Logger

	// crawl
	seedPlayers    []int64
	seedMatches    []int64
	continuous     bool
	metricsAddr    string
	exportInterval time.Duration

	// recompute
	recomputeWorkers int
	withTimelines    bool

	// serve
	refreshInterval time.Duration

	rootCmd = &cobra.Command{
		Use:           "lolfu",
		Short:         "Crawl ranked matches and estimate champion win rates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			logger, err = newLogger(cfg.Env)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	crawlCmd = &cobra.Command{
		Use:   "crawl",
		Short: "Expand the match graph from the seeds and append resolved matches to the ledger",
		RunE:  runCrawl, // Defined in cmd_crawl.go
	}

	recomputeCmd = &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild every statistics table from the ledger and the match cache",
		RunE:  runRecompute, // Defined in cmd_recompute.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve rankings and player recommendations over HTTP",
		RunE:  runServe, // Defined in cmd_serve.go
	}
)

func init() {
	crawlCmd.Flags().Int64SliceVar(&seedPlayers, "player", nil, "player id to seed (repeatable)")
	crawlCmd.Flags().Int64SliceVar(&seedMatches, "match", nil, "match id to seed (repeatable)")
	crawlCmd.Flags().BoolVar(&continuous, "continuous", false, "keep crawling in cycles until interrupted")
	crawlCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve health, metrics and crawl status on this address")
	crawlCmd.Flags().DurationVar(&exportInterval, "export-interval", 10*time.Minute, "how often to export the statistics tables")

	recomputeCmd.Flags().IntVar(&recomputeWorkers, "workers", 8, "concurrent ledger row processors")
	recomputeCmd.Flags().BoolVar(&withTimelines, "timelines", true, "replay cached match timelines")

	serveCmd.Flags().DurationVar(&refreshInterval, "refresh", time.Hour, "how often to reload population statistics from the ledger")

	rootCmd.AddCommand(crawlCmd, recomputeCmd, serveCmd)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		c := zap.NewProductionConfig()
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		return c.Build()
	}
	return zap.NewDevelopment()
}
