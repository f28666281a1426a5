package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/crawler"
	"github.com/lolfu/winrate-engine/internal/stats"
)

func runRecompute(cmd *cobra.Command, args []string) error {
	var records crawler.RecordReader
	if withTimelines {
		store, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		records = store
	}

	suite, matches, err := crawler.Recompute(cmd.Context(), cfg.LedgerFile, records, recomputeWorkers, logger)
	if err != nil {
		return err
	}
	if err := stats.ExportTables(cfg.ExportDir(), suite, uint64(cfg.MinSamples)); err != nil {
		return err
	}
	logger.Info("Tables exported", zap.String("dir", cfg.ExportDir()), zap.Int("matches", matches))
	return nil
}
