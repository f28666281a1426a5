package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// WriteCSV writes one "wins,losses,feature..." row per key observed at least
// minSamples times, ordered by key.
func WriteCSV(w io.Writer, c *Counters, minSamples uint64) error {
	cw := csv.NewWriter(w)
	for _, e := range c.Snapshot() {
		if e.Samples() < minSamples {
			continue
		}
		rec := make([]string, 0, 2+len(e.Key))
		rec = append(rec, strconv.FormatUint(e.Wins, 10), strconv.FormatUint(e.Losses, 10))
		rec = append(rec, e.Key...)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Tables names each exported table file.
func (s *Suite) Tables() map[string]*Counters {
	return map[string]*Counters{
		"population_stats.csv": s.Population.Counters(),
		"matchup_stats.csv":    s.Matchup.Counters(),
		"tower_stats.csv":      s.Timeline.Towers,
		"kill_stats.csv":       s.Timeline.Kills,
		"joint_stats.csv":      s.Timeline.Joint,
	}
}

// ExportTables writes every table of s into dir. Each file is replaced
// atomically so readers never observe a partial table.
func ExportTables(dir string, s *Suite, minSamples uint64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	for name, c := range s.Tables() {
		if err := exportFile(filepath.Join(dir, name), c, minSamples); err != nil {
			return err
		}
	}
	return nil
}

func exportFile(path string, c *Counters, minSamples uint64) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	defer os.Remove(f.Name())

	if err := WriteCSV(f, c, minSamples); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return os.Rename(f.Name(), path)
}
