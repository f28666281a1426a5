package worker

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/models"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]string
}

func (m *memorySink) WriteLines(lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]string(nil), lines...))
	return nil
}

func (m *memorySink) lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func TestPoolFlushesOnBatchSize(t *testing.T) {
	sink := &memorySink{}
	p := NewPool(PoolConfig{BatchSize: 3, FlushInterval: time.Hour, Sink: sink, Logger: zap.NewNop()})
	p.Start(t.Context())

	for id := int64(1); id <= 3; id++ {
		p.Enqueue(models.LedgerRow{MatchID: id, Version: "5.13"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.lines()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(sink.lines()); got != 3 {
		t.Fatalf("flushed %d rows before Stop, want 3", got)
	}
	p.Stop()
}

func TestPoolStopDrainsQueue(t *testing.T) {
	sink := &memorySink{}
	p := NewPool(PoolConfig{BatchSize: 1000, FlushInterval: time.Hour, Sink: sink})
	p.Start(t.Context())

	for id := int64(1); id <= 250; id++ {
		if !p.Enqueue(models.LedgerRow{MatchID: id}) {
			t.Fatalf("Enqueue(%d) refused", id)
		}
	}
	p.Stop()

	if got := len(sink.lines()); got != 250 {
		t.Errorf("wrote %d rows, want 250", got)
	}
	if p.Written() != 250 {
		t.Errorf("Written = %d", p.Written())
	}
	if p.Enqueue(models.LedgerRow{MatchID: 999}) {
		t.Error("Enqueue after Stop should be refused")
	}
	p.Stop()
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "match.csv")
	sink, err := OpenFileSink(path)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPool(PoolConfig{BatchSize: 2, FlushInterval: 10 * time.Millisecond, Sink: sink})
	p.Start(t.Context())
	row := models.LedgerRow{MatchID: 1886626042, Version: "5.13.0.329", CreatedAt: 1436000000000}
	row.Winners[0] = models.LedgerSlot{Present: true, PlayerID: 7, ChampionID: 51, Tier: "GOLD"}
	p.Enqueue(row)
	p.Stop()
	sink.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("ledger is empty")
	}
	got, err := models.ParseLedgerLine(sc.Text())
	if err != nil {
		t.Fatalf("ParseLedgerLine: %v", err)
	}
	if got.MatchID != row.MatchID || got.Winners[0] != row.Winners[0] || got.Losers[0].Present {
		t.Errorf("row = %+v", got)
	}
}
