package crawler

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/lolfu/winrate-engine/internal/models"
)

const maxLedgerLine = 64 << 10

// ScanLedger calls fn for every line of the ledger at path that starts with a
// match id. row is nil when the rest of the line does not parse. A missing
// ledger is empty.
func ScanLedger(path string, fn func(matchID int64, row *models.LedgerRow) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()
	return scanLedger(f, fn)
}

func scanLedger(r io.Reader, fn func(int64, *models.LedgerRow) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLedgerLine)
	for sc.Scan() {
		line := sc.Text()
		id, ok := models.LedgerMatchID(line)
		if !ok {
			continue
		}
		var row *models.LedgerRow
		if r, err := models.ParseLedgerLine(line); err == nil {
			row = &r
		}
		if err := fn(id, row); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	return nil
}
