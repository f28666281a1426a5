package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LedgerSlot is one position of one side in a ledger row.
type LedgerSlot struct {
	Present    bool
	PlayerID   int64
	ChampionID int
	Tier       string
}

// LedgerRow is one fully resolved match, denormalized by side and position.
type LedgerRow struct {
	MatchID   int64
	Version   string
	CreatedAt int64 // epoch milliseconds
	Winners   [5]LedgerSlot
	Losers    [5]LedgerSlot
}

const (
	ledgerPlaceholder = "?"
	ledgerFixedCols   = 3
	ledgerCols        = ledgerFixedCols + 2*5*3
)

var ErrLedgerLine = errors.New("malformed ledger line")

// Format renders the row as one comma separated line without a newline.
func (r LedgerRow) Format() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(r.MatchID, 10))
	b.WriteByte(',')
	b.WriteString(r.Version)
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(r.CreatedAt, 10))
	for _, side := range [][5]LedgerSlot{r.Winners, r.Losers} {
		for _, s := range side {
			if !s.Present {
				b.WriteString(",?,?,?")
				continue
			}
			b.WriteByte(',')
			b.WriteString(strconv.FormatInt(s.PlayerID, 10))
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(s.ChampionID))
			b.WriteByte(',')
			tier := s.Tier
			if tier == "" {
				tier = UnknownTier
			}
			b.WriteString(tier)
		}
	}
	return b.String()
}

// ParseLedgerLine parses a line written by Format.
func ParseLedgerLine(line string) (LedgerRow, error) {
	cols := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(cols) != ledgerCols {
		return LedgerRow{}, fmt.Errorf("%w: %d columns", ErrLedgerLine, len(cols))
	}

	var r LedgerRow
	var err error
	if r.MatchID, err = strconv.ParseInt(cols[0], 10, 64); err != nil {
		return LedgerRow{}, fmt.Errorf("%w: match id: %v", ErrLedgerLine, err)
	}
	r.Version = cols[1]
	if r.CreatedAt, err = strconv.ParseInt(cols[2], 10, 64); err != nil {
		return LedgerRow{}, fmt.Errorf("%w: creation: %v", ErrLedgerLine, err)
	}

	i := ledgerFixedCols
	for side := 0; side < 2; side++ {
		for pos := 0; pos < 5; pos++ {
			slot, err := parseSlot(cols[i], cols[i+1], cols[i+2])
			if err != nil {
				return LedgerRow{}, err
			}
			if side == 0 {
				r.Winners[pos] = slot
			} else {
				r.Losers[pos] = slot
			}
			i += 3
		}
	}
	return r, nil
}

func parseSlot(player, champion, tier string) (LedgerSlot, error) {
	if player == ledgerPlaceholder && champion == ledgerPlaceholder {
		return LedgerSlot{}, nil
	}
	pid, err := strconv.ParseInt(player, 10, 64)
	if err != nil {
		return LedgerSlot{}, fmt.Errorf("%w: player id: %v", ErrLedgerLine, err)
	}
	cid, err := strconv.Atoi(champion)
	if err != nil {
		return LedgerSlot{}, fmt.Errorf("%w: champion id: %v", ErrLedgerLine, err)
	}
	return LedgerSlot{Present: true, PlayerID: pid, ChampionID: cid, Tier: tier}, nil
}

// LedgerMatchID extracts the leading match id of a line. Lines that do not
// start with a number (headers, comments) report ok=false.
func LedgerMatchID(line string) (int64, bool) {
	head, _, _ := strings.Cut(line, ",")
	id, err := strconv.ParseInt(strings.TrimSpace(head), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// PlayerIDs returns every player present in the row.
func (r LedgerRow) PlayerIDs() []int64 {
	ids := make([]int64, 0, 10)
	for _, side := range [][5]LedgerSlot{r.Winners, r.Losers} {
		for _, s := range side {
			if s.Present && s.PlayerID != 0 {
				ids = append(ids, s.PlayerID)
			}
		}
	}
	return ids
}
