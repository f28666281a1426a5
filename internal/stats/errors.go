package stats

import (
	"errors"
	"fmt"
)

// ErrMalformedData rejects one match record. It never halts aggregation of
// other matches.
var ErrMalformedData = errors.New("malformed match data")

var (
	ErrEventOutOfOrder   = errors.New("timeline event out of order")
	ErrAmbiguousPosition = errors.New("position cannot be determined")
	ErrImpossibleState   = errors.New("impossible game state")
)

func malformed(detail error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrMalformedData, detail, fmt.Sprintf(format, args...))
}

// rejectReason maps a rejection to a metric label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrEventOutOfOrder):
		return "out_of_order"
	case errors.Is(err, ErrAmbiguousPosition):
		return "ambiguous_position"
	case errors.Is(err, ErrImpossibleState):
		return "impossible_state"
	default:
		return "malformed"
	}
}
