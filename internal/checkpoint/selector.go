package checkpoint

import (
	"errors"
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// ErrBarUnavailable signals that the minute series holds no usable sample
// for the target instant. Callers skip the write; no value is fabricated.
var ErrBarUnavailable = errors.New("no bar available for target instant")

// SelectPrice picks the authoritative price for a checkpoint from an
// ascending, timestamp-unique minute series.
//
// Selection policy, tried in order: exact timestamp, next-minute timestamp
// (absorbs one-minute provider skew), latest bar strictly before the target.
// The close checkpoint uses at-or-before directly, because feeds commonly
// label the closing print with a bar starting one minute before nominal
// close. The open checkpoint reads the session's first bar open; all other
// checkpoints read the selected bar's close.
func SelectPrice(bars []contracts.MinuteBar, target time.Time, cp contracts.Checkpoint) (float64, error) {
	bar, err := SelectBar(bars, target, cp)
	if err != nil {
		return 0, err
	}
	if cp == contracts.CheckpointOpen {
		return bars[0].Open, nil
	}
	return bar.Close, nil
}

// SelectBar applies the selection policy and returns the chosen bar.
func SelectBar(bars []contracts.MinuteBar, target time.Time, cp contracts.Checkpoint) (*contracts.MinuteBar, error) {
	if len(bars) == 0 {
		return nil, ErrBarUnavailable
	}

	if cp == contracts.CheckpointClose {
		return lastAtOrBefore(bars, target)
	}

	// Exact match.
	for i := range bars {
		if bars[i].Timestamp.Equal(target) {
			return &bars[i], nil
		}
	}

	// Next-minute tolerance.
	next := target.Add(time.Minute)
	for i := range bars {
		if bars[i].Timestamp.Equal(next) {
			return &bars[i], nil
		}
	}

	return lastAtOrBefore(bars, target)
}

func lastAtOrBefore(bars []contracts.MinuteBar, target time.Time) (*contracts.MinuteBar, error) {
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Timestamp.After(target) {
			return &bars[i], nil
		}
	}
	return nil, ErrBarUnavailable
}
