package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// ErrNoHistoricalInstant signals a checkpoint that has no fixed wall-clock
// target. preMarket resolves to the current quote, never a bar lookup.
var ErrNoHistoricalInstant = errors.New("checkpoint has no historical instant")

// Wall-clock targets in the exchange's local time.
var wallClockTargets = map[contracts.Checkpoint]struct{ hour, min int }{
	contracts.CheckpointOpen:  {9, 30},
	contracts.CheckpointNoon:  {12, 0},
	contracts.CheckpointTwoPM: {14, 0},
	contracts.CheckpointClose: {16, 0},
}

// Resolver maps (date, checkpoint) to the canonical absolute instant in the
// exchange's time zone. The DST offset comes from the date itself, not from
// the time of the call.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a resolver for an IANA exchange time zone.
func NewResolver(timezone string) (*Resolver, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange timezone %q: %w", timezone, err)
	}
	return &Resolver{loc: loc}, nil
}

// Resolve returns the absolute instant of a checkpoint on the given date.
// Returns ErrNoHistoricalInstant for preMarket.
func (r *Resolver) Resolve(date time.Time, cp contracts.Checkpoint) (time.Time, error) {
	if cp == contracts.CheckpointPreMarket {
		return time.Time{}, ErrNoHistoricalInstant
	}

	target, ok := wallClockTargets[cp]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown checkpoint: %q", cp)
	}

	// time.Date applies the zone offset in effect on that date, so a
	// January lookup and a July lookup land on different UTC instants.
	return time.Date(date.Year(), date.Month(), date.Day(), target.hour, target.min, 0, 0, r.loc), nil
}

// Location exposes the exchange time zone for callers that need to render
// local session times.
func (r *Resolver) Location() *time.Location {
	return r.loc
}
