package contracts

import "fmt"

// Checkpoint identifies one of the fixed intraday instants tracked per day.
type Checkpoint string

const (
	CheckpointPreMarket Checkpoint = "preMarket"
	CheckpointOpen      Checkpoint = "open"
	CheckpointNoon      Checkpoint = "noon"
	CheckpointTwoPM     Checkpoint = "twoPM"
	CheckpointClose     Checkpoint = "close"
)

// AllCheckpoints is the canonical output order used everywhere checkpoints
// are listed or iterated.
var AllCheckpoints = []Checkpoint{
	CheckpointPreMarket,
	CheckpointOpen,
	CheckpointNoon,
	CheckpointTwoPM,
	CheckpointClose,
}

// IntradayCheckpoints are the checkpoints resolved against the minute-bar
// series (preMarket has no historical instant).
var IntradayCheckpoints = []Checkpoint{
	CheckpointOpen,
	CheckpointNoon,
	CheckpointTwoPM,
	CheckpointClose,
}

// ParseCheckpoint converts a string into a Checkpoint, rejecting anything
// outside the closed enumeration.
func ParseCheckpoint(s string) (Checkpoint, error) {
	cp := Checkpoint(s)
	if !cp.Valid() {
		return "", fmt.Errorf("unknown checkpoint: %q", s)
	}
	return cp, nil
}

// Valid reports whether cp is a member of the closed enumeration.
func (cp Checkpoint) Valid() bool {
	switch cp {
	case CheckpointPreMarket, CheckpointOpen, CheckpointNoon, CheckpointTwoPM, CheckpointClose:
		return true
	}
	return false
}

func (cp Checkpoint) String() string {
	return string(cp)
}
