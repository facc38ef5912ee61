package simulation

import (
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// Confidence buckets for per-bucket accuracy stats.
const (
	BucketHigh   = "high"   // >= 0.7
	BucketMedium = "medium" // >= 0.5
	BucketLow    = "low"
)

// Letter grade thresholds on overall mean absolute error.
var gradeThresholds = []struct {
	maxMAE float64
	grade  string
}{
	{1.0, "A"},
	{1.5, "B"},
	{2.0, "C"},
	{3.0, "D"},
}

// CheckpointOutcome compares one simulated prediction to the recorded
// actual.
type CheckpointOutcome struct {
	Checkpoint contracts.Checkpoint `json:"checkpoint"`
	Predicted  float64              `json:"predicted"`
	Actual     float64              `json:"actual"`
	AbsError   float64              `json:"abs_error"`
	Hit        bool                 `json:"hit"`
	Confidence float64              `json:"confidence"`
}

// DayResult is one simulated trading date.
type DayResult struct {
	Date     time.Time           `json:"date"`
	Outcomes []CheckpointOutcome `json:"outcomes"`
	MAE      float64             `json:"mae"`
}

// BucketStats accumulates error and hit-rate figures for one grouping.
type BucketStats struct {
	Count   int     `json:"count"`
	MAE     float64 `json:"mae"`
	HitRate float64 `json:"hit_rate"`

	sumAbsError float64
	hits        int
}

func (b *BucketStats) add(o CheckpointOutcome) {
	b.Count++
	b.sumAbsError += o.AbsError
	if o.Hit {
		b.hits++
	}
}

func (b *BucketStats) finalize() {
	if b.Count == 0 {
		return
	}
	b.MAE = b.sumAbsError / float64(b.Count)
	b.HitRate = float64(b.hits) / float64(b.Count)
}

// Report is the aggregated result of a simulation run.
type Report struct {
	From          time.Time                             `json:"from"`
	To            time.Time                             `json:"to"`
	Days          int                                   `json:"days"`
	SkippedDates  []string                              `json:"skipped_dates,omitempty"`
	PerCheckpoint map[contracts.Checkpoint]*BucketStats `json:"per_checkpoint"`
	PerConfidence map[string]*BucketStats               `json:"per_confidence"`
	OverallMAE    float64                               `json:"overall_mae"`
	HitRate       float64                               `json:"hit_rate"`
	BestDay       *DayResult                            `json:"best_day,omitempty"`
	WorstDay      *DayResult                            `json:"worst_day,omitempty"`
	Grade         string                                `json:"grade"`
	DayResults    []*DayResult                          `json:"day_results,omitempty"`
}

func newReport(from, to time.Time) *Report {
	return &Report{
		From:          from,
		To:            to,
		PerCheckpoint: make(map[contracts.Checkpoint]*BucketStats),
		PerConfidence: make(map[string]*BucketStats),
	}
}

func (r *Report) record(day *DayResult) {
	r.Days++
	r.DayResults = append(r.DayResults, day)

	for _, o := range day.Outcomes {
		cpStats := r.PerCheckpoint[o.Checkpoint]
		if cpStats == nil {
			cpStats = &BucketStats{}
			r.PerCheckpoint[o.Checkpoint] = cpStats
		}
		cpStats.add(o)

		bucket := confidenceBucket(o.Confidence)
		confStats := r.PerConfidence[bucket]
		if confStats == nil {
			confStats = &BucketStats{}
			r.PerConfidence[bucket] = confStats
		}
		confStats.add(o)
	}

	if r.BestDay == nil || day.MAE < r.BestDay.MAE {
		r.BestDay = day
	}
	if r.WorstDay == nil || day.MAE > r.WorstDay.MAE {
		r.WorstDay = day
	}
}

func (r *Report) finalize() {
	total := &BucketStats{}
	for _, stats := range r.PerCheckpoint {
		total.sumAbsError += stats.sumAbsError
		total.hits += stats.hits
		total.Count += stats.Count
		stats.finalize()
	}
	for _, stats := range r.PerConfidence {
		stats.finalize()
	}
	total.finalize()
	r.OverallMAE = total.MAE
	r.HitRate = total.HitRate
	r.Grade = gradeFor(r.OverallMAE, total.Count)
}

func confidenceBucket(confidence float64) string {
	switch {
	case confidence >= 0.7:
		return BucketHigh
	case confidence >= 0.5:
		return BucketMedium
	default:
		return BucketLow
	}
}

func gradeFor(mae float64, count int) string {
	if count == 0 {
		return "F"
	}
	for _, t := range gradeThresholds {
		if mae <= t.maxMAE {
			return t.grade
		}
	}
	return "F"
}
