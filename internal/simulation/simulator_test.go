package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/internal/marketdata"
	"github.com/tradekit/bandtrack/internal/prediction"
)

// --- fakes ---

type historyCall struct {
	from, to time.Time
}

type fakeSource struct {
	history []*contracts.DailyOHLC
	calls   []historyCall
}

func (f *fakeSource) DailyOHLC(_ context.Context, date time.Time) (*contracts.DailyOHLC, error) {
	for _, c := range f.history {
		if c.Date.Equal(date) {
			return c, nil
		}
	}
	return nil, marketdata.ErrNoData
}

func (f *fakeSource) DailyHistory(_ context.Context, from, to time.Time) ([]*contracts.DailyOHLC, error) {
	f.calls = append(f.calls, historyCall{from: from, to: to})
	var out []*contracts.DailyOHLC
	for _, c := range f.history {
		if !c.Date.Before(from) && !c.Date.After(to) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, marketdata.ErrNoData
	}
	return out, nil
}

func (f *fakeSource) MinuteBars(_ context.Context, _ time.Time) ([]contracts.MinuteBar, error) {
	return nil, marketdata.ErrNoData
}

func (f *fakeSource) LastQuote(_ context.Context) (*contracts.Quote, error) {
	return nil, marketdata.ErrNoData
}

type fakePredictionRepo struct {
	rows   []*contracts.PredictionRecord
	nextID int64
}

func (f *fakePredictionRepo) ListByDateNewestFirst(_ context.Context, date time.Time) ([]*contracts.PredictionRecord, error) {
	var out []*contracts.PredictionRecord
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].Date.Equal(date) {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakePredictionRepo) InsertBatch(_ context.Context, _ time.Time, records []*contracts.PredictionRecord, _ bool) error {
	for _, rec := range records {
		f.nextID++
		rec.ID = f.nextID
		f.rows = append(f.rows, rec)
	}
	return nil
}

func (f *fakePredictionRepo) UpdateActual(_ context.Context, id int64, actualPrice, absError float64) error {
	for _, r := range f.rows {
		if r.ID == id {
			a, e := actualPrice, absError
			r.ActualPrice, r.AbsError = &a, &e
			return nil
		}
	}
	return assert.AnError
}

func (f *fakePredictionRepo) DeleteByDateAndSource(_ context.Context, date time.Time, source string) (int64, error) {
	var kept []*contracts.PredictionRecord
	var deleted int64
	for _, r := range f.rows {
		if r.Date.Equal(date) && r.Source == source {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return deleted, nil
}

// --- fixtures ---

func historyFixture(end time.Time, days int) []*contracts.DailyOHLC {
	var out []*contracts.DailyOHLC
	price := 570.0
	for d := end.AddDate(0, 0, -days); !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		price += 0.4
		out = append(out, &contracts.DailyOHLC{
			Date: d, Open: price - 1, High: price + 2, Low: price - 2, Close: price, Volume: 1000,
		})
	}
	return out
}

func newTestSimulator(source *fakeSource, repo contracts.PredictionRepository) *Simulator {
	predictor := prediction.NewPredictor(nil, prediction.NewBaseline(),
		prediction.NewContextBuilder(source, 5), zerolog.Nop())
	sim := NewSimulator(predictor, source, repo, zerolog.Nop())
	sim.now = func() time.Time { return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) }
	return sim
}

// --- tests ---

func TestSimulatorRun(t *testing.T) {
	to := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	from := time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{history: historyFixture(to, 70)}
	sim := newTestSimulator(source, nil)

	report, err := sim.Run(context.Background(), from, to, false)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Days, "one trading week")
	assert.Empty(t, report.SkippedDates)
	assert.NotEmpty(t, report.Grade)
	assert.Greater(t, report.OverallMAE, 0.0)

	require.NotNil(t, report.BestDay)
	require.NotNil(t, report.WorstDay)
	assert.LessOrEqual(t, report.BestDay.MAE, report.WorstDay.MAE)

	for _, cp := range contracts.IntradayCheckpoints {
		stats, ok := report.PerCheckpoint[cp]
		require.True(t, ok, "stats missing for %s", cp)
		assert.Equal(t, 5, stats.Count)
		assert.GreaterOrEqual(t, stats.HitRate, 0.0)
		assert.LessOrEqual(t, stats.HitRate, 1.0)
	}
}

func TestSimulatorContextStaysStrictlyPast(t *testing.T) {
	day := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{history: historyFixture(day.AddDate(0, 0, 5), 70)}
	sim := newTestSimulator(source, nil)

	_, err := sim.Run(context.Background(), day, day, false)
	require.NoError(t, err)

	require.NotEmpty(t, source.calls)
	for _, call := range source.calls {
		assert.True(t, call.to.Before(day),
			"history query upper bound %s must be strictly before simulated date %s",
			call.to.Format(contracts.DateFormat), day.Format(contracts.DateFormat))
	}
}

func TestSimulatorSkipsBadDates(t *testing.T) {
	// Data ends on 8/13: 8/14 and 8/15 have no actuals and get skipped.
	to := time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{history: historyFixture(to, 70)}
	sim := newTestSimulator(source, nil)

	report, err := sim.Run(context.Background(),
		time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Days)
	assert.Equal(t, []string{"2025-08-14", "2025-08-15"}, report.SkippedDates)
}

func TestSimulatorPersist(t *testing.T) {
	day := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{history: historyFixture(day, 70)}
	repo := &fakePredictionRepo{}
	sim := newTestSimulator(source, repo)

	_, err := sim.Run(context.Background(), day, day, true)
	require.NoError(t, err)

	require.Len(t, repo.rows, 4)
	for _, rec := range repo.rows {
		assert.Equal(t, prediction.SourceSimulation, rec.Source)
		require.NotNil(t, rec.ActualPrice, "persisted simulated rows carry actuals")
		require.NotNil(t, rec.AbsError)
	}

	// Rerunning replaces the previous run's rows instead of stacking them.
	_, err = sim.Run(context.Background(), day, day, true)
	require.NoError(t, err)
	assert.Len(t, repo.rows, 4)
}

func TestSimulatorRejectsOpenEndedRange(t *testing.T) {
	sim := newTestSimulator(&fakeSource{}, nil)

	_, err := sim.Run(context.Background(),
		time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), false)
	assert.Error(t, err, "range must end before today")
}

func TestConfidenceBucket(t *testing.T) {
	assert.Equal(t, BucketHigh, confidenceBucket(0.7))
	assert.Equal(t, BucketHigh, confidenceBucket(0.95))
	assert.Equal(t, BucketMedium, confidenceBucket(0.5))
	assert.Equal(t, BucketMedium, confidenceBucket(0.69))
	assert.Equal(t, BucketLow, confidenceBucket(0.49))
	assert.Equal(t, BucketLow, confidenceBucket(0))
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		mae   float64
		count int
		want  string
	}{
		{0.5, 10, "A"},
		{1.0, 10, "A"},
		{1.2, 10, "B"},
		{1.8, 10, "C"},
		{2.5, 10, "D"},
		{3.5, 10, "F"},
		{0, 0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gradeFor(tt.mae, tt.count), "mae=%v", tt.mae)
	}
}
