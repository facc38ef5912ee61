package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradekit/bandtrack/internal/capture"
	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/internal/simulation"
	"github.com/tradekit/bandtrack/pkg/config"
	"github.com/tradekit/bandtrack/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "json"})
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	date, err := time.Parse(contracts.DateFormat, value)
	require.NoError(t, err)
	return date
}

// --- stubs ---

type stubAggregates struct {
	byDate map[string]*contracts.DailyAggregate
	listed []*contracts.DailyAggregate
}

func (s *stubAggregates) GetByDate(ctx context.Context, date time.Time) (*contracts.DailyAggregate, error) {
	return s.byDate[date.Format(contracts.DateFormat)], nil
}

func (s *stubAggregates) GetOrCreate(ctx context.Context, date time.Time) (*contracts.DailyAggregate, error) {
	if agg := s.byDate[date.Format(contracts.DateFormat)]; agg != nil {
		return agg, nil
	}
	return &contracts.DailyAggregate{Date: date}, nil
}

func (s *stubAggregates) SetCheckpoint(ctx context.Context, date time.Time, cp contracts.Checkpoint, price float64) error {
	if agg := s.byDate[date.Format(contracts.DateFormat)]; agg != nil {
		agg.SetCheckpointPrice(cp, price)
	}
	return nil
}

func (s *stubAggregates) LockBand(ctx context.Context, date time.Time, low, high float64, source string) error {
	agg := s.byDate[date.Format(contracts.DateFormat)]
	if agg == nil || agg.BandLocked {
		return contracts.ErrBandLocked
	}
	agg.PredLow, agg.PredHigh = &low, &high
	agg.BandLocked = true
	agg.BandSource = source
	return nil
}

func (s *stubAggregates) ListRange(ctx context.Context, from, to time.Time) ([]*contracts.DailyAggregate, error) {
	return s.listed, nil
}

type stubEngine struct {
	captureResult *capture.Result
	captureErr    error
	refreshed     bool
	summary       *capture.BackfillSummary
}

func (s *stubEngine) Capture(ctx context.Context, date time.Time, cp contracts.Checkpoint, force bool) (*capture.Result, error) {
	return s.captureResult, s.captureErr
}

func (s *stubEngine) BackfillRange(ctx context.Context, from, to time.Time, force bool) (*capture.BackfillSummary, error) {
	return s.summary, nil
}

func (s *stubEngine) RefreshToday(ctx context.Context) ([]capture.Result, error) {
	s.refreshed = true
	return nil, nil
}

type stubService struct {
	records    []*contracts.PredictionRecord
	createErr  error
	publishErr error
	published  *contracts.DailyAggregate
	gotSource  string
	updated    int
}

func (s *stubService) GetCanonical(ctx context.Context, date time.Time) ([]*contracts.PredictionRecord, error) {
	return s.records, nil
}

func (s *stubService) CreateOrGet(ctx context.Context, date time.Time, force bool) ([]*contracts.PredictionRecord, error) {
	return s.records, s.createErr
}

func (s *stubService) PublishBand(ctx context.Context, date time.Time, low, high float64, source string) (*contracts.DailyAggregate, error) {
	s.gotSource = source
	return s.published, s.publishErr
}

func (s *stubService) BackfillActuals(ctx context.Context, date time.Time) (int, error) {
	return s.updated, nil
}

type stubSimulator struct {
	report *simulation.Report
	err    error
}

func (s *stubSimulator) Run(ctx context.Context, from, to time.Time, persist bool) (*simulation.Report, error) {
	return s.report, s.err
}

func doRequest(handler http.HandlerFunc, method, target string, vars map[string]string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}

	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// --- day handler ---

func TestGetDay(t *testing.T) {
	date := mustDate(t, "2025-08-15")
	closePrice := 584.5

	aggs := &stubAggregates{byDate: map[string]*contracts.DailyAggregate{
		"2025-08-15": {Date: date, Close: &closePrice},
	}}
	engine := &stubEngine{}
	h := NewDayHandler(aggs, engine, time.UTC, testLogger())

	t.Run("found", func(t *testing.T) {
		rec := doRequest(h.GetDay, "GET", "/api/days/2025-08-15", map[string]string{"date": "2025-08-15"}, nil)

		assert.Equal(t, http.StatusOK, rec.Code)

		var got contracts.DailyAggregate
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.NotNil(t, got.Close)
		assert.Equal(t, closePrice, *got.Close)
	})

	t.Run("missing date returns 404", func(t *testing.T) {
		rec := doRequest(h.GetDay, "GET", "/api/days/2025-08-14", map[string]string{"date": "2025-08-14"}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid date returns 400", func(t *testing.T) {
		rec := doRequest(h.GetDay, "GET", "/api/days/nope", map[string]string{"date": "nope"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("past date does not trigger refresh", func(t *testing.T) {
		engine.refreshed = false
		doRequest(h.GetDay, "GET", "/api/days/2025-08-15", map[string]string{"date": "2025-08-15"}, nil)
		assert.False(t, engine.refreshed)
	})

	t.Run("today triggers lazy refresh", func(t *testing.T) {
		today := time.Now().UTC().Format(contracts.DateFormat)
		engine.refreshed = false
		doRequest(h.GetDay, "GET", "/api/days/"+today, map[string]string{"date": today}, nil)
		assert.True(t, engine.refreshed)
	})
}

func TestCaptureEndpoint(t *testing.T) {
	h := NewDayHandler(&stubAggregates{}, &stubEngine{
		captureResult: &capture.Result{Checkpoint: contracts.CheckpointClose, Status: capture.StatusCaptured, Price: 584.5},
	}, time.UTC, testLogger())

	t.Run("success", func(t *testing.T) {
		rec := doRequest(h.Capture, "POST", "/api/capture", nil, CaptureRequest{
			Date: "2025-08-15", Checkpoint: "close",
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		var got capture.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, capture.StatusCaptured, got.Status)
		assert.Equal(t, 584.5, got.Price)
	})

	t.Run("unknown checkpoint returns 400", func(t *testing.T) {
		rec := doRequest(h.Capture, "POST", "/api/capture", nil, CaptureRequest{
			Date: "2025-08-15", Checkpoint: "midnight",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("capture failure returns 500", func(t *testing.T) {
		failing := NewDayHandler(&stubAggregates{}, &stubEngine{captureErr: fmt.Errorf("feed down")}, time.UTC, testLogger())
		rec := doRequest(failing.Capture, "POST", "/api/capture", nil, CaptureRequest{
			Date: "2025-08-15", Checkpoint: "close",
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestBackfillEndpoint(t *testing.T) {
	h := NewDayHandler(&stubAggregates{}, &stubEngine{
		summary: &capture.BackfillSummary{Days: 5, Captured: 20},
	}, time.UTC, testLogger())

	t.Run("success", func(t *testing.T) {
		rec := doRequest(h.Backfill, "POST", "/api/backfill", nil, BackfillRequest{
			From: "2025-08-11", To: "2025-08-15",
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		var got capture.BackfillSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 5, got.Days)
		assert.Equal(t, 20, got.Captured)
	})

	t.Run("inverted range returns 400", func(t *testing.T) {
		rec := doRequest(h.Backfill, "POST", "/api/backfill", nil, BackfillRequest{
			From: "2025-08-15", To: "2025-08-11",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// --- prediction handler ---

func TestGenerate(t *testing.T) {
	date := mustDate(t, "2025-08-15")

	t.Run("success", func(t *testing.T) {
		svc := &stubService{records: []*contracts.PredictionRecord{
			{Date: date, Checkpoint: contracts.CheckpointOpen, Price: 582, Confidence: 0.7, Source: "baseline"},
		}}
		h := NewPredictionHandler(svc, testLogger())

		rec := doRequest(h.Generate, "POST", "/api/predictions/2025-08-15", map[string]string{"date": "2025-08-15"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("no anchor returns 422", func(t *testing.T) {
		svc := &stubService{createErr: contracts.ErrCannotPredict}
		h := NewPredictionHandler(svc, testLogger())

		rec := doRequest(h.Generate, "POST", "/api/predictions/2025-08-15", map[string]string{"date": "2025-08-15"}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestPublishBandEndpoint(t *testing.T) {
	date := mustDate(t, "2025-08-15")

	t.Run("success defaults source to manual", func(t *testing.T) {
		svc := &stubService{published: &contracts.DailyAggregate{Date: date, BandLocked: true}}
		h := NewPredictionHandler(svc, testLogger())

		rec := doRequest(h.PublishBand, "POST", "/api/days/2025-08-15/band", map[string]string{"date": "2025-08-15"}, BandRequest{
			Low: 580, High: 585,
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "manual", svc.gotSource)
	})

	t.Run("locked band returns 409", func(t *testing.T) {
		svc := &stubService{publishErr: fmt.Errorf("band: %w", contracts.ErrBandLocked)}
		h := NewPredictionHandler(svc, testLogger())

		rec := doRequest(h.PublishBand, "POST", "/api/days/2025-08-15/band", map[string]string{"date": "2025-08-15"}, BandRequest{
			Low: 580, High: 585, Source: "model",
		})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid range returns 400", func(t *testing.T) {
		svc := &stubService{publishErr: fmt.Errorf("band low 585.00 above high 580.00")}
		h := NewPredictionHandler(svc, testLogger())

		rec := doRequest(h.PublishBand, "POST", "/api/days/2025-08-15/band", map[string]string{"date": "2025-08-15"}, BandRequest{
			Low: 585, High: 580,
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// --- simulation handler ---

func TestSimulateEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sim := &stubSimulator{report: &simulation.Report{Days: 5, Grade: "B"}}
		h := NewSimulationHandler(sim, testLogger())

		rec := doRequest(h.Simulate, "POST", "/api/simulate", nil, SimulateRequest{
			From: "2025-07-01", To: "2025-07-31",
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		var got simulation.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 5, got.Days)
		assert.Equal(t, "B", got.Grade)
	})

	t.Run("run error returns 400", func(t *testing.T) {
		sim := &stubSimulator{err: fmt.Errorf("range must end before today")}
		h := NewSimulationHandler(sim, testLogger())

		rec := doRequest(h.Simulate, "POST", "/api/simulate", nil, SimulateRequest{
			From: "2025-07-01", To: "2025-12-31",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad dates return 400", func(t *testing.T) {
		h := NewSimulationHandler(&stubSimulator{}, testLogger())

		rec := doRequest(h.Simulate, "POST", "/api/simulate", nil, SimulateRequest{
			From: "yesterday", To: "2025-07-31",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// --- scheduler handler ---

func TestSchedulerStatusWithoutScheduler(t *testing.T) {
	h := NewSchedulerHandler(nil, testLogger())

	rec := doRequest(h.Status, "GET", "/api/scheduler/status", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(h.Trigger, "POST", "/api/scheduler/trigger?job=capture_close", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
