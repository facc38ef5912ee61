package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/pkg/httputil"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// ModelClient calls the external prediction model over HTTP. Any failure
// mode (timeout, refusal, malformed payload, incomplete checkpoint set)
// surfaces as an error so the caller can fall back to the baseline; a raw
// parse failure never reaches the end caller.
type ModelClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
}

// NewModelClient creates a prediction model client.
func NewModelClient(httpClient *httputil.Client, log *logger.Logger, baseURL, apiKey, model string, timeout time.Duration) *ModelClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &ModelClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
	}
}

type modelRequest struct {
	Model   string        `json:"model"`
	Context *ModelContext `json:"context"`
}

type modelResponse struct {
	Checkpoints []struct {
		Checkpoint string  `json:"checkpoint"`
		Price      float64 `json:"price"`
		Confidence float64 `json:"confidence"`
		Rationale  string  `json:"rationale"`
		Low        float64 `json:"low"`
		High       float64 `json:"high"`
	} `json:"checkpoints"`
	Analysis  string            `json:"analysis"`
	Sentiment *SentimentContext `json:"sentiment"`
	Refusal   string            `json:"refusal"`
}

// Predict requests one forecast from the model.
func (c *ModelClient) Predict(ctx context.Context, mc *ModelContext) (*Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + "/v1/forecast"
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	resp, err := c.httpClient.PostJSON(ctx, url, &modelRequest{Model: c.model, Context: mc}, headers)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read model response: %w", err)
	}

	var parsed modelResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed model response: %w", err)
	}
	if parsed.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", parsed.Refusal)
	}
	if len(parsed.Checkpoints) == 0 {
		return nil, fmt.Errorf("model returned no checkpoints")
	}

	forecast := &Forecast{
		Date:     mc.Date,
		Analysis: parsed.Analysis,
		Source:   SourceModel,
	}
	for _, raw := range parsed.Checkpoints {
		cp, err := contracts.ParseCheckpoint(raw.Checkpoint)
		if err != nil {
			return nil, fmt.Errorf("model returned %w", err)
		}
		if raw.Price <= 0 {
			return nil, fmt.Errorf("model returned non-positive price for %s", cp)
		}
		forecast.Checkpoints = append(forecast.Checkpoints, CheckpointForecast{
			Checkpoint: cp,
			Price:      raw.Price,
			Confidence: raw.Confidence,
			Rationale:  raw.Rationale,
			Low:        raw.Low,
			High:       raw.High,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"date":        mc.Date.Format(contracts.DateFormat),
		"checkpoints": len(forecast.Checkpoints),
	}).Debug("Model forecast received")
	return forecast, nil
}
