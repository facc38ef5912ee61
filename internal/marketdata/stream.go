package marketdata

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/pkg/logger"
	"github.com/tradekit/bandtrack/pkg/redis"
)

const (
	streamReconnectInitialDelay = 1 * time.Second
	streamReconnectMaxDelay     = 30 * time.Second
	streamReadTimeout           = 90 * time.Second
)

// Stream subscribes to a websocket tick feed and keeps the last-quote cache
// warm while the daemon runs. Entirely optional: the Provider works without
// it, the stream just saves a chart API round trip per quote read.
type Stream struct {
	url      string
	symbol   string
	cache    *redis.Cache
	quoteTTL time.Duration
	logger   *logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewStream creates a websocket quote subscriber.
func NewStream(url, symbol string, cache *redis.Cache, quoteTTL time.Duration, log *logger.Logger) *Stream {
	return &Stream{
		url:      url,
		symbol:   symbol,
		cache:    cache,
		quoteTTL: quoteTTL,
		logger:   log,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the connect/read loop in the background.
func (s *Stream) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.WithField("url", s.url).Info("Quote stream started")
}

// Stop shuts the stream down and waits for the loop to exit.
func (s *Stream) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// run reconnects with capped exponential backoff until stopped.
func (s *Stream) run(ctx context.Context) {
	defer s.wg.Done()

	delay := streamReconnectInitialDelay
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connectAndRead(ctx); err != nil {
			s.logger.WithError(err).Warn("Quote stream disconnected")
		}

		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > streamReconnectMaxDelay {
			delay = streamReconnectMaxDelay
		}
	}
}

// tickMessage is one streamed trade print.
type tickMessage struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
	Time  int64   `json:"time"`
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string][]string{"subscribe": {s.symbol}}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	s.logger.WithField("symbol", s.symbol).Debug("Quote stream subscribed")

	// Close the connection when asked to stop so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.stopCh:
			conn.Close()
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var tick tickMessage
		if err := json.Unmarshal(data, &tick); err != nil {
			continue // heartbeats and acks are not ticks
		}
		if tick.Price <= 0 || (tick.ID != "" && tick.ID != s.symbol) {
			continue
		}

		ts := time.Now().UTC()
		if tick.Time > 0 {
			ts = time.UnixMilli(tick.Time).UTC()
		}
		quote := contracts.Quote{Price: tick.Price, Timestamp: ts, Source: "stream"}
		if err := s.cache.Set(ctx, redis.QuoteKey(s.symbol), &quote, s.quoteTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache streamed quote")
		}
	}
}
