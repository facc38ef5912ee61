package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// ErrNoData signals that the upstream feed returned nothing usable for the
// request. Empty or partial results are normal for this source, not
// exceptional: callers skip and continue.
var ErrNoData = errors.New("no market data available")

// Source is the market data read interface. Implementations are unreliable
// by contract; every operation may return ErrNoData.
type Source interface {
	// DailyOHLC returns the official daily candle for a date.
	DailyOHLC(ctx context.Context, date time.Time) (*contracts.DailyOHLC, error)

	// DailyHistory returns daily candles in [from, to], ascending by date.
	DailyHistory(ctx context.Context, from, to time.Time) ([]*contracts.DailyOHLC, error)

	// MinuteBars returns the ascending minute series for a date.
	MinuteBars(ctx context.Context, date time.Time) ([]contracts.MinuteBar, error)

	// LastQuote returns the most recent known price.
	LastQuote(ctx context.Context) (*contracts.Quote, error)
}
