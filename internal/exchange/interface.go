package exchange

import (
	"context"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// Gateway abstracts the exchange for the risk engine. Implementations must be
// safe for concurrent use by one goroutine per instrument.
type Gateway interface {
	Name() string

	// Market data
	GetCandles(ctx context.Context, symbol string, interval KlineInterval, limit int) ([]types.OHLCV, error)

	// Trading; SubmitOrder returns the exchange order id. Executions arrive on Fills.
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	Fills() <-chan Fill

	// Account and instrument state
	LotSize(ctx context.Context, symbol string) (LotSize, error)
	Position(ctx context.Context, symbol string) (ExternalPosition, error)
	Equity(ctx context.Context) (float64, error)

	Close() error
}
