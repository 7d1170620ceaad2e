package adapters

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// orderAPI is the part of the Bybit client the gateway drives
type orderAPI interface {
	GetKlines(ctx context.Context, params bybit.KlineParams) ([]types.OHLCV, error)
	PlaceOrder(ctx context.Context, params bybit.PlaceOrderParams) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetOrder(ctx context.Context, symbol, orderID string) (bybit.Order, error)
	GetPosition(ctx context.Context, symbol string) (bybit.Position, error)
	GetEquity(ctx context.Context, accountType bybit.AccountType) (float64, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

type lotSource interface {
	Get(ctx context.Context, symbol string) (bybit.InstrumentInfo, error)
}

type trackedOrder struct {
	symbol   string
	side     exchange.OrderSide
	clientID string
}

// BybitGateway implements exchange.Gateway over the Bybit v5 API. Market
// orders complete quickly, so fills are discovered by polling tracked orders.
type BybitGateway struct {
	api         orderAPI
	lots        lotSource
	config      *exchange.BybitConfig
	log         *logger.Logger
	environment string

	fills        chan exchange.Fill
	pollInterval time.Duration
	now          func() time.Time

	mu       sync.Mutex
	tracked  map[string]trackedOrder
	leverage map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewBybitGateway creates a gateway and starts its fill poller
func NewBybitGateway(config *exchange.BybitConfig, log *logger.Logger) (*BybitGateway, error) {
	if config == nil {
		return nil, exchange.ErrAuthenticationFailed.WithDetails("bybit configuration is required")
	}
	client := bybit.NewClient(bybit.Config{
		APIKey:            config.APIKey,
		APISecret:         config.APISecret,
		Testnet:           config.Testnet,
		Demo:              config.Demo,
		RequestsPerSecond: config.RequestsPerSecond,
	})
	g := newBybitGateway(client, client.Instruments(), config, log)
	g.environment = client.GetEnvironment()
	g.start()
	return g, nil
}

func newBybitGateway(api orderAPI, lots lotSource, config *exchange.BybitConfig, log *logger.Logger) *BybitGateway {
	if log == nil {
		log = logger.NewNop()
	}
	poll := 2 * time.Second
	if config.FillPollSeconds > 0 {
		poll = time.Duration(config.FillPollSeconds) * time.Second
	}
	return &BybitGateway{
		api:          api,
		lots:         lots,
		config:       config,
		log:          log.With(zap.String("gateway", "bybit")),
		fills:        make(chan exchange.Fill, 256),
		pollInterval: poll,
		now:          time.Now,
		tracked:      make(map[string]trackedOrder),
		leverage:     make(map[string]bool),
	}
}

func (g *BybitGateway) start() {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(g.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.pollFills(ctx)
			}
		}
	}()
}

// Name returns the gateway name with its environment
func (g *BybitGateway) Name() string {
	if g.environment == "" {
		return "bybit"
	}
	return "bybit-" + g.environment
}

// GetCandles returns closed candles in ascending order. The still-forming
// candle Bybit includes at the head of the list is dropped.
func (g *BybitGateway) GetCandles(ctx context.Context, symbol string, interval exchange.KlineInterval, limit int) ([]types.OHLCV, error) {
	step, err := interval.Duration()
	if err != nil {
		return nil, err
	}
	candles, err := g.api.GetKlines(ctx, bybit.KlineParams{
		Symbol:   symbol,
		Interval: string(interval),
		Limit:    limit + 1,
	})
	if err != nil {
		return nil, convertError(err)
	}
	if n := len(candles); n > 0 && candles[n-1].Timestamp.Add(step).After(g.now()) {
		candles = candles[:n-1]
	}
	if len(candles) == 0 {
		return nil, exchange.ErrNoData.WithDetails("%s %s", symbol, interval)
	}
	if len(candles) > limit && limit > 0 {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// SubmitOrder places a market order and tracks it until a final status
func (g *BybitGateway) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (string, error) {
	if req.Size <= 0 {
		return "", exchange.ErrOrderSizeTooSmall.WithDetails("size %.8f", req.Size)
	}
	if g.config.Leverage > 0 && !req.ReduceOnly {
		if err := g.ensureLeverage(ctx, req.Symbol); err != nil {
			return "", err
		}
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	orderID, err := g.api.PlaceOrder(ctx, bybit.PlaceOrderParams{
		Symbol:      req.Symbol,
		Side:        string(req.Side),
		Qty:         strconv.FormatFloat(req.Size, 'f', -1, 64),
		OrderLinkID: clientID,
		ReduceOnly:  req.ReduceOnly,
	})
	if err != nil {
		return "", convertError(err)
	}

	g.mu.Lock()
	g.tracked[orderID] = trackedOrder{symbol: req.Symbol, side: req.Side, clientID: clientID}
	g.mu.Unlock()

	g.log.Trade("order placed %s %s %s qty=%.8f reduce_only=%t", orderID, req.Symbol, req.Side, req.Size, req.ReduceOnly)
	return orderID, nil
}

func (g *BybitGateway) ensureLeverage(ctx context.Context, symbol string) error {
	g.mu.Lock()
	done := g.leverage[symbol]
	g.mu.Unlock()
	if done {
		return nil
	}
	if err := g.api.SetLeverage(ctx, symbol, g.config.Leverage); err != nil {
		return convertError(err)
	}
	g.mu.Lock()
	g.leverage[symbol] = true
	g.mu.Unlock()
	return nil
}

// CancelOrder cancels a tracked order. The poller reports the final status.
func (g *BybitGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return convertError(g.api.CancelOrder(ctx, symbol, orderID))
}

// Fills returns the execution report channel
func (g *BybitGateway) Fills() <-chan exchange.Fill {
	return g.fills
}

// pollFills queries every tracked order and reports the ones that became final
func (g *BybitGateway) pollFills(ctx context.Context) {
	g.mu.Lock()
	pending := make(map[string]trackedOrder, len(g.tracked))
	for id, t := range g.tracked {
		pending[id] = t
	}
	g.mu.Unlock()

	for orderID, t := range pending {
		order, err := g.api.GetOrder(ctx, t.symbol, orderID)
		if err != nil {
			if bybit.IsOrderNotFoundError(err) {
				continue
			}
			g.log.LogWarning("fill poll", "order %s: %v", orderID, err)
			continue
		}
		if !order.Final() {
			continue
		}

		fill := exchange.Fill{
			OrderID:   orderID,
			ClientID:  t.clientID,
			Symbol:    t.symbol,
			Side:      t.side,
			Price:     order.AvgPrice,
			Size:      order.CumExecQty,
			Fee:       order.CumExecFee,
			Status:    fillStatus(order),
			Timestamp: order.UpdatedAt,
		}
		if fill.Timestamp.IsZero() {
			fill.Timestamp = g.now()
		}

		g.mu.Lock()
		delete(g.tracked, orderID)
		g.mu.Unlock()

		select {
		case g.fills <- fill:
		case <-ctx.Done():
			return
		}
	}
}

// fillStatus maps a final order to a fill status. A partially filled then
// cancelled market order is reported as filled for the executed quantity.
func fillStatus(order bybit.Order) exchange.FillStatus {
	switch {
	case order.CumExecQty > 0:
		return exchange.FillFilled
	case order.Status == bybit.StatusRejected:
		return exchange.FillRejected
	default:
		return exchange.FillCancelled
	}
}

// LotSize returns the instrument's order size filters
func (g *BybitGateway) LotSize(ctx context.Context, symbol string) (exchange.LotSize, error) {
	info, err := g.lots.Get(ctx, symbol)
	if err != nil {
		return exchange.LotSize{}, convertError(err)
	}
	return exchange.LotSize{
		Symbol:      info.Symbol,
		MinOrderQty: info.MinOrderQty,
		MaxOrderQty: info.MaxOrderQty,
		QtyStep:     info.QtyStep,
		MinNotional: info.MinNotional,
		TickSize:    info.TickSize,
	}, nil
}

// Position returns the exchange's view of the symbol's position
func (g *BybitGateway) Position(ctx context.Context, symbol string) (exchange.ExternalPosition, error) {
	pos, err := g.api.GetPosition(ctx, symbol)
	if err != nil {
		return exchange.ExternalPosition{}, convertError(err)
	}
	return exchange.ExternalPosition{
		Symbol:     symbol,
		Side:       exchange.OrderSide(pos.Side),
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		MarkPrice:  pos.MarkPrice,
		UpdatedAt:  pos.UpdatedAt,
	}, nil
}

// Equity returns unified account equity
func (g *BybitGateway) Equity(ctx context.Context) (float64, error) {
	equity, err := g.api.GetEquity(ctx, bybit.AccountTypeUnified)
	if err != nil {
		return 0, convertError(err)
	}
	return equity, nil
}

// Close stops the fill poller
func (g *BybitGateway) Close() error {
	g.once.Do(func() {
		if g.cancel != nil {
			g.cancel()
		}
		g.wg.Wait()
	})
	return nil
}

// convertError converts Bybit errors to the standard exchange errors
func convertError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*exchange.ExchangeError); ok {
		return err
	}

	switch {
	case bybit.IsAuthenticationError(err):
		return exchange.ErrAuthenticationFailed.WithDetails("%v", err)
	case bybit.IsInsufficientBalanceError(err):
		return exchange.ErrInsufficientBalance.WithDetails("%v", err)
	case bybit.IsOrderNotFoundError(err):
		return exchange.ErrOrderNotFound.WithDetails("%v", err)
	case bybit.IsSymbolNotFoundError(err):
		return exchange.ErrInvalidSymbol.WithDetails("%v", err)
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "10006") {
		return exchange.ErrRateLimitExceeded.WithDetails("%v", err)
	}
	if bybit.IsRetryableError(err) {
		return exchange.ErrConnectionFailed.WithDetails("%v", err)
	}

	return &exchange.ExchangeError{
		Code:    "UNKNOWN_ERROR",
		Message: "Unknown error from Bybit",
		Details: err.Error(),
	}
}
