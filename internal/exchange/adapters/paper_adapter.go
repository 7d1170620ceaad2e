package adapters

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

type paperFeed struct {
	candles []types.OHLCV
	cursor  int // index of the latest visible candle
}

type paperPosition struct {
	side  exchange.OrderSide
	size  float64
	entry float64
}

// PaperGateway simulates an exchange over candle feeds. Market orders fill
// immediately at the latest close adjusted for slippage; fills are buffered
// on the Fills channel.
type PaperGateway struct {
	config exchange.PaperConfig

	mu        sync.Mutex
	feeds     map[string]*paperFeed
	positions map[string]*paperPosition
	lots      map[string]exchange.LotSize
	balance   float64
	seq       int
	closed    bool
	rejectAll error

	fills chan exchange.Fill
}

// DefaultPaperLotSize is used for symbols without an explicit lot size
var DefaultPaperLotSize = exchange.LotSize{
	MinOrderQty: 0.001,
	MaxOrderQty: 1000,
	QtyStep:     0.001,
	MinNotional: 5,
	TickSize:    0.01,
}

// NewPaperGateway creates a simulator with the configured starting balance
func NewPaperGateway(config exchange.PaperConfig) *PaperGateway {
	return &PaperGateway{
		config:    config,
		feeds:     make(map[string]*paperFeed),
		positions: make(map[string]*paperPosition),
		lots:      make(map[string]exchange.LotSize),
		balance:   config.InitialBalance,
		fills:     make(chan exchange.Fill, 1024),
	}
}

// Name returns the gateway name
func (p *PaperGateway) Name() string {
	return exchange.NamePaper
}

// Feed installs a candle series with the first visible candles already
// revealed. visible <= 0 reveals the whole series.
func (p *PaperGateway) Feed(symbol string, candles []types.OHLCV, visible int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if visible <= 0 || visible > len(candles) {
		visible = len(candles)
	}
	p.feeds[symbol] = &paperFeed{candles: candles, cursor: visible - 1}
}

// Append reveals a new candle at the end of the symbol's series
func (p *PaperGateway) Append(symbol string, candle types.OHLCV) {
	p.mu.Lock()
	defer p.mu.Unlock()
	feed, ok := p.feeds[symbol]
	if !ok {
		feed = &paperFeed{cursor: -1}
		p.feeds[symbol] = feed
	}
	feed.candles = append(feed.candles[:feed.cursor+1], candle)
	feed.cursor = len(feed.candles) - 1
}

// Advance reveals the next candle of every feed. It returns false once no
// feed has candles left.
func (p *PaperGateway) Advance() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	moved := false
	for _, feed := range p.feeds {
		if feed.cursor+1 < len(feed.candles) {
			feed.cursor++
			moved = true
		}
	}
	return moved
}

// Now returns the latest visible candle time across feeds
func (p *PaperGateway) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	var latest time.Time
	for _, feed := range p.feeds {
		if feed.cursor >= 0 {
			if ts := feed.candles[feed.cursor].Timestamp; ts.After(latest) {
				latest = ts
			}
		}
	}
	return latest
}

// SetLotSize overrides the lot size of a symbol
func (p *PaperGateway) SetLotSize(symbol string, lot exchange.LotSize) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lot.Symbol = symbol
	p.lots[symbol] = lot
}

// FailRequests makes every subsequent call return err until cleared with nil
func (p *PaperGateway) FailRequests(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectAll = err
}

// SetPosition overwrites the simulated exchange position without a fill, as
// a manual change made outside the engine would.
func (p *PaperGateway) SetPosition(symbol string, side exchange.OrderSide, size, entry float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size <= 0 {
		delete(p.positions, symbol)
		return
	}
	p.positions[symbol] = &paperPosition{side: side, size: size, entry: entry}
}

func (p *PaperGateway) price(symbol string) (float64, time.Time, error) {
	feed, ok := p.feeds[symbol]
	if !ok || feed.cursor < 0 {
		return 0, time.Time{}, exchange.ErrNoData.WithDetails("no candles for %s", symbol)
	}
	c := feed.candles[feed.cursor]
	return c.Close, c.Timestamp, nil
}

// GetCandles returns up to limit visible candles, oldest first
func (p *PaperGateway) GetCandles(ctx context.Context, symbol string, interval exchange.KlineInterval, limit int) ([]types.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rejectAll != nil {
		return nil, p.rejectAll
	}
	feed, ok := p.feeds[symbol]
	if !ok {
		return nil, exchange.ErrInvalidSymbol.WithDetails("%s", symbol)
	}
	visible := feed.candles[:feed.cursor+1]
	if limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	out := make([]types.OHLCV, len(visible))
	copy(out, visible)
	return out, nil
}

// SubmitOrder fills a market order immediately
func (p *PaperGateway) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", exchange.ErrConnectionFailed.WithDetails("paper gateway closed")
	}
	if p.rejectAll != nil {
		return "", p.rejectAll
	}
	if req.Size <= 0 {
		return "", exchange.ErrOrderSizeTooSmall.WithDetails("size %.8f", req.Size)
	}
	last, ts, err := p.price(req.Symbol)
	if err != nil {
		return "", err
	}

	p.seq++
	orderID := fmt.Sprintf("paper-%d", p.seq)
	fill := exchange.Fill{
		OrderID:   orderID,
		ClientID:  req.ClientID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Timestamp: ts,
	}

	pos := p.positions[req.Symbol]
	if req.ReduceOnly && (pos == nil || pos.side == req.Side) {
		fill.Status = exchange.FillRejected
		return orderID, p.emit(fill)
	}

	size := req.Size
	if req.ReduceOnly && size > pos.size {
		size = pos.size
	}
	slip := last * p.config.SlippageBps / 10000
	price := last + slip
	if req.Side == exchange.OrderSideSell {
		price = last - slip
	}
	fee := price * size * p.config.FeeRate

	p.apply(req.Symbol, req.Side, size, price)
	p.balance -= fee

	fill.Status = exchange.FillFilled
	fill.Price = price
	fill.Size = size
	fill.Fee = fee
	return orderID, p.emit(fill)
}

// apply updates the simulated position and realizes P&L into the balance
func (p *PaperGateway) apply(symbol string, side exchange.OrderSide, size, price float64) {
	pos := p.positions[symbol]
	if pos == nil {
		p.positions[symbol] = &paperPosition{side: side, size: size, entry: price}
		return
	}
	if pos.side == side {
		total := pos.size + size
		pos.entry = (pos.entry*pos.size + price*size) / total
		pos.size = total
		return
	}

	closing := math.Min(size, pos.size)
	sign := 1.0
	if pos.side == exchange.OrderSideSell {
		sign = -1
	}
	p.balance += (price - pos.entry) * closing * sign
	pos.size -= closing
	remainder := size - closing
	if pos.size <= 1e-12 {
		delete(p.positions, symbol)
		if remainder > 1e-12 {
			p.positions[symbol] = &paperPosition{side: side, size: remainder, entry: price}
		}
	}
}

func (p *PaperGateway) emit(fill exchange.Fill) error {
	select {
	case p.fills <- fill:
		return nil
	default:
		return fmt.Errorf("paper fill buffer full, order %s dropped", fill.OrderID)
	}
}

// CancelOrder always fails: paper market orders are final on submission
func (p *PaperGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return exchange.ErrOrderNotFound.WithDetails("%s already final", orderID)
}

// Fills returns the execution report channel
func (p *PaperGateway) Fills() <-chan exchange.Fill {
	return p.fills
}

// LotSize returns the symbol's lot size or DefaultPaperLotSize
func (p *PaperGateway) LotSize(ctx context.Context, symbol string) (exchange.LotSize, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rejectAll != nil {
		return exchange.LotSize{}, p.rejectAll
	}
	if lot, ok := p.lots[symbol]; ok {
		return lot, nil
	}
	lot := DefaultPaperLotSize
	lot.Symbol = symbol
	return lot, nil
}

// Position returns the simulated position marked at the latest close
func (p *PaperGateway) Position(ctx context.Context, symbol string) (exchange.ExternalPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rejectAll != nil {
		return exchange.ExternalPosition{}, p.rejectAll
	}
	out := exchange.ExternalPosition{Symbol: symbol}
	pos := p.positions[symbol]
	if pos == nil {
		return out, nil
	}
	mark, ts, _ := p.price(symbol)
	out.Side = pos.side
	out.Size = pos.size
	out.EntryPrice = pos.entry
	out.MarkPrice = mark
	out.UpdatedAt = ts
	return out, nil
}

// Equity returns balance plus unrealized P&L at the latest closes
func (p *PaperGateway) Equity(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rejectAll != nil {
		return 0, p.rejectAll
	}
	equity := p.balance
	for symbol, pos := range p.positions {
		mark, _, err := p.price(symbol)
		if err != nil {
			continue
		}
		sign := 1.0
		if pos.side == exchange.OrderSideSell {
			sign = -1
		}
		equity += (mark - pos.entry) * pos.size * sign
	}
	return equity, nil
}

// Close rejects further orders. Buffered fills stay readable.
func (p *PaperGateway) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
