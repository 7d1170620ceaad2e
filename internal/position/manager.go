package position

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/id"
)

// consumedCapacity bounds the remembered signal ids per instrument
const consumedCapacity = 1024

// sizeTolerance is the relative size difference treated as a mismatch on reconcile
const sizeTolerance = 1e-6

// OrderPlacer is the part of the gateway the manager drives
type OrderPlacer interface {
	SubmitOrder(ctx context.Context, req exchange.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// Manager owns the position state machine for one instrument. All methods are
// safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	symbol string
	placer OrderPlacer
	exits  strategy.Exits
	clock  func() time.Time

	pos          Position
	pendingSince time.Time
	consumed     map[string]bool
	consumedLog  []string
}

// NewManager creates a flat manager for symbol
func NewManager(symbol string, placer OrderPlacer, exits strategy.Exits) *Manager {
	return &Manager{
		symbol:   symbol,
		placer:   placer,
		exits:    exits,
		clock:    time.Now,
		pos:      Position{Symbol: symbol},
		consumed: make(map[string]bool),
	}
}

// SetClock replaces the time source used for pending timestamps
func (m *Manager) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// Symbol returns the managed instrument
func (m *Manager) Symbol() string {
	return m.symbol
}

// Position returns a copy of the current position
func (m *Manager) Position() Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos.State
}

// PendingSince returns when the in-flight order was submitted
func (m *Manager) PendingSince() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos.State != StatePendingEntry && m.pos.State != StatePendingExit {
		return time.Time{}, false
	}
	return m.pendingSince, true
}

// Enter submits the entry order for an approved signal. A signal is consumed
// on the first call even if submission fails.
func (m *Manager) Enter(ctx context.Context, sig strategy.Signal, size float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consumed[sig.ID] {
		return fmt.Errorf("%w: %s", ErrSignalConsumed, sig.ID)
	}
	if m.pos.State != StateFlat {
		return fmt.Errorf("%w: %s is %s", ErrBusy, m.symbol, m.pos.State)
	}
	if sig.Direction == strategy.Flat {
		return fmt.Errorf("signal %s has no direction", sig.ID)
	}
	if size <= 0 {
		return fmt.Errorf("invalid entry size %g", size)
	}
	m.consume(sig.ID)

	next := Position{
		Symbol:     m.symbol,
		Side:       sig.Direction,
		State:      StatePendingEntry,
		EntryPrice: sig.Entry,
		Size:       size,
		Stop:       sig.Stop,
		Target:     sig.Target,
		SignalID:   sig.ID,
		Strategy:   sig.Strategy,
	}
	orderID, err := m.placer.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol:   m.symbol,
		Side:     next.entrySide(),
		Size:     size,
		Price:    sig.Entry,
		ClientID: sig.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to submit entry for %s: %w", m.symbol, err)
	}
	next.EntryOrderID = orderID
	m.pos = next
	m.pendingSince = m.clock()
	return nil
}

// Consumed reports whether a signal with this id was already acted on
func (m *Manager) Consumed(signalID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumed[signalID]
}

func (m *Manager) consume(signalID string) {
	m.consumed[signalID] = true
	m.consumedLog = append(m.consumedLog, signalID)
	if len(m.consumedLog) > consumedCapacity {
		delete(m.consumed, m.consumedLog[0])
		m.consumedLog = m.consumedLog[1:]
	}
}

// OnFill applies an execution report for this instrument
func (m *Manager) OnFill(fill exchange.Fill) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fill.Status == exchange.FillCancelled || fill.Status == exchange.FillRejected {
		return m.cancelLocked(fill.OrderID)
	}

	switch {
	case m.pos.State == StatePendingEntry && fill.OrderID == m.pos.EntryOrderID:
		m.open(fill.Price, fill.Size, fill.Fee, fill.Timestamp)
		return Transition{Kind: Opened, Position: m.pos}

	case m.pos.State == StatePendingExit && fill.OrderID == m.pos.ExitOrderID:
		trade := m.close(fill.Price, fill.Fee, fill.Timestamp, m.pos.ExitReason)
		return Transition{Kind: Closed, Position: m.pos, Trade: trade}
	}

	return m.unexpectedFill(fill)
}

// open re-anchors stop and target distances on the actual fill price
func (m *Manager) open(price, size, fee float64, at time.Time) {
	sign := m.pos.Side.Sign()
	stopDistance := math.Abs(m.pos.EntryPrice - m.pos.Stop)
	targetDistance := math.Abs(m.pos.Target - m.pos.EntryPrice)

	m.pos.State = StateOpen
	m.pos.EntryPrice = price
	if size > 0 {
		m.pos.Size = size
	}
	m.pos.Stop = price - sign*stopDistance
	m.pos.Target = price + sign*targetDistance
	m.pos.HighWater = price
	m.pos.EntryFee = fee
	m.pos.OpenedAt = at
	m.pendingSince = time.Time{}
}

func (m *Manager) close(exitPrice, fee float64, at time.Time, reason string) *Trade {
	p := m.pos
	trade := &Trade{
		ID:         id.At(m.clock()),
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		Size:       p.Size,
		PnL:        RealizedPnL(p.Side, p.EntryPrice, exitPrice, p.Size),
		Fees:       p.EntryFee + fee,
		ExitReason: reason,
		SignalID:   p.SignalID,
		Strategy:   p.Strategy,
		OpenedAt:   p.OpenedAt,
		ClosedAt:   at,
	}
	m.pos = Position{Symbol: m.symbol}
	m.pendingSince = time.Time{}
	return trade
}

// unexpectedFill adopts an execution the manager did not ask for
func (m *Manager) unexpectedFill(fill exchange.Fill) Transition {
	side := sideFromOrder(fill.Side)

	switch m.pos.State {
	case StateFlat:
		m.adopt(side, fill.Price, fill.Size, fill.Timestamp)
		return Transition{Kind: Adopted, Position: m.pos, Reconciled: true,
			Reason: fmt.Sprintf("unexpected %s fill %s opened a position", fill.Side, fill.OrderID)}

	case StateOpen:
		if side == m.pos.Side {
			total := m.pos.Size + fill.Size
			m.pos.EntryPrice = (m.pos.EntryPrice*m.pos.Size + fill.Price*fill.Size) / total
			m.pos.Size = total
			return Transition{Kind: Adopted, Position: m.pos, Reconciled: true,
				Reason: fmt.Sprintf("unexpected fill %s increased size to %g", fill.OrderID, total)}
		}
		if fill.Size+sizeTolerance*m.pos.Size < m.pos.Size {
			partial := &Trade{
				ID:         id.At(m.clock()),
				Symbol:     m.symbol,
				Side:       m.pos.Side,
				EntryPrice: m.pos.EntryPrice,
				ExitPrice:  fill.Price,
				Size:       fill.Size,
				PnL:        RealizedPnL(m.pos.Side, m.pos.EntryPrice, fill.Price, fill.Size),
				Fees:       fill.Fee,
				ExitReason: ExitExternal,
				SignalID:   m.pos.SignalID,
				Strategy:   m.pos.Strategy,
				OpenedAt:   m.pos.OpenedAt,
				ClosedAt:   fill.Timestamp,
			}
			m.pos.Size -= fill.Size
			return Transition{Kind: Adopted, Position: m.pos, Trade: partial, Reconciled: true,
				Reason: fmt.Sprintf("unexpected fill %s reduced size to %g", fill.OrderID, m.pos.Size)}
		}
		trade := m.close(fill.Price, fill.Fee, fill.Timestamp, ExitExternal)
		return Transition{Kind: Closed, Position: m.pos, Trade: trade, Reconciled: true,
			Reason: fmt.Sprintf("unexpected fill %s closed the position", fill.OrderID)}
	}

	return Transition{Kind: NoChange, Position: m.pos, Reconciled: true,
		Reason: fmt.Sprintf("fill %s does not match in-flight order while %s", fill.OrderID, m.pos.State)}
}

func (m *Manager) adopt(side strategy.Direction, price, size float64, at time.Time) {
	sign := side.Sign()
	m.pos = Position{
		Symbol:     m.symbol,
		Side:       side,
		State:      StateOpen,
		EntryPrice: price,
		Size:       size,
		Stop:       price - sign*price*m.exits.StopLossPercent/100,
		Target:     price + sign*price*m.exits.TakeProfitPercent/100,
		HighWater:  price,
		OpenedAt:   at,
	}
	m.pendingSince = time.Time{}
}

func sideFromOrder(s exchange.OrderSide) strategy.Direction {
	if s == exchange.OrderSideSell {
		return strategy.Short
	}
	return strategy.Long
}

// OnCancel applies a cancellation of the in-flight order
func (m *Manager) OnCancel(orderID string) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelLocked(orderID)
}

func (m *Manager) cancelLocked(orderID string) Transition {
	switch {
	case m.pos.State == StatePendingEntry && orderID == m.pos.EntryOrderID:
		cancelled := m.pos
		m.pos = Position{Symbol: m.symbol}
		m.pendingSince = time.Time{}
		return Transition{Kind: EntryCancelled, Position: cancelled, Reason: "entry order cancelled"}

	case m.pos.State == StatePendingExit && orderID == m.pos.ExitOrderID:
		m.pos.State = StateOpen
		m.pos.ExitOrderID = ""
		m.pos.ExitReason = ""
		m.pendingSince = time.Time{}
		return Transition{Kind: ExitCancelled, Position: m.pos, Reason: "exit order cancelled"}
	}
	return Transition{Kind: NoChange, Position: m.pos}
}

// CancelEntry cancels a pending entry order on the exchange and applies the
// cancellation locally once the exchange accepts it
func (m *Manager) CancelEntry(ctx context.Context) (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos.State != StatePendingEntry {
		return Transition{Kind: NoChange, Position: m.pos}, nil
	}
	if err := m.placer.CancelOrder(ctx, m.symbol, m.pos.EntryOrderID); err != nil {
		return Transition{Kind: NoChange, Position: m.pos}, fmt.Errorf("failed to cancel entry %s: %w", m.pos.EntryOrderID, err)
	}
	return m.cancelLocked(m.pos.EntryOrderID), nil
}

// UpdateStops recomputes the protective stop for the latest price. The stop
// only ever moves in the position's favor. It returns true when the stop moved.
func (m *Manager) UpdateStops(price, atr float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos.State != StateOpen || price <= 0 {
		return false
	}
	p := &m.pos
	long := p.Side == strategy.Long
	if long && price > p.HighWater || !long && price < p.HighWater {
		p.HighWater = price
	}

	candidate := p.Stop
	if m.exits.ATRStopMultiplier > 0 && atr > 0 {
		candidate = tighter(long, candidate, p.EntryPrice-p.Side.Sign()*m.exits.ATRStopMultiplier*atr)
	}
	if m.exits.TrailingPercent > 0 {
		trail := p.HighWater * m.exits.TrailingPercent / 100
		candidate = tighter(long, candidate, p.HighWater-p.Side.Sign()*trail)
	}
	if candidate == p.Stop {
		return false
	}
	p.Stop = candidate
	return true
}

func tighter(long bool, current, candidate float64) float64 {
	if long {
		return math.Max(current, candidate)
	}
	return math.Min(current, candidate)
}

// ExitTrigger reports whether price has crossed the stop or the target
func (m *Manager) ExitTrigger(price float64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos.State != StateOpen {
		return "", false
	}
	switch m.pos.Side {
	case strategy.Long:
		if price <= m.pos.Stop {
			return ExitStopLoss, true
		}
		if price >= m.pos.Target {
			return ExitTakeProfit, true
		}
	case strategy.Short:
		if price >= m.pos.Stop {
			return ExitStopLoss, true
		}
		if price <= m.pos.Target {
			return ExitTakeProfit, true
		}
	}
	return "", false
}

// RequestExit submits a reduce-only market order closing the position. A
// request while the exit is already in flight is a no-op.
func (m *Manager) RequestExit(ctx context.Context, reason string, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.pos.State {
	case StatePendingExit:
		return nil
	case StateOpen:
	default:
		return fmt.Errorf("%w: %s is %s", ErrNotOpen, m.symbol, m.pos.State)
	}

	orderID, err := m.placer.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol:     m.symbol,
		Side:       m.pos.entrySide().Opposite(),
		Size:       m.pos.Size,
		Price:      price,
		ReduceOnly: true,
		ClientID:   id.At(m.clock()),
	})
	if err != nil {
		return fmt.Errorf("failed to submit exit for %s: %w", m.symbol, err)
	}
	m.pos.State = StatePendingExit
	m.pos.ExitOrderID = orderID
	m.pos.ExitReason = reason
	m.pendingSince = m.clock()
	return nil
}

// Reconcile compares local state with the exchange's position and adopts the
// exchange's view on disagreement. Positions with an order in flight are left
// alone until the order resolves.
func (m *Manager) Reconcile(ext exchange.ExternalPosition) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.pos.State {
	case StateFlat:
		if ext.IsFlat() {
			return Transition{Kind: NoChange, Position: m.pos}
		}
		m.adopt(sideFromOrder(ext.Side), ext.EntryPrice, ext.Size, m.clock())
		return Transition{Kind: Adopted, Position: m.pos, Reconciled: true,
			Reason: fmt.Sprintf("exchange reports %s %g with no local position", ext.Side, ext.Size)}

	case StateOpen:
		if ext.IsFlat() {
			exit := ext.MarkPrice
			if exit <= 0 {
				exit = m.pos.EntryPrice
			}
			trade := m.close(exit, 0, m.clock(), ExitExternal)
			return Transition{Kind: Closed, Position: m.pos, Trade: trade, Reconciled: true,
				Reason: "exchange reports no position"}
		}
		side := sideFromOrder(ext.Side)
		if side != m.pos.Side || math.Abs(ext.Size-m.pos.Size) > sizeTolerance*math.Max(ext.Size, m.pos.Size) {
			reason := fmt.Sprintf("exchange reports %s %g, local %s %g", ext.Side, ext.Size, m.pos.Side, m.pos.Size)
			if side != m.pos.Side {
				m.adopt(side, ext.EntryPrice, ext.Size, m.clock())
			} else {
				m.pos.Size = ext.Size
				if ext.EntryPrice > 0 {
					m.pos.EntryPrice = ext.EntryPrice
				}
			}
			return Transition{Kind: Adopted, Position: m.pos, Reconciled: true, Reason: reason}
		}
	}
	return Transition{Kind: NoChange, Position: m.pos}
}
