package risk

import (
	"fmt"
	"sync"
	"time"
)

// AccountState is a point-in-time view of the account used for gating
type AccountState struct {
	Equity            float64   `json:"equity"`
	StartOfDayEquity  float64   `json:"start_of_day_equity"`
	PeakEquity        float64   `json:"peak_equity"`
	RealizedPnLToday  float64   `json:"realized_pnl_today"`
	OpenPositions     int       `json:"open_positions"`
	TradesToday       int       `json:"trades_today"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	Day               time.Time `json:"day"`
}

// RealizedLossToday returns today's net realized loss as a positive number, or zero
func (a AccountState) RealizedLossToday() float64 {
	if a.RealizedPnLToday < 0 {
		return -a.RealizedPnLToday
	}
	return 0
}

// DrawdownPercent is the decline from peak equity, in percent
func (a AccountState) DrawdownPercent() float64 {
	if a.PeakEquity <= 0 || a.Equity >= a.PeakEquity {
		return 0
	}
	return (a.PeakEquity - a.Equity) / a.PeakEquity * 100
}

// Ledger is the single owner of AccountState. Every P&L delta and slot
// reservation goes through it.
type Ledger struct {
	mu    sync.RWMutex
	state AccountState
	open  map[string]bool
}

// NewLedger starts a ledger with the given equity for the UTC day containing now
func NewLedger(equity float64, now time.Time) *Ledger {
	return &Ledger{
		state: AccountState{
			Equity:           equity,
			StartOfDayEquity: equity,
			PeakEquity:       equity,
			Day:              utcDay(now),
		},
		open: make(map[string]bool),
	}
}

// Snapshot returns a copy of the current state
func (l *Ledger) Snapshot() AccountState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Reserve claims a position slot for symbol and counts the trade
func (l *Ledger) Reserve(symbol string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open[symbol] {
		return fmt.Errorf("position slot for %s already reserved", symbol)
	}
	l.open[symbol] = true
	l.state.OpenPositions = len(l.open)
	l.state.TradesToday++
	return nil
}

// ForceReserve claims a slot for a position adopted from the exchange. It does
// not count as a trade and is a no-op when the slot is already held.
func (l *Ledger) ForceReserve(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open[symbol] = true
	l.state.OpenPositions = len(l.open)
}

// Release frees the slot for symbol
func (l *Ledger) Release(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.open, symbol)
	l.state.OpenPositions = len(l.open)
}

// Reserved reports whether symbol holds a slot
func (l *Ledger) Reserved(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.open[symbol]
}

// RecordClose applies the realized P&L of one completed round trip
func (l *Ledger) RecordClose(pnl float64) AccountState {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Equity += pnl
	l.state.RealizedPnLToday += pnl
	if l.state.Equity > l.state.PeakEquity {
		l.state.PeakEquity = l.state.Equity
	}
	if pnl < 0 {
		l.state.ConsecutiveLosses++
	} else {
		l.state.ConsecutiveLosses = 0
	}
	return l.state
}

// SyncEquity replaces equity with an exchange-reported value
func (l *Ledger) SyncEquity(equity float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Equity = equity
	if equity > l.state.PeakEquity {
		l.state.PeakEquity = equity
	}
}

// RollDay resets the daily counters when now falls on a later UTC day than the
// ledger's current day. It returns the closing state of the previous day and
// true when a roll happened; calling it again on the same day is a no-op.
func (l *Ledger) RollDay(now time.Time) (AccountState, bool) {
	day := utcDay(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !day.After(l.state.Day) {
		return AccountState{}, false
	}
	previous := l.state
	l.state.Day = day
	l.state.RealizedPnLToday = 0
	l.state.TradesToday = 0
	l.state.ConsecutiveLosses = 0
	l.state.StartOfDayEquity = l.state.Equity
	return previous, true
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
