package position

import (
	"errors"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
)

var (
	// ErrBusy is returned for a new entry while an order is in flight or a position is open
	ErrBusy = errors.New("position busy")
	// ErrSignalConsumed is returned when a signal id has already been acted on
	ErrSignalConsumed = errors.New("signal already consumed")
	// ErrNotOpen is returned when an exit is requested without an open position
	ErrNotOpen = errors.New("no open position")
)

// State is the lifecycle state of an instrument's position
type State int

const (
	StateFlat State = iota
	StatePendingEntry
	StateOpen
	StatePendingExit
)

func (s State) String() string {
	switch s {
	case StateFlat:
		return "FLAT"
	case StatePendingEntry:
		return "PENDING_ENTRY"
	case StateOpen:
		return "OPEN"
	case StatePendingExit:
		return "PENDING_EXIT"
	default:
		return "UNKNOWN"
	}
}

// Exit reasons
const (
	ExitStopLoss      = "stop-loss"
	ExitTakeProfit    = "take-profit"
	ExitEmergencyStop = "emergency-stop"
	ExitManual        = "manual"
	ExitExternal      = "external-close"
)

// Position is one instrument's position as tracked locally
type Position struct {
	Symbol     string             `json:"symbol"`
	Side       strategy.Direction `json:"side"`
	State      State              `json:"state"`
	EntryPrice float64            `json:"entry_price"`
	Size       float64            `json:"size"`
	Stop       float64            `json:"stop"`
	Target     float64            `json:"target"`
	// HighWater is the most favorable price seen while open (lowest for shorts)
	HighWater    float64   `json:"high_water"`
	SignalID     string    `json:"signal_id,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	EntryOrderID string    `json:"entry_order_id,omitempty"`
	ExitOrderID  string    `json:"exit_order_id,omitempty"`
	ExitReason   string    `json:"exit_reason,omitempty"`
	EntryFee     float64   `json:"entry_fee,omitempty"`
	OpenedAt     time.Time `json:"opened_at,omitempty"`
}

// UnrealizedPnL values the position at price
func (p Position) UnrealizedPnL(price float64) float64 {
	if p.State != StateOpen && p.State != StatePendingExit {
		return 0
	}
	return (price - p.EntryPrice) * p.Size * p.Side.Sign()
}

func (p Position) entrySide() exchange.OrderSide {
	if p.Side == strategy.Short {
		return exchange.OrderSideSell
	}
	return exchange.OrderSideBuy
}

// Trade is a completed round trip
type Trade struct {
	ID         string             `json:"id"`
	Symbol     string             `json:"symbol"`
	Side       strategy.Direction `json:"side"`
	EntryPrice float64            `json:"entry_price"`
	ExitPrice  float64            `json:"exit_price"`
	Size       float64            `json:"size"`
	PnL        float64            `json:"pnl"`
	Fees       float64            `json:"fees"`
	ExitReason string             `json:"exit_reason"`
	SignalID   string             `json:"signal_id,omitempty"`
	Strategy   string             `json:"strategy,omitempty"`
	OpenedAt   time.Time          `json:"opened_at"`
	ClosedAt   time.Time          `json:"closed_at"`
}

// RealizedPnL is (exit - entry) * size * side sign
func RealizedPnL(side strategy.Direction, entry, exit, size float64) float64 {
	return (exit - entry) * size * side.Sign()
}

// TransitionKind describes what a fill, cancel or reconciliation did
type TransitionKind int

const (
	NoChange TransitionKind = iota
	Opened
	Closed
	EntryCancelled
	ExitCancelled
	Adopted
)

func (k TransitionKind) String() string {
	switch k {
	case NoChange:
		return "NO_CHANGE"
	case Opened:
		return "OPENED"
	case Closed:
		return "CLOSED"
	case EntryCancelled:
		return "ENTRY_CANCELLED"
	case ExitCancelled:
		return "EXIT_CANCELLED"
	case Adopted:
		return "ADOPTED"
	default:
		return "UNKNOWN"
	}
}

// Transition reports a state change. Trade is set whenever P&L was realized,
// which includes an external partial close reported as Adopted. Reconciled
// marks changes forced by exchange state the manager did not expect.
type Transition struct {
	Kind       TransitionKind `json:"kind"`
	Position   Position       `json:"position"`
	Trade      *Trade         `json:"trade,omitempty"`
	Reconciled bool           `json:"reconciled"`
	Reason     string         `json:"reason,omitempty"`
}
