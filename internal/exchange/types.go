package exchange

import (
	"fmt"
	"strings"
	"time"
)

// KlineInterval is a candle interval in exchange notation
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval3m  KlineInterval = "3"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval4h  KlineInterval = "240"
	Interval1d  KlineInterval = "D"
)

// Duration returns the wall-clock length of the interval
func (i KlineInterval) Duration() (time.Duration, error) {
	switch i {
	case Interval1m:
		return time.Minute, nil
	case Interval3m:
		return 3 * time.Minute, nil
	case Interval5m:
		return 5 * time.Minute, nil
	case Interval15m:
		return 15 * time.Minute, nil
	case Interval30m:
		return 30 * time.Minute, nil
	case Interval1h:
		return time.Hour, nil
	case Interval4h:
		return 4 * time.Hour, nil
	case Interval1d:
		return 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported interval %q", i)
}

// ParseInterval accepts exchange notation ("15", "60", "D") and the usual
// shorthand ("15m", "1h", "4h", "1d")
func ParseInterval(s string) (KlineInterval, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	switch in {
	case "d", "1d", "1440":
		return Interval1d, nil
	case "1h":
		return Interval1h, nil
	case "4h":
		return Interval4h, nil
	}
	in = strings.TrimSuffix(in, "m")
	candidate := KlineInterval(in)
	if _, err := candidate.Duration(); err != nil {
		return "", fmt.Errorf("unsupported interval %q", s)
	}
	return candidate, nil
}

// OrderSide is Buy or Sell, in the exchange's own spelling
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// Opposite returns the closing side
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderRequest is a market order, optionally reduce-only
type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Size       float64   `json:"size"`
	Price      float64   `json:"price,omitempty"` // reference price for paper fills and logging
	ReduceOnly bool      `json:"reduce_only"`
	ClientID   string    `json:"client_id"`
}

// FillStatus reports what happened to an order
type FillStatus string

const (
	FillFilled    FillStatus = "Filled"
	FillCancelled FillStatus = "Cancelled"
	FillRejected  FillStatus = "Rejected"
)

// Fill is an execution report for an order
type Fill struct {
	OrderID   string     `json:"order_id"`
	ClientID  string     `json:"client_id,omitempty"`
	Symbol    string     `json:"symbol"`
	Side      OrderSide  `json:"side"`
	Price     float64    `json:"price"`
	Size      float64    `json:"size"`
	Fee       float64    `json:"fee"`
	Status    FillStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// LotSize holds the instrument's order-size constraints
type LotSize struct {
	Symbol      string  `json:"symbol"`
	MinOrderQty float64 `json:"min_order_qty"`
	MaxOrderQty float64 `json:"max_order_qty"`
	QtyStep     float64 `json:"qty_step"`
	MinNotional float64 `json:"min_notional"`
	TickSize    float64 `json:"tick_size"`
}

// ExternalPosition is the exchange's view of an instrument's position. Size is
// zero when flat.
type ExternalPosition struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entry_price"`
	MarkPrice  float64   `json:"mark_price"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsFlat reports whether no position is held
func (p ExternalPosition) IsFlat() bool {
	return p.Size == 0
}

// ExchangeError represents standardized errors from exchanges
type ExchangeError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	IsRetryable bool   `json:"is_retryable"`
}

func (e *ExchangeError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Is matches on Code so wrapped copies with details compare equal
func (e *ExchangeError) Is(target error) bool {
	t, ok := target.(*ExchangeError)
	return ok && t.Code == e.Code
}

// Temporary reports whether a retry may succeed
func (e *ExchangeError) Temporary() bool {
	return e.IsRetryable
}

// WithDetails returns a copy carrying extra context
func (e *ExchangeError) WithDetails(format string, args ...interface{}) *ExchangeError {
	c := *e
	c.Details = fmt.Sprintf(format, args...)
	return &c
}

var (
	ErrInsufficientBalance = &ExchangeError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "Insufficient balance for trade",
	}
	ErrInvalidSymbol = &ExchangeError{
		Code:    "INVALID_SYMBOL",
		Message: "Invalid trading symbol",
	}
	ErrOrderSizeTooSmall = &ExchangeError{
		Code:    "ORDER_SIZE_TOO_SMALL",
		Message: "Order size below minimum requirements",
	}
	ErrOrderNotFound = &ExchangeError{
		Code:    "ORDER_NOT_FOUND",
		Message: "Order not found or already final",
	}
	ErrRateLimitExceeded = &ExchangeError{
		Code:        "RATE_LIMIT_EXCEEDED",
		Message:     "API rate limit exceeded",
		IsRetryable: true,
	}
	ErrConnectionFailed = &ExchangeError{
		Code:        "CONNECTION_FAILED",
		Message:     "Failed to connect to exchange",
		IsRetryable: true,
	}
	ErrAuthenticationFailed = &ExchangeError{
		Code:    "AUTHENTICATION_FAILED",
		Message: "API authentication failed",
	}
	ErrNoData = &ExchangeError{
		Code:    "NO_DATA",
		Message: "No market data available",
	}
)
