// Package journal persists decisions, trades and the equity curve.
package journal

import (
	"context"
	"time"
)

// TradeRecord is a completed round trip
type TradeRecord struct {
	ID         string
	Symbol     string
	Side       string
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	PnL        float64
	Fees       float64
	ExitReason string
	SignalID   string
	Strategy   string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// SignalRecord is a composed signal and what the engine did with it
type SignalRecord struct {
	ID        string
	Symbol    string
	Direction string
	Strength  float64
	Entry     float64
	Stop      float64
	Target    float64
	Strategy  string
	Reason    string
	Outcome   string
	Timestamp time.Time
}

// Signal outcomes
const (
	OutcomeApproved   = "approved"
	OutcomeAttenuated = "attenuated"
	OutcomeRejected   = "rejected"
	OutcomeIgnored    = "ignored"
	OutcomeSignalOnly = "signal-only"
)

// EquityPoint is one sample of the equity curve
type EquityPoint struct {
	Time             time.Time
	Equity           float64
	RealizedPnLToday float64
	DrawdownPercent  float64
	OpenPositions    int
}

// RiskEvent kinds
const (
	RiskEventVeto           = "veto"
	RiskEventEmergencyStop  = "emergency_stop"
	RiskEventReconciliation = "reconciliation"
)

// RiskEvent records a veto, an emergency stop change or a reconciliation
type RiskEvent struct {
	ID     string
	Symbol string
	Kind   string
	Rule   string
	Reason string
	Time   time.Time
}

// DailyStats summarises a closed UTC day
type DailyStats struct {
	Day         time.Time
	StartEquity float64
	EndEquity   float64
	RealizedPnL float64
	Trades      int
	Wins        int
	Losses      int
}

// Journal is the persistence layer. Implementations are safe for concurrent use.
type Journal interface {
	RecordSignal(ctx context.Context, s SignalRecord) error
	RecordTrade(ctx context.Context, t TradeRecord) error
	RecordEquity(ctx context.Context, e EquityPoint) error
	RecordRiskEvent(ctx context.Context, e RiskEvent) error
	RecordDailyStats(ctx context.Context, d DailyStats) error

	Trades(ctx context.Context, since time.Time) ([]TradeRecord, error)
	EquityCurve(ctx context.Context, since time.Time) ([]EquityPoint, error)
	RiskEvents(ctx context.Context, since time.Time) ([]RiskEvent, error)

	Close() error
}
