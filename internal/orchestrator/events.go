package orchestrator

import (
	"context"
	"fmt"
	"time"

	boterrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/internal/journal"
	"github.com/ducminhle1904/crypto-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-risk-engine/internal/position"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/id"
)

// handleTransition applies a position change to the ledger, the journal and
// the alert stream
func (e *Engine) handleTransition(ctx context.Context, in *instrument, tr position.Transition) {
	if tr.Kind == position.NoChange && !tr.Reconciled {
		return
	}
	p := tr.Position

	switch tr.Kind {
	case position.Opened:
		e.log.Trade("✅ %s %s opened: %g @ %.4f, stop %.4f, target %.4f",
			p.Symbol, p.Side, p.Size, p.EntryPrice, p.Stop, p.Target)
		e.notifier.Publish(notifications.NewEvent(notifications.EventEntry, p.Symbol,
			fmt.Sprintf("%s %g @ %.4f", p.Side, p.Size, p.EntryPrice), map[string]interface{}{
				"side":      p.Side.String(),
				"size":      p.Size,
				"price":     p.EntryPrice,
				"stop":      p.Stop,
				"target":    p.Target,
				"signal_id": p.SignalID,
			}))
		if e.emergency.Active() {
			e.exit(ctx, in, position.ExitEmergencyStop, p.EntryPrice)
		}
	case position.Closed:
		e.ledger.Release(in.symbol)
	case position.EntryCancelled:
		e.ledger.Release(in.symbol)
		e.log.LogWarning("entry", "%s entry %s cancelled: %s", p.Symbol, p.EntryOrderID, tr.Reason)
	case position.ExitCancelled:
		e.log.LogWarning("exit", "%s exit cancelled, position still open: %s", p.Symbol, tr.Reason)
	case position.Adopted:
		e.ledger.ForceReserve(in.symbol)
	}

	if tr.Trade != nil {
		e.recordTrade(ctx, *tr.Trade)
	}

	if tr.Reconciled {
		err := boterrors.NewReconciliationError("position", "reconcile", tr.Reason).
			WithContext("symbol", in.symbol).
			WithContext("transition", tr.Kind.String())
		e.log.LogWarning("reconcile", "%v", err)
		e.recordRiskEvent(ctx, in.symbol, journal.RiskEventReconciliation, tr.Kind.String(), tr.Reason)
		e.notifier.Publish(notifications.NewEvent(notifications.EventReconciliation, in.symbol, tr.Reason, map[string]interface{}{
			"transition": tr.Kind.String(),
			"side":       p.Side.String(),
			"size":       p.Size,
			"state":      p.State.String(),
		}))
	}
}

// recordTrade applies exactly one realized P&L delta per completed trade
func (e *Engine) recordTrade(ctx context.Context, t position.Trade) {
	acct := e.ledger.RecordClose(t.PnL)

	e.statsMu.Lock()
	if t.PnL > 0 {
		e.dayWins++
	} else {
		e.dayLosses++
	}
	e.statsMu.Unlock()

	emoji := "🟢"
	if t.PnL < 0 {
		emoji = "🔴"
	}
	e.log.Trade("%s %s %s closed (%s): %g @ %.4f -> %.4f, P&L %.2f, fees %.4f",
		emoji, t.Symbol, t.Side, t.ExitReason, t.Size, t.EntryPrice, t.ExitPrice, t.PnL, t.Fees)

	if e.journal != nil {
		jctx, cancel := e.journalContext(ctx)
		err := e.journal.RecordTrade(jctx, journal.TradeRecord{
			ID:         t.ID,
			Symbol:     t.Symbol,
			Side:       t.Side.String(),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Size:       t.Size,
			PnL:        t.PnL,
			Fees:       t.Fees,
			ExitReason: t.ExitReason,
			SignalID:   t.SignalID,
			Strategy:   t.Strategy,
			OpenedAt:   t.OpenedAt,
			ClosedAt:   t.ClosedAt,
		})
		cancel()
		if err != nil {
			e.log.LogError("journal", err)
		}
	}

	e.notifier.Publish(notifications.NewEvent(notifications.EventExit, t.Symbol,
		fmt.Sprintf("%s closed (%s), P&L %.2f", t.Side, t.ExitReason, t.PnL), map[string]interface{}{
			"side":        t.Side.String(),
			"size":        t.Size,
			"entry":       t.EntryPrice,
			"exit":        t.ExitPrice,
			"pnl":         t.PnL,
			"fees":        t.Fees,
			"reason":      t.ExitReason,
			"equity":      acct.Equity,
			"pnl_today":   acct.RealizedPnLToday,
			"open_trades": acct.OpenPositions,
		}))
	e.publishAccount(ctx, e.clock())

	if reason, hit := e.opts.Limits.DailyLossReached(acct); hit {
		e.emergency.TripForDay("daily-loss-limit: " + reason)
	}
}

// TriggerEmergencyStop halts new entries and, when automated trading is
// permitted, drives every position to FLAT. It returns false when the stop was
// already active.
func (e *Engine) TriggerEmergencyStop(ctx context.Context, reason string) bool {
	if !e.emergency.Trip(reason) {
		return false
	}
	if !e.features.AutomationPermitted(ctx) {
		e.log.LogWarning("emergency", "automated trading not permitted, open positions are left for manual closing")
		return true
	}
	for _, symbol := range e.order {
		in := e.instruments[symbol]
		e.flatten(ctx, in, in.price())
	}
	return true
}

// ClearEmergencyStop re-enables entries. It returns false when the stop was
// not active.
func (e *Engine) ClearEmergencyStop() bool {
	return e.emergency.Clear()
}

func (e *Engine) onEmergencyChange(active bool, reason string) {
	monitoring.SetEmergencyStop(active)
	e.health.SetEmergencyStop(active, reason)

	msg := "emergency stop cleared"
	if active {
		msg = "emergency stop: " + reason
		e.log.Error("🚨 %s", msg)
	} else {
		e.log.Status("%s", msg)
	}
	e.recordRiskEvent(context.Background(), "", journal.RiskEventEmergencyStop, fmt.Sprintf("active=%t", active), reason)
	e.notifier.Publish(notifications.NewEvent(notifications.EventEmergencyStop, "", msg, map[string]interface{}{
		"active": active,
		"reason": reason,
	}))
}

// rollDay closes the previous UTC day once: the daily counters reset, a
// daily-loss emergency stop clears and the day is summarised
func (e *Engine) rollDay(ctx context.Context, now time.Time) {
	prev, rolled := e.ledger.RollDay(now)
	if !rolled {
		return
	}
	e.emergency.ClearForNewDay(now)

	e.statsMu.Lock()
	wins, losses := e.dayWins, e.dayLosses
	e.dayWins, e.dayLosses = 0, 0
	e.statsMu.Unlock()

	stats := journal.DailyStats{
		Day:         prev.Day,
		StartEquity: prev.StartOfDayEquity,
		EndEquity:   prev.Equity,
		RealizedPnL: prev.RealizedPnLToday,
		Trades:      wins + losses,
		Wins:        wins,
		Losses:      losses,
	}
	e.log.Status("📅 Day %s closed: P&L %.2f, %d trades (%d won), equity %.2f",
		prev.Day.Format("2006-01-02"), stats.RealizedPnL, stats.Trades, wins, stats.EndEquity)

	if e.journal != nil {
		jctx, cancel := e.journalContext(ctx)
		if err := e.journal.RecordDailyStats(jctx, stats); err != nil {
			e.log.LogError("journal", err)
		}
		cancel()
	}
	e.notifier.Publish(notifications.NewEvent(notifications.EventDailyReport, "",
		fmt.Sprintf("%s: P&L %.2f over %d trades", prev.Day.Format("2006-01-02"), stats.RealizedPnL, stats.Trades),
		map[string]interface{}{
			"day":          prev.Day.Format("2006-01-02"),
			"start_equity": stats.StartEquity,
			"end_equity":   stats.EndEquity,
			"pnl":          stats.RealizedPnL,
			"trades":       stats.Trades,
			"wins":         wins,
			"losses":       losses,
		}))
}

// maybeSyncEquity replaces ledger equity with the gateway's figure at most
// once per sync interval
func (e *Engine) maybeSyncEquity(ctx context.Context, now time.Time) {
	if e.opts.EquitySync <= 0 {
		return
	}
	e.syncMu.Lock()
	if now.Sub(e.lastSync) < e.opts.EquitySync {
		e.syncMu.Unlock()
		return
	}
	e.lastSync = now
	e.syncMu.Unlock()

	var equity float64
	err := e.call(ctx, "equity", func(ctx context.Context) error {
		var err error
		equity, err = e.gateway.Equity(ctx)
		return err
	})
	if err != nil {
		e.log.LogError("equity", err)
		return
	}
	e.ledger.SyncEquity(equity)
	e.publishAccount(ctx, now)
}

// publishAccount updates account gauges and appends an equity point
func (e *Engine) publishAccount(ctx context.Context, now time.Time) {
	acct := e.ledger.Snapshot()
	monitoring.UpdateAccount(acct.Equity, acct.DrawdownPercent(), acct.RealizedPnLToday, acct.OpenPositions)
	if e.journal == nil {
		return
	}
	jctx, cancel := e.journalContext(ctx)
	defer cancel()
	err := e.journal.RecordEquity(jctx, journal.EquityPoint{
		Time:             now,
		Equity:           acct.Equity,
		RealizedPnLToday: acct.RealizedPnLToday,
		DrawdownPercent:  acct.DrawdownPercent(),
		OpenPositions:    acct.OpenPositions,
	})
	if err != nil {
		e.log.LogError("journal", err)
	}
}

func (e *Engine) recordSignal(ctx context.Context, sig strategy.Signal, outcome string) {
	if e.journal == nil {
		return
	}
	jctx, cancel := e.journalContext(ctx)
	defer cancel()
	err := e.journal.RecordSignal(jctx, journal.SignalRecord{
		ID:        sig.ID,
		Symbol:    sig.Symbol,
		Direction: sig.Direction.String(),
		Strength:  sig.Strength,
		Entry:     sig.Entry,
		Stop:      sig.Stop,
		Target:    sig.Target,
		Strategy:  sig.Strategy,
		Reason:    sig.Reason,
		Outcome:   outcome,
		Timestamp: sig.Timestamp,
	})
	if err != nil {
		e.log.LogError("journal", err)
	}
}

func (e *Engine) recordRiskEvent(ctx context.Context, symbol, kind, rule, reason string) {
	if e.journal == nil {
		return
	}
	jctx, cancel := e.journalContext(ctx)
	defer cancel()
	now := e.clock()
	err := e.journal.RecordRiskEvent(jctx, journal.RiskEvent{
		ID:     id.At(now),
		Symbol: symbol,
		Kind:   kind,
		Rule:   rule,
		Reason: reason,
		Time:   now,
	})
	if err != nil {
		e.log.LogError("journal", err)
	}
}

// journalContext bounds a journal write by the request timeout, detached from
// shutdown so that a finished cycle is always persisted
func (e *Engine) journalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.opts.RequestTimeout)
}
