package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	boterrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
	"github.com/ducminhle1904/crypto-risk-engine/internal/journal"
	"github.com/ducminhle1904/crypto-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-risk-engine/internal/position"
	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
	"github.com/ducminhle1904/crypto-risk-engine/internal/safety"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
)

// managePosition reconciles with the exchange, trails the stop, fires exits
// and expires stale entries. Without automation crossed levels are only
// alerted.
func (e *Engine) managePosition(ctx context.Context, in *instrument, snap indicators.Snapshot, automated bool) {
	m := in.manager
	log := e.log.With(zap.String("symbol", in.symbol))

	switch m.State() {
	case position.StatePendingEntry:
		since, _ := m.PendingSince()
		if !automated || e.opts.EntryTimeout <= 0 || e.clock().Sub(since) < e.opts.EntryTimeout {
			return
		}
		tr, err := m.CancelEntry(ctx)
		if err != nil {
			log.LogError("cancel-entry", boterrors.NewOrderError("orchestrator", "cancel_entry", err))
			return
		}
		log.LogWarning("entry", "entry order timed out after %v", e.opts.EntryTimeout)
		e.handleTransition(ctx, in, tr)
		return
	case position.StatePendingExit:
		return
	}

	e.reconcile(ctx, in)

	if m.State() != position.StateOpen {
		in.swapExitAlert("")
		return
	}
	if m.UpdateStops(snap.Close, snap.ATR) {
		p := m.Position()
		log.Info("stop moved to %.4f (high water %.4f)", p.Stop, p.HighWater)
	}
	reason, hit := m.ExitTrigger(snap.Close)
	switch {
	case !hit:
		in.swapExitAlert("")
	case automated:
		e.exit(ctx, in, reason, snap.Close)
	case in.swapExitAlert(reason):
		e.alertExit(in, reason, snap.Close)
	}
}

// alertExit reports a crossed stop or target that is left for the operator
func (e *Engine) alertExit(in *instrument, reason string, price float64) {
	p := in.manager.Position()
	e.log.LogWarning("exit", "%s %s crossed at %.4f, automated trading not permitted: close manually", in.symbol, reason, price)
	e.notifier.Publish(notifications.NewEvent(notifications.EventExitAlert, in.symbol,
		fmt.Sprintf("%s %s crossed at %.4f, close manually", p.Side, reason, price), map[string]interface{}{
			"side":   p.Side.String(),
			"size":   p.Size,
			"entry":  p.EntryPrice,
			"stop":   p.Stop,
			"target": p.Target,
			"price":  price,
			"reason": reason,
		}))
}

// reconcile adopts the exchange's position when it disagrees with the local one
func (e *Engine) reconcile(ctx context.Context, in *instrument) {
	var ext exchange.ExternalPosition
	err := e.call(ctx, "position", func(ctx context.Context) error {
		var err error
		ext, err = e.gateway.Position(ctx, in.symbol)
		return err
	})
	if err != nil {
		e.log.LogError("reconcile", err)
		return
	}
	e.handleTransition(ctx, in, in.manager.Reconcile(ext))
}

func (e *Engine) exit(ctx context.Context, in *instrument, reason string, price float64) {
	p := in.manager.Position()
	err := in.manager.RequestExit(ctx, reason, price)
	if err != nil {
		e.log.LogError("exit", boterrors.NewOrderError("orchestrator", "request_exit", err).WithContext("symbol", in.symbol))
		return
	}
	side := exchange.OrderSideSell
	if p.Side == strategy.Short {
		side = exchange.OrderSideBuy
	}
	monitoring.RecordOrder(in.symbol, string(side), "exit")
	e.log.Trade("%s exit requested (%s) at %.4f, size %g", in.symbol, reason, price, p.Size)
}

// flatten drives the instrument toward FLAT while the emergency stop is active
func (e *Engine) flatten(ctx context.Context, in *instrument, price float64) {
	switch in.manager.State() {
	case position.StateOpen:
		e.exit(ctx, in, position.ExitEmergencyStop, price)
	case position.StatePendingEntry:
		tr, err := in.manager.CancelEntry(ctx)
		if err != nil {
			e.log.LogError("emergency", err)
			return
		}
		e.handleTransition(ctx, in, tr)
	}
}

// evaluate composes a signal and, when every gate allows it, submits the entry
func (e *Engine) evaluate(ctx context.Context, in *instrument, snap indicators.Snapshot, automated bool) {
	log := e.log.With(zap.String("symbol", in.symbol))
	profile := e.opts.Profile

	sig := e.composer.Compose(snap, profile)
	if !sig.Actionable(profile.MinStrength) {
		if missing := snap.Missing(); len(missing) > 0 && snap.ComputedCount() == 0 {
			log.LogError("indicators", boterrors.NewInsufficientDataError("orchestrator", "compute", snap.Err(missing[0])))
		}
		log.Debug("no entry: %s %.2f (%s)", sig.Direction, sig.Strength, sig.Reason)
		return
	}
	if in.manager.Consumed(sig.ID) {
		log.Debug("signal %s ignored: %v", sig.ID, position.ErrSignalConsumed)
		return
	}
	monitoring.RecordSignal(in.symbol, sig.Direction.String(), sig.Strength)
	log.Info("📶 Signal %s %s strength %.2f: %s", sig.ID, sig.Direction, sig.Strength, sig.Reason)
	if in.manager.State() != position.StateFlat {
		log.Info("signal %s ignored: %v", sig.ID, position.ErrBusy)
		e.recordSignal(ctx, sig, journal.OutcomeIgnored)
		return
	}
	e.notifier.Publish(notifications.NewEvent(notifications.EventSignal, in.symbol, sig.String(), map[string]interface{}{
		"id":        sig.ID,
		"direction": sig.Direction.String(),
		"strength":  sig.Strength,
		"entry":     sig.Entry,
		"stop":      sig.Stop,
		"target":    sig.Target,
		"strategy":  sig.Strategy,
	}))

	if !automated {
		log.Info("signal %s not traded: automated trading not permitted", sig.ID)
		e.recordSignal(ctx, sig, journal.OutcomeSignalOnly)
		return
	}

	lot, err := e.lotSize(ctx, in)
	if err != nil {
		log.LogError("lot-size", err)
		return
	}

	d := e.gate.Admit(sig, e.ledger, lot)
	if d.Rule == risk.RuleEmergencyStop {
		log.Info("signal %s not traded: %s", sig.ID, d.Reason)
		e.recordSignal(ctx, sig, journal.OutcomeRejected)
		return
	}
	if !d.Approved() {
		e.veto(ctx, sig, d)
		return
	}

	req := exchange.OrderRequest{Symbol: in.symbol, Side: entrySide(sig.Direction), Size: d.Size, Price: sig.Entry}
	if res := safety.ValidateOrder(req, lot); !res.Valid {
		e.ledger.Release(in.symbol)
		log.LogError("validate", boterrors.NewValidationError("orchestrator", "validate_order", res.Err().Error()))
		e.recordSignal(ctx, sig, journal.OutcomeRejected)
		return
	}

	if err := in.manager.Enter(ctx, sig, d.Size); err != nil {
		e.ledger.Release(in.symbol)
		if errors.Is(err, position.ErrBusy) || errors.Is(err, position.ErrSignalConsumed) {
			log.Info("signal %s ignored: %v", sig.ID, err)
			e.recordSignal(ctx, sig, journal.OutcomeIgnored)
			return
		}
		log.LogError("entry", boterrors.NewOrderError("orchestrator", "enter", err))
		e.recordSignal(ctx, sig, journal.OutcomeRejected)
		return
	}

	monitoring.RecordOrder(in.symbol, string(req.Side), "entry")
	outcome := journal.OutcomeApproved
	if d.Verdict == risk.Attenuate {
		outcome = journal.OutcomeAttenuated
	}
	e.recordSignal(ctx, sig, outcome)
	log.Trade("%s entry submitted: %s %g @ %.4f, stop %.4f, target %.4f, R:R %.2f (%s)",
		d.Verdict, sig.Direction, d.Size, sig.Entry, sig.Stop, sig.Target, d.RiskReward, d.Reason)

	// the stop may have tripped after admission
	if e.emergency.Active() {
		log.LogWarning("emergency", "emergency stop tripped while entering on signal %s", sig.ID)
		e.flatten(ctx, in, sig.Entry)
	}
}

func (e *Engine) veto(ctx context.Context, sig strategy.Signal, d risk.Decision) {
	monitoring.RecordVeto(d.Rule)
	e.log.LogWarning("risk", "%v", boterrors.NewRiskVetoError("risk-gate", d.Rule, d.Reason).WithContext("signal", sig.ID))
	e.recordSignal(ctx, sig, journal.OutcomeRejected)
	e.recordRiskEvent(ctx, sig.Symbol, journal.RiskEventVeto, d.Rule, d.Reason)
	e.notifier.Publish(notifications.NewEvent(notifications.EventRiskVeto, sig.Symbol,
		"signal "+sig.ID+" rejected: "+d.Reason, map[string]interface{}{
			"rule":      d.Rule,
			"direction": sig.Direction.String(),
			"strength":  sig.Strength,
		}))
}

func entrySide(d strategy.Direction) exchange.OrderSide {
	if d == strategy.Short {
		return exchange.OrderSideSell
	}
	return exchange.OrderSideBuy
}
