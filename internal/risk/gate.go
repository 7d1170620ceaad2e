package risk

import (
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
)

// Verdict is the outcome of a gate evaluation
type Verdict int

const (
	Reject Verdict = iota
	Approve
	Attenuate
)

func (v Verdict) String() string {
	switch v {
	case Approve:
		return "APPROVE"
	case Attenuate:
		return "ATTENUATE"
	case Reject:
		return "REJECT"
	default:
		return "UNKNOWN"
	}
}

// Decision is the gate's answer for one signal. Size is in base units and is
// set for Approve and Attenuate only.
type Decision struct {
	Verdict    Verdict `json:"verdict"`
	Size       float64 `json:"size,omitempty"`
	Notional   float64 `json:"notional,omitempty"`
	RiskReward float64 `json:"risk_reward,omitempty"`
	Rule       string  `json:"rule,omitempty"`
	Reason     string  `json:"reason"`
}

// Approved reports whether an order may be placed
func (d Decision) Approved() bool {
	return d.Verdict == Approve || d.Verdict == Attenuate
}

func reject(rule, format string, args ...interface{}) Decision {
	return Decision{Verdict: Reject, Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// Tripper is the emergency stop as seen by the gate: daily-loss breaches trip
// it and no slot is reserved while it is active
type Tripper interface {
	TripForDay(reason string) bool
	Active() bool
}

// Gate evaluates signals against account limits and sizes approved positions
type Gate struct {
	limits  Limits
	tripper Tripper

	// serializes Admit so concurrent approvals see each other's reservations
	mu sync.Mutex
}

// NewGate creates a gate. tripper may be nil.
func NewGate(limits Limits, tripper Tripper) *Gate {
	return &Gate{limits: limits, tripper: tripper}
}

// Limits returns the configured limits
func (g *Gate) Limits() Limits {
	return g.limits
}

// Evaluate applies the rules in order; the first failing rule rejects the signal.
func (g *Gate) Evaluate(sig strategy.Signal, acct AccountState, lot exchange.LotSize) Decision {
	l := g.limits

	if reason, hit := l.DailyLossReached(acct); hit {
		if g.tripper != nil {
			g.tripper.TripForDay(RuleDailyLoss + ": " + reason)
		}
		return reject(RuleDailyLoss, "%s", reason)
	}
	if dd := acct.DrawdownPercent(); dd >= l.MaxDrawdownPercent {
		return reject(RuleMaxDrawdown, "drawdown %.2f%% reached limit %.2f%%", dd, l.MaxDrawdownPercent)
	}
	if acct.OpenPositions >= l.MaxConcurrentPositions {
		return reject(RulePositionLimit, "%d open positions, limit %d", acct.OpenPositions, l.MaxConcurrentPositions)
	}
	if l.MaxDailyTrades > 0 && acct.TradesToday >= l.MaxDailyTrades {
		return reject(RuleDailyTrades, "%d trades today, limit %d", acct.TradesToday, l.MaxDailyTrades)
	}
	if l.MaxConsecutiveLosses > 0 && acct.ConsecutiveLosses >= l.MaxConsecutiveLosses {
		return reject(RuleConsecutiveLosses, "%d consecutive losses, limit %d", acct.ConsecutiveLosses, l.MaxConsecutiveLosses)
	}

	if err := checkGeometry(sig); err != nil {
		return reject(RuleInvalidStop, "%v", err)
	}
	rr := sig.RiskReward()
	if rr < l.MinRiskReward {
		return reject(RulePoorRiskReward, "risk/reward %.2f below minimum %.2f", rr, l.MinRiskReward)
	}

	d := g.size(sig, acct, lot)
	d.RiskReward = rr
	return d
}

// Admit evaluates the signal against the ledger's current state and reserves
// the instrument's position slot on approval, atomically with respect to
// other Admit calls. Nothing is admitted while the emergency stop is active.
func (g *Gate) Admit(sig strategy.Signal, ledger *Ledger, lot exchange.LotSize) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tripper != nil && g.tripper.Active() {
		return reject(RuleEmergencyStop, "emergency stop is active")
	}
	if ledger.Reserved(sig.Symbol) {
		return reject(RulePositionOpen, "%s already has a position", sig.Symbol)
	}
	d := g.Evaluate(sig, ledger.Snapshot(), lot)
	if !d.Approved() {
		return d
	}
	if err := ledger.Reserve(sig.Symbol); err != nil {
		return reject(RulePositionOpen, "%v", err)
	}
	return d
}

func checkGeometry(sig strategy.Signal) error {
	if sig.Entry <= 0 || sig.Stop <= 0 || sig.Target <= 0 {
		return fmt.Errorf("entry, stop and target must be positive")
	}
	switch sig.Direction {
	case strategy.Long:
		if sig.Stop >= sig.Entry || sig.Target <= sig.Entry {
			return fmt.Errorf("long needs stop < entry < target, got %.4f/%.4f/%.4f", sig.Stop, sig.Entry, sig.Target)
		}
	case strategy.Short:
		if sig.Stop <= sig.Entry || sig.Target >= sig.Entry {
			return fmt.Errorf("short needs target < entry < stop, got %.4f/%.4f/%.4f", sig.Target, sig.Entry, sig.Stop)
		}
	default:
		return fmt.Errorf("signal has no direction")
	}
	return nil
}

// size caps the position at both the max position notional and the notional
// whose stop-out loses RiskPerTradePercent of equity, then floors to the lot step.
func (g *Gate) size(sig strategy.Signal, acct AccountState, lot exchange.LotSize) Decision {
	l := g.limits
	equity := decimal.NewFromFloat(acct.Equity)
	entry := decimal.NewFromFloat(sig.Entry)
	hundred := decimal.NewFromInt(100)

	maxNotional := equity.Mul(decimal.NewFromFloat(l.MaxPositionSizePercent)).Div(hundred)
	stopFraction := decimal.NewFromFloat(math.Abs(sig.Entry - sig.Stop)).Div(entry)
	riskNotional := equity.Mul(decimal.NewFromFloat(l.RiskPerTradePercent)).Div(hundred).Div(stopFraction)

	verdict := Approve
	notional := maxNotional
	if riskNotional.LessThan(maxNotional) {
		verdict = Attenuate
		notional = riskNotional
	}

	qty := notional.Div(entry)
	if lot.QtyStep > 0 {
		step := decimal.NewFromFloat(lot.QtyStep)
		qty = qty.Div(step).Floor().Mul(step)
	} else {
		qty = qty.Truncate(8)
	}
	if lot.MaxOrderQty > 0 {
		if maxQty := decimal.NewFromFloat(lot.MaxOrderQty); qty.GreaterThan(maxQty) {
			qty = maxQty
			verdict = Attenuate
		}
	}

	size, _ := qty.Float64()
	actual, _ := qty.Mul(entry).Float64()
	switch {
	case size <= 0:
		return reject(RuleSizeTooSmall, "size rounds to zero (notional %s)", notional.StringFixed(2))
	case lot.MinOrderQty > 0 && size < lot.MinOrderQty:
		return reject(RuleSizeTooSmall, "size %g below minimum quantity %g", size, lot.MinOrderQty)
	case lot.MinNotional > 0 && actual < lot.MinNotional:
		return reject(RuleSizeTooSmall, "notional %.2f below minimum %.2f", actual, lot.MinNotional)
	}

	reason := fmt.Sprintf("size %g (notional %.2f)", size, actual)
	if verdict == Attenuate {
		reason = fmt.Sprintf("size %g reduced to risk %.2f%% of equity (notional %.2f)", size, l.RiskPerTradePercent, actual)
	}
	return Decision{Verdict: verdict, Size: size, Notional: actual, Reason: reason}
}
