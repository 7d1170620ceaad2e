package risk

import "fmt"

// Rule names reported on rejection, in evaluation order
const (
	RuleDailyLoss         = "daily-loss-limit"
	RuleMaxDrawdown       = "max-drawdown"
	RulePositionLimit     = "position-limit"
	RuleDailyTrades       = "daily-trade-limit"
	RuleConsecutiveLosses = "consecutive-losses"
	RuleInvalidStop       = "invalid-stop"
	RulePoorRiskReward    = "poor-risk-reward"
	RuleSizeTooSmall      = "size-too-small"
	RulePositionOpen      = "position-open"
	RuleEmergencyStop     = "emergency-stop"
)

// Limits are the account-level risk parameters. Percentages are of equity.
type Limits struct {
	MaxPositionSizePercent float64 `json:"max_position_size_percent" yaml:"max_position_size_percent"`
	MaxDailyLossPercent    float64 `json:"max_daily_loss_percent" yaml:"max_daily_loss_percent"`
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent" yaml:"max_drawdown_percent"`
	MinRiskReward          float64 `json:"min_risk_reward" yaml:"min_risk_reward"`
	RiskPerTradePercent    float64 `json:"risk_per_trade_percent" yaml:"risk_per_trade_percent"`
	MaxConcurrentPositions int     `json:"max_concurrent_positions" yaml:"max_concurrent_positions"`
	// Zero disables the two limits below
	MaxDailyTrades       int `json:"max_daily_trades" yaml:"max_daily_trades"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
}

// DefaultLimits returns conservative defaults
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSizePercent: 5,
		MaxDailyLossPercent:    2,
		MaxDrawdownPercent:     10,
		MinRiskReward:          1.5,
		RiskPerTradePercent:    1,
		MaxConcurrentPositions: 5,
		MaxDailyTrades:         20,
		MaxConsecutiveLosses:   3,
	}
}

// Validate checks that every limit is within a sane range
func (l Limits) Validate() error {
	if l.MaxPositionSizePercent <= 0 || l.MaxPositionSizePercent > 100 {
		return fmt.Errorf("max_position_size_percent must be within (0,100], got %.2f", l.MaxPositionSizePercent)
	}
	if l.MaxDailyLossPercent <= 0 || l.MaxDailyLossPercent > 100 {
		return fmt.Errorf("max_daily_loss_percent must be within (0,100], got %.2f", l.MaxDailyLossPercent)
	}
	if l.MaxDrawdownPercent <= 0 || l.MaxDrawdownPercent > 100 {
		return fmt.Errorf("max_drawdown_percent must be within (0,100], got %.2f", l.MaxDrawdownPercent)
	}
	if l.RiskPerTradePercent <= 0 || l.RiskPerTradePercent > l.MaxPositionSizePercent {
		return fmt.Errorf("risk_per_trade_percent must be within (0,max_position_size_percent], got %.2f", l.RiskPerTradePercent)
	}
	if l.MinRiskReward < 0 {
		return fmt.Errorf("min_risk_reward cannot be negative")
	}
	if l.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("max_concurrent_positions must be positive")
	}
	if l.MaxDailyTrades < 0 || l.MaxConsecutiveLosses < 0 {
		return fmt.Errorf("trade and loss counters cannot be negative")
	}
	return nil
}

// DailyLossReached reports whether today's realized loss has reached the
// daily limit, a percentage of current equity, with a description of the breach
func (l Limits) DailyLossReached(acct AccountState) (string, bool) {
	maxLoss := l.MaxDailyLossPercent / 100 * acct.Equity
	if acct.RealizedLossToday() < maxLoss {
		return "", false
	}
	return fmt.Sprintf("daily loss %.2f reached limit %.2f (%.2f%%)", acct.RealizedLossToday(), maxLoss, l.MaxDailyLossPercent), true
}
