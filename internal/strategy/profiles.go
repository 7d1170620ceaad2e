package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
)

// Built-in profile names
const (
	ProfileMultiIndicator = "multi_indicator"
	ProfileScalping       = "scalping"
	ProfileSwing          = "swing"
)

func when(field string, op Operator, value float64) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

func whenRef(field string, op Operator, ref string) Condition {
	return Condition{Field: field, Op: op, Ref: ref}
}

func rule(name string, vote Direction, score float64, conds ...Condition) Rule {
	return Rule{Name: name, When: conds, Vote: vote, Score: score}
}

// MultiIndicatorProfile balances momentum, trend and mean reversion
func MultiIndicatorProfile() Profile {
	return Profile{
		Name:        ProfileMultiIndicator,
		Description: "Weighted consensus of RSI, MACD, EMA alignment, Bollinger position and volume",
		Voters: []Voter{
			{Family: indicators.FamilyRSI, Weight: 0.2, Rules: []Rule{
				rule("rsi oversold", Long, 0.8, when("rsi", OpLess, 25)),
				rule("rsi approaching oversold", Long, 0.6, when("rsi", OpLess, 30)),
				rule("rsi overbought", Short, 0.8, when("rsi", OpGreater, 75)),
				rule("rsi approaching overbought", Short, 0.6, when("rsi", OpGreater, 70)),
			}},
			{Family: indicators.FamilyMACD, Weight: 0.3, Rules: []Rule{
				rule("macd bullish momentum", Long, 0.9,
					when("macd.histogram", OpGreater, 0), when("macd.histogram_delta", OpGreater, 0)),
				rule("macd bearish momentum", Short, 0.9,
					when("macd.histogram", OpLess, 0), when("macd.histogram_delta", OpLess, 0)),
				rule("macd turning up", Long, 0.7, when("macd.histogram_delta", OpGreater, 0)),
				rule("macd turning down", Short, 0.7, when("macd.histogram_delta", OpLess, 0)),
			}},
			{Family: indicators.FamilyEMA, Weight: 0.3, Rules: []Rule{
				rule("ema bullish alignment", Long, 0.8,
					whenRef("ema.fast", OpGreater, "ema.slow"),
					whenRef("ema.slow", OpGreater, "ema.trend"),
					whenRef("close", OpGreater, "ema.fast")),
				rule("ema bearish alignment", Short, 0.8,
					whenRef("ema.fast", OpLess, "ema.slow"),
					whenRef("ema.slow", OpLess, "ema.trend"),
					whenRef("close", OpLess, "ema.fast")),
				rule("above trend", Long, 0.5, whenRef("close", OpGreater, "ema.trend")),
				rule("below trend", Short, 0.5, whenRef("close", OpLess, "ema.trend")),
			}},
			{Family: indicators.FamilyBollinger, Weight: 0.2, Rules: []Rule{
				rule("lower band during squeeze", Long, 0.7,
					when("bb.percent_b", OpLess, 0.15), when("bb.squeeze", OpGreater, 0.5)),
				rule("lower band", Long, 0.5, when("bb.percent_b", OpLess, 0.15)),
				rule("upper band during squeeze", Short, 0.7,
					when("bb.percent_b", OpGreater, 0.85), when("bb.squeeze", OpGreater, 0.5)),
				rule("upper band", Short, 0.5, when("bb.percent_b", OpGreater, 0.85)),
			}},
			{Family: indicators.FamilyVolume, Weight: 0.1, Rules: []Rule{
				rule("high volume buying", Long, 0.6,
					when("volume.ratio", OpGreater, 1.5), whenRef("close", OpGreater, "ema.fast")),
				rule("high volume selling", Short, 0.6,
					when("volume.ratio", OpGreater, 1.5), whenRef("close", OpLess, "ema.fast")),
			}},
		},
		Modifiers: []Modifier{
			{Name: "high volatility", When: []Condition{when("atr.percent", OpGreater, 3)}, Multiplier: 0.8},
		},
		MinStrength: 0.6,
		Exits: Exits{
			StopLossPercent:   2,
			TakeProfitPercent: 6,
		},
	}
}

// ScalpingProfile reacts to short-term extremes with tight exits
func ScalpingProfile() Profile {
	return Profile{
		Name:        ProfileScalping,
		Description: "Quick RSI reversals and band touches confirmed by volume",
		Voters: []Voter{
			{Family: indicators.FamilyRSI, Weight: 0.35, Rules: []Rule{
				rule("rsi extreme oversold", Long, 0.8, when("rsi", OpLess, 25)),
				rule("rsi extreme overbought", Short, 0.8, when("rsi", OpGreater, 75)),
			}},
			{Family: indicators.FamilyBollinger, Weight: 0.25, Rules: []Rule{
				rule("below lower band", Long, 0.8, when("bb.percent_b", OpLess, 0)),
				rule("near lower band", Long, 0.6, when("bb.percent_b", OpLess, 0.1)),
				rule("above upper band", Short, 0.8, when("bb.percent_b", OpGreater, 1)),
				rule("near upper band", Short, 0.6, when("bb.percent_b", OpGreater, 0.9)),
			}},
			{Family: indicators.FamilyVolume, Weight: 0.2, Rules: []Rule{
				rule("volume surge up", Long, 0.6,
					when("volume.ratio", OpGreater, 1.5), when("macd.histogram_delta", OpGreater, 0)),
				rule("volume surge down", Short, 0.6,
					when("volume.ratio", OpGreater, 1.5), when("macd.histogram_delta", OpLess, 0)),
			}},
			{Family: indicators.FamilyMACD, Weight: 0.2, Rules: []Rule{
				rule("macd bullish momentum", Long, 0.6,
					when("macd.histogram", OpGreater, 0), when("macd.histogram_delta", OpGreater, 0)),
				rule("macd bearish momentum", Short, 0.6,
					when("macd.histogram", OpLess, 0), when("macd.histogram_delta", OpLess, 0)),
			}},
		},
		Modifiers: []Modifier{
			{Name: "high volume confirmation", When: []Condition{when("volume.ratio", OpGreater, 1.8)}, Multiplier: 1.2},
		},
		MinStrength: 0.7,
		Exits: Exits{
			StopLossPercent:   0.3,
			TakeProfitPercent: 0.5,
		},
	}
}

// SwingProfile follows the trend and buys near support
func SwingProfile() Profile {
	return Profile{
		Name:        ProfileSwing,
		Description: "EMA trend following with support/resistance entries and ATR trailing stops",
		Voters: []Voter{
			{Family: indicators.FamilyEMA, Weight: 0.35, Rules: []Rule{
				rule("bullish ema trend", Long, 0.8,
					whenRef("ema.fast", OpGreater, "ema.slow"), whenRef("ema.slow", OpGreater, "ema.trend")),
				rule("bearish ema trend", Short, 0.8,
					whenRef("ema.fast", OpLess, "ema.slow"), whenRef("ema.slow", OpLess, "ema.trend")),
			}},
			{Family: indicators.FamilyLevels, Weight: 0.25, Rules: []Rule{
				rule("near support", Long, 0.7,
					when("support.distance", OpGreaterEqual, 0), when("support.distance", OpLessEqual, 2)),
				rule("near resistance", Short, 0.7,
					when("resistance.distance", OpGreaterEqual, 0), when("resistance.distance", OpLessEqual, 2)),
			}},
			{Family: indicators.FamilyMACD, Weight: 0.25, Rules: []Rule{
				rule("macd bullish", Long, 0.7, when("macd.line", OpGreater, 0), whenRef("macd.line", OpGreater, "macd.signal")),
				rule("macd bearish", Short, 0.7, when("macd.line", OpLess, 0), whenRef("macd.line", OpLess, "macd.signal")),
			}},
			{Family: indicators.FamilyRSI, Weight: 0.15, Rules: []Rule{
				rule("rsi recovering", Long, 0.6, when("rsi", OpGreater, 30), when("rsi", OpLess, 40)),
				rule("rsi weakening", Short, 0.6, when("rsi", OpGreater, 60), when("rsi", OpLess, 70)),
			}},
		},
		MinStrength: 0.8,
		Exits: Exits{
			StopLossPercent:   4,
			TakeProfitPercent: 8,
			ATRStopMultiplier: 2,
			TrailingPercent:   3,
		},
	}
}

// BuiltinProfiles returns fresh copies of the bundled profiles
func BuiltinProfiles() []Profile {
	return []Profile{MultiIndicatorProfile(), ScalpingProfile(), SwingProfile()}
}

// Registry holds profiles by name
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewRegistry creates a registry preloaded with the built-in profiles
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]Profile)}
	for _, p := range BuiltinProfiles() {
		r.profiles[p.Name] = p
	}
	return r
}

// Register validates and adds a profile, replacing any profile with the same name
func (r *Registry) Register(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Name] = p
	return nil
}

// Get returns a profile by name
func (r *Registry) Get(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown strategy profile %q", name)
	}
	return p, nil
}

// Names lists registered profile names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
