package strategy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func bullishSnapshot() indicators.Snapshot {
	return indicators.WithValues(indicators.Snapshot{
		Symbol:    "BTCUSDT",
		Timestamp: testTime,
		Close:     105,
		RSI:       25,
		MACD:      indicators.MACDResult{Line: 0.5, Signal: 0.3, Histogram: 0.2, PrevHistogram: 0.1},
		EMA:       indicators.EMASet{Fast: 103, Slow: 104, Trend: 100},
	}, indicators.FamilyRSI, indicators.FamilyMACD, indicators.FamilyEMA)
}

// TestCompose_OversoldRisingMomentumAboveTrend tests the multi-indicator long scenario
func TestCompose_OversoldRisingMomentumAboveTrend(t *testing.T) {
	sig := NewComposer().Compose(bullishSnapshot(), MultiIndicatorProfile())

	assert.Equal(t, Long, sig.Direction)
	assert.Greater(t, sig.Strength, 0.5)
	// (0.2*0.6 + 0.3*0.9 + 0.3*0.5) / 0.8
	assert.InDelta(t, 0.675, sig.Strength, 1e-9)
	assert.Len(t, sig.Votes, 3)
	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, ProfileMultiIndicator, sig.Strategy)
	assert.Equal(t, testTime, sig.Timestamp)
	assert.NotEmpty(t, sig.ID)

	assert.InDelta(t, 105.0, sig.Entry, 1e-9)
	assert.InDelta(t, 102.9, sig.Stop, 1e-9)
	assert.InDelta(t, 111.3, sig.Target, 1e-9)
	assert.InDelta(t, 3.0, sig.RiskReward(), 1e-9)
	assert.Contains(t, sig.Reason, "macd bullish momentum")
}

// TestCompose_Short tests a bearish snapshot and mirrored exits
func TestCompose_Short(t *testing.T) {
	snap := indicators.WithValues(indicators.Snapshot{
		Symbol:    "ETHUSDT",
		Timestamp: testTime,
		Close:     105,
		RSI:       80,
		MACD:      indicators.MACDResult{Line: -0.5, Signal: -0.3, Histogram: -0.2, PrevHistogram: -0.1},
	}, indicators.FamilyRSI, indicators.FamilyMACD)

	sig := NewComposer().Compose(snap, MultiIndicatorProfile())
	assert.Equal(t, Short, sig.Direction)
	// (0.2*0.8 + 0.3*0.9) / 0.5
	assert.InDelta(t, 0.86, sig.Strength, 1e-9)
	assert.InDelta(t, 107.1, sig.Stop, 1e-9)
	assert.InDelta(t, 98.7, sig.Target, 1e-9)
}

// TestCompose_TieIsFlat tests that equal long and short weight gives no signal
func TestCompose_TieIsFlat(t *testing.T) {
	profile := Profile{
		Name: "tie",
		Voters: []Voter{
			{Family: indicators.FamilyRSI, Weight: 0.5, Rules: []Rule{
				rule("oversold", Long, 0.6, when("rsi", OpLess, 30)),
			}},
			{Family: indicators.FamilyEMA, Weight: 0.5, Rules: []Rule{
				rule("below trend", Short, 0.6, whenRef("close", OpLess, "ema.trend")),
			}},
		},
		Exits: Exits{StopLossPercent: 1, TakeProfitPercent: 2},
	}
	snap := indicators.WithValues(indicators.Snapshot{
		Close: 95,
		RSI:   20,
		EMA:   indicators.EMASet{Trend: 100},
	}, indicators.FamilyRSI, indicators.FamilyEMA)

	sig := NewComposer().Compose(snap, profile)
	assert.Equal(t, Flat, sig.Direction)
	assert.Equal(t, 0.0, sig.Strength)
	assert.Len(t, sig.Votes, 2)
	assert.False(t, sig.Actionable(0))
}

// TestCompose_AllAbstain tests that no matching rule gives no signal
func TestCompose_AllAbstain(t *testing.T) {
	snap := indicators.WithValues(indicators.Snapshot{
		Close: 100,
		RSI:   50,
		MACD:  indicators.MACDResult{Histogram: 0.1, PrevHistogram: 0.1},
		EMA:   indicators.EMASet{Fast: 100, Slow: 100, Trend: 100},
	}, indicators.FamilyRSI, indicators.FamilyMACD, indicators.FamilyEMA)

	sig := NewComposer().Compose(snap, MultiIndicatorProfile())
	assert.Equal(t, Flat, sig.Direction)
	assert.Equal(t, 0.0, sig.Strength)
	assert.Empty(t, sig.Votes)
}

// TestCompose_InsufficientIndicators tests the minimum computed families
func TestCompose_InsufficientIndicators(t *testing.T) {
	snap := indicators.WithValues(indicators.Snapshot{Close: 100, RSI: 10}, indicators.FamilyRSI)

	sig := NewComposer().Compose(snap, MultiIndicatorProfile())
	assert.Equal(t, Flat, sig.Direction)
	assert.Equal(t, 0.0, sig.Strength)
	assert.Contains(t, sig.Reason, "insufficient")
}

// TestCompose_VolumeBoost tests the scalping volume modifier
func TestCompose_VolumeBoost(t *testing.T) {
	snap := indicators.WithValues(indicators.Snapshot{
		Close:       200,
		RSI:         20,
		MACD:        indicators.MACDResult{Histogram: 0.2, PrevHistogram: 0.1},
		VolumeRatio: 2,
	}, indicators.FamilyRSI, indicators.FamilyMACD, indicators.FamilyVolume)

	sig := NewComposer().Compose(snap, ScalpingProfile())
	assert.Equal(t, Long, sig.Direction)
	// (0.35*0.8 + 0.2*0.6 + 0.2*0.6) / 0.75 * 1.2
	assert.InDelta(t, 0.52/0.75*1.2, sig.Strength, 1e-9)
	assert.InDelta(t, 199.4, sig.Stop, 1e-9)
	assert.InDelta(t, 201.0, sig.Target, 1e-9)
	assert.Contains(t, sig.Reason, "high volume confirmation")
}

// TestCompose_StrengthClamped tests that modifiers cannot push strength above one
func TestCompose_StrengthClamped(t *testing.T) {
	profile := Profile{
		Name: "boosted",
		Voters: []Voter{
			{Family: indicators.FamilyRSI, Weight: 1, Rules: []Rule{
				rule("oversold", Long, 0.9, when("rsi", OpLess, 30)),
			}},
		},
		Modifiers:   []Modifier{{Name: "always", When: []Condition{when("close", OpGreater, 0)}, Multiplier: 3}},
		MinStrength: 0.5,
		Exits:       Exits{StopLossPercent: 1, TakeProfitPercent: 2},
	}
	snap := indicators.WithValues(indicators.Snapshot{Close: 100, RSI: 20}, indicators.FamilyRSI, indicators.FamilyATR)

	sig := NewComposer().Compose(snap, profile)
	assert.Equal(t, 1.0, sig.Strength)
	assert.True(t, sig.Actionable(profile.MinStrength))
}

// TestCompose_ATRStop tests the ATR multiple stop in the swing profile
func TestCompose_ATRStop(t *testing.T) {
	snap := indicators.WithValues(indicators.Snapshot{
		Close: 112,
		EMA:   indicators.EMASet{Fast: 110, Slow: 105, Trend: 100},
		ATR:   2,
	}, indicators.FamilyEMA, indicators.FamilyATR)

	sig := NewComposer().Compose(snap, SwingProfile())
	assert.Equal(t, Long, sig.Direction)
	assert.InDelta(t, 0.8, sig.Strength, 1e-9)
	assert.InDelta(t, 108.0, sig.Stop, 1e-9)
	assert.InDelta(t, 120.96, sig.Target, 1e-9)
}

// TestCompose_Deterministic tests that identical input yields an identical signal, ID included
func TestCompose_Deterministic(t *testing.T) {
	c := NewComposer()
	a := c.Compose(bullishSnapshot(), MultiIndicatorProfile())
	b := NewComposer().Compose(bullishSnapshot(), MultiIndicatorProfile())
	assert.Equal(t, a, b)

	later := bullishSnapshot()
	later.Timestamp = testTime.Add(15 * time.Minute)
	assert.NotEqual(t, a.ID, c.Compose(later, MultiIndicatorProfile()).ID)

	other := bullishSnapshot()
	other.Symbol = "ETHUSDT"
	assert.NotEqual(t, a.ID, c.Compose(other, MultiIndicatorProfile()).ID)
	assert.NotEqual(t, a.ID, c.Compose(bullishSnapshot(), ScalpingProfile()).ID)
}

// TestProfile_Validate tests profile validation
func TestProfile_Validate(t *testing.T) {
	for _, p := range BuiltinProfiles() {
		assert.NoError(t, p.Validate(), p.Name)
	}

	bad := MultiIndicatorProfile()
	bad.Voters[0].Rules[0].When[0].Field = "rsi.fast"
	assert.ErrorContains(t, bad.Validate(), "unknown field")

	bad = MultiIndicatorProfile()
	bad.Voters[0].Rules[0].Vote = Flat
	assert.ErrorContains(t, bad.Validate(), "LONG or SHORT")

	bad = MultiIndicatorProfile()
	bad.Voters[0].Rules[0].Score = 1.5
	assert.ErrorContains(t, bad.Validate(), "score")

	bad = MultiIndicatorProfile()
	bad.Voters[0].Rules[0].When[0].Op = "=="
	assert.ErrorContains(t, bad.Validate(), "unknown operator")

	bad = MultiIndicatorProfile()
	bad.Exits.StopLossPercent = 0
	assert.Error(t, bad.Validate())
}

// TestParseProfiles tests loading a profile from YAML
func TestParseProfiles(t *testing.T) {
	doc := []byte(`
profiles:
  - name: mean_reversion
    min_strength: 0.5
    voters:
      - family: rsi
        weight: 0.6
        rules:
          - name: oversold
            vote: LONG
            score: 0.8
            when:
              - {field: rsi, op: "<", value: 30}
      - family: bb
        weight: 0.4
        rules:
          - name: below lower band
            vote: buy
            score: 0.7
            when:
              - {field: close, op: "<", ref: bb.lower}
    exits:
      stop_loss_percent: 1.5
      take_profit_percent: 3
`)
	profiles, err := ParseProfiles(doc)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "mean_reversion", p.Name)
	assert.Equal(t, indicators.FamilyBollinger, p.Voters[1].Family)
	assert.Equal(t, Long, p.Voters[1].Rules[0].Vote)
	assert.Equal(t, "bb.lower", p.Voters[1].Rules[0].When[0].Ref)

	snap := indicators.WithValues(indicators.Snapshot{
		Close: 90,
		RSI:   25,
		Bands: indicators.BollingerBands{Lower: 92, Middle: 100, Upper: 108},
	}, indicators.FamilyRSI, indicators.FamilyBollinger)
	sig := NewComposer().Compose(snap, p)
	assert.Equal(t, Long, sig.Direction)
	assert.InDelta(t, (0.6*0.8+0.4*0.7)/1.0, sig.Strength, 1e-9)
}

// TestParseProfiles_Invalid tests rejection of malformed profile files
func TestParseProfiles_Invalid(t *testing.T) {
	_, err := ParseProfiles([]byte("profiles: []"))
	assert.Error(t, err)

	_, err = ParseProfiles([]byte(`
profiles:
  - name: broken
    voters:
      - family: rsi
        weight: 1
        rules:
          - {name: x, vote: SIDEWAYS, score: 0.5, when: [{field: rsi, op: "<", value: 30}]}
    exits: {stop_loss_percent: 1, take_profit_percent: 2}
`))
	assert.Error(t, err)
}

// TestRegistry_Load tests registering profiles from a file alongside the built-ins
func TestRegistry_Load(t *testing.T) {
	data, err := MarshalProfiles([]Profile{ScalpingProfile()})
	require.NoError(t, err)

	custom, err := ParseProfiles(data)
	require.NoError(t, err)
	custom[0].Name = "scalping_fast"
	custom[0].MinStrength = 0.65
	data, err = MarshalProfiles(custom)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	reg := NewRegistry()
	require.NoError(t, reg.Load(path))
	assert.Equal(t, []string{"multi_indicator", "scalping", "scalping_fast", "swing"}, reg.Names())

	p, err := reg.Get("scalping_fast")
	require.NoError(t, err)
	assert.Equal(t, 0.65, p.MinStrength)

	_, err = reg.Get("missing")
	assert.Error(t, err)
}

// TestParseDirection tests direction names and aliases
func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("sell")
	require.NoError(t, err)
	assert.Equal(t, Short, d)
	assert.Equal(t, "SHORT", d.String())
	assert.Equal(t, Long, d.Opposite())

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
