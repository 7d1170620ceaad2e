package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

func makeCandles(closes []float64) []types.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		data[i] = types.OHLCV{
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    1000,
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute),
		}
	}
	return data
}

func rampCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// TestEMASeries_SeededWithSMA tests the SMA seed and alpha smoothing
func TestEMASeries_SeededWithSMA(t *testing.T) {
	series, err := EMASeries([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, series, 1e-9)
}

// TestEMA_InsufficientData tests the error for short series
func TestEMA_InsufficientData(t *testing.T) {
	_, err := EMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// TestRSI_WilderSmoothing tests RSI against hand-computed values
func TestRSI_WilderSmoothing(t *testing.T) {
	value, err := RSI([]float64{1, 2, 1}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, value, 1e-9)

	// avgGain (0.5*1+2)/2 = 1.25, avgLoss 0.5/2 = 0.25, RS = 5
	value, err = RSI([]float64{1, 2, 1, 3}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 100-100/6.0, value, 1e-9)
}

// TestRSI_Extremes tests monotonic and flat series
func TestRSI_Extremes(t *testing.T) {
	up, err := RSI(rampCloses(20, 100, 1), 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, up)

	flat, err := RSI(rampCloses(20, 100, 0), 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, flat)

	down, err := RSI(rampCloses(20, 100, -1), 14)
	require.NoError(t, err)
	assert.Equal(t, 0.0, down)
}

// TestRSI_InsufficientData tests that RSI needs period+1 values
func TestRSI_InsufficientData(t *testing.T) {
	_, err := RSI(rampCloses(14, 100, 1), 14)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// TestMACD_TrendDirection tests MACD sign on trending data
func TestMACD_TrendDirection(t *testing.T) {
	up, err := MACD(rampCloses(60, 100, 1), 12, 26, 9)
	require.NoError(t, err)
	assert.Greater(t, up.Line, 0.0)

	down, err := MACD(rampCloses(60, 200, -1), 12, 26, 9)
	require.NoError(t, err)
	assert.Less(t, down.Line, 0.0)
}

// TestMACD_Rising tests histogram direction after a reversal
func TestMACD_Rising(t *testing.T) {
	closes := append(rampCloses(40, 200, -1), rampCloses(5, 161, 3)...)
	result, err := MACD(closes, 12, 26, 9)
	require.NoError(t, err)
	assert.True(t, result.Rising())
}

// TestMACD_Validation tests period checks and minimum length
func TestMACD_Validation(t *testing.T) {
	_, err := MACD(rampCloses(34, 100, 1), 12, 26, 9)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = MACD(rampCloses(100, 100, 1), 26, 12, 9)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientData)

	_, err = MACD(rampCloses(35, 100, 1), 12, 26, 9)
	assert.NoError(t, err)
}

// TestBollinger_Bands tests band math with sample standard deviation
func TestBollinger_Bands(t *testing.T) {
	bands, err := Bollinger([]float64{1, 2, 3, 4, 5}, 5, 2)
	require.NoError(t, err)

	sd := math.Sqrt(2.5)
	assert.InDelta(t, 3.0, bands.Middle, 1e-9)
	assert.InDelta(t, 3+2*sd, bands.Upper, 1e-9)
	assert.InDelta(t, 3-2*sd, bands.Lower, 1e-9)
	assert.InDelta(t, (5-bands.Lower)/(bands.Upper-bands.Lower), bands.PercentB, 1e-9)
	assert.False(t, bands.Squeeze, "squeeze needs 2n values")
}

// TestBollinger_Squeeze tests squeeze detection after volatility collapses
func TestBollinger_Squeeze(t *testing.T) {
	closes := make([]float64, 0, 40)
	for i := 0; i < 30; i++ {
		if i%2 == 0 {
			closes = append(closes, 110)
		} else {
			closes = append(closes, 90)
		}
	}
	for i := 0; i < 10; i++ {
		closes = append(closes, 100+float64(i%2)*0.1)
	}

	bands, err := Bollinger(closes, 10, 2)
	require.NoError(t, err)
	assert.True(t, bands.Squeeze)

	// the baseline is the ten windows before the current one
	bands, err = Bollinger(closes[len(closes)-20:], 10, 2)
	require.NoError(t, err)
	assert.True(t, bands.Squeeze)
	bands, err = Bollinger(closes[len(closes)-19:], 10, 2)
	require.NoError(t, err)
	assert.False(t, bands.Squeeze)
}

// TestBollinger_InsufficientData tests the minimum window
func TestBollinger_InsufficientData(t *testing.T) {
	_, err := Bollinger([]float64{1, 2, 3}, 20, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// TestATR_ConstantRange tests ATR on candles with a fixed true range
func TestATR_ConstantRange(t *testing.T) {
	atr, err := ATR(makeCandles(rampCloses(30, 100, 0)), 14)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, atr, 1e-9)

	_, err = ATR(makeCandles(rampCloses(14, 100, 0)), 14)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// TestTrueRange_Gap tests that gaps widen the true range
func TestTrueRange_Gap(t *testing.T) {
	candle := types.OHLCV{Open: 110, High: 111, Low: 109, Close: 110}
	assert.Equal(t, 11.0, TrueRange(candle, 100))
}

// TestVolumeRatio tests the ratio against the rolling mean
func TestVolumeRatio(t *testing.T) {
	candles := makeCandles(rampCloses(4, 100, 1))
	for i := range candles {
		candles[i].Volume = 100
	}
	candles[3].Volume = 300

	ratio, err := VolumeRatio(candles, 4)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, ratio, 1e-9)

	_, err = VolumeRatio(candles, 20)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func triangleWave(n int) []float64 {
	pattern := []float64{100, 102.5, 105, 107.5, 110, 107.5, 105, 102.5}
	out := make([]float64, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

// TestSupportResistance_ClustersTouches tests clustering and ranking of pivots
func TestSupportResistance_ClustersTouches(t *testing.T) {
	candles := makeCandles(triangleWave(42))
	levels, err := SupportResistance(candles, LevelParams{Lookback: 42, Pivot: 2, Tolerance: 0.005})
	require.NoError(t, err)

	require.NotEmpty(t, levels.Resistance)
	require.NotEmpty(t, levels.Support)
	assert.InDelta(t, 110.5, levels.Resistance[0].Price, 1e-9)
	assert.Equal(t, 5, levels.Resistance[0].Touches)
	assert.InDelta(t, 99.5, levels.Support[0].Price, 1e-9)
	assert.Equal(t, 4, levels.Support[0].Touches)
	assert.InDelta(t, 99.5, levels.NearestSupport, 1e-9)
	assert.InDelta(t, 110.5, levels.NearestResistance, 1e-9)
	assert.Equal(t, candles[36].Timestamp, levels.Resistance[0].LastTouch)
}

// TestSupportResistance_FallbackToRange tests the range extremes without pivots
func TestSupportResistance_FallbackToRange(t *testing.T) {
	candles := makeCandles(rampCloses(30, 100, 1))
	levels, err := SupportResistance(candles, LevelParams{Lookback: 30, Pivot: 2, Tolerance: 0.005})
	require.NoError(t, err)
	assert.Empty(t, levels.Resistance)
	assert.InDelta(t, 99.5, levels.NearestSupport, 1e-9)
	assert.InDelta(t, 129.5, levels.NearestResistance, 1e-9)
}

// TestSupportResistance_InsufficientData tests the lookback requirement
func TestSupportResistance_InsufficientData(t *testing.T) {
	_, err := SupportResistance(makeCandles(rampCloses(10, 100, 1)), LevelParams{Lookback: 50, Pivot: 2, Tolerance: 0.005})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// TestCompute_AllFamilies tests a snapshot over a long series
func TestCompute_AllFamilies(t *testing.T) {
	params := DefaultParams()
	candles := makeCandles(triangleWave(params.MinCandles() + 10))

	snap := Compute("BTCUSDT", candles, params)
	assert.Equal(t, len(Families), snap.ComputedCount())
	assert.Empty(t, snap.Missing())
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, candles[len(candles)-1].Timestamp, snap.Timestamp)

	rsi, ok := snap.Field("rsi")
	assert.True(t, ok)
	assert.Equal(t, snap.RSI, rsi)
}

// TestCompute_PartialHistory tests that short history leaves families out without failing
func TestCompute_PartialHistory(t *testing.T) {
	snap := Compute("ETHUSDT", makeCandles(rampCloses(30, 100, 1)), DefaultParams())

	assert.True(t, snap.Has(FamilyRSI))
	assert.True(t, snap.Has(FamilyATR))
	assert.True(t, snap.Has(FamilyVolume))
	assert.True(t, snap.Has(FamilyBollinger))
	assert.False(t, snap.Has(FamilyEMA))
	assert.False(t, snap.Has(FamilyMACD))
	assert.False(t, snap.Has(FamilyLevels))
	assert.ErrorIs(t, snap.Err(FamilyEMA), ErrInsufficientData)

	_, ok := snap.Field("ema.trend")
	assert.False(t, ok)
	last, ok := snap.Field("close")
	assert.True(t, ok)
	assert.Equal(t, 129.0, last)
}

// TestCompute_Empty tests an empty series
func TestCompute_Empty(t *testing.T) {
	snap := Compute("BTCUSDT", nil, DefaultParams())
	assert.Equal(t, 0, snap.ComputedCount())
	assert.Len(t, snap.Missing(), len(Families))
}

// TestFieldFamily tests field metadata used by profile validation
func TestFieldFamily(t *testing.T) {
	family, ok := FieldFamily("macd.histogram_delta")
	assert.True(t, ok)
	assert.Equal(t, FamilyMACD, family)

	_, ok = FieldFamily("nope")
	assert.False(t, ok)
	assert.Contains(t, FieldNames(), "support.distance")
}
