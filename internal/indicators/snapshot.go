package indicators

import (
	"sort"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// Family identifies a group of related indicator values
type Family string

const (
	FamilyRSI       Family = "rsi"
	FamilyMACD      Family = "macd"
	FamilyEMA       Family = "ema"
	FamilyBollinger Family = "bb"
	FamilyATR       Family = "atr"
	FamilyVolume    Family = "volume"
	FamilyLevels    Family = "levels"
)

// Families lists every family Compute attempts, in a stable order
var Families = []Family{
	FamilyRSI, FamilyMACD, FamilyEMA, FamilyBollinger, FamilyATR, FamilyVolume, FamilyLevels,
}

// Params holds indicator windows. Zero values are not valid; start from DefaultParams.
type Params struct {
	RSIPeriod    int         `json:"rsi_period" yaml:"rsi_period"`
	MACDFast     int         `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow     int         `json:"macd_slow" yaml:"macd_slow"`
	MACDSignal   int         `json:"macd_signal" yaml:"macd_signal"`
	EMAFast      int         `json:"ema_fast" yaml:"ema_fast"`
	EMASlow      int         `json:"ema_slow" yaml:"ema_slow"`
	EMATrend     int         `json:"ema_trend" yaml:"ema_trend"`
	BBPeriod     int         `json:"bb_period" yaml:"bb_period"`
	BBStdDev     float64     `json:"bb_std_dev" yaml:"bb_std_dev"`
	ATRPeriod    int         `json:"atr_period" yaml:"atr_period"`
	VolumePeriod int         `json:"volume_period" yaml:"volume_period"`
	Levels       LevelParams `json:"levels" yaml:"levels"`
}

// DefaultParams returns the standard indicator windows
func DefaultParams() Params {
	return Params{
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		EMAFast:      9,
		EMASlow:      21,
		EMATrend:     50,
		BBPeriod:     20,
		BBStdDev:     2.0,
		ATRPeriod:    14,
		VolumePeriod: 20,
		Levels: LevelParams{
			Lookback:  100,
			Pivot:     2,
			Tolerance: 0.005,
		},
	}
}

// MinCandles returns the candle count needed for every family to be computable
func (p Params) MinCandles() int {
	need := []int{
		p.RSIPeriod + 1,
		p.MACDSlow + p.MACDSignal,
		p.EMATrend, p.EMASlow, p.EMAFast,
		2 * p.BBPeriod,
		p.ATRPeriod + 1,
		p.VolumePeriod,
		p.Levels.Lookback, 2*p.Levels.Pivot + 1,
	}
	longest := 0
	for _, n := range need {
		if n > longest {
			longest = n
		}
	}
	return longest
}

// Snapshot is the set of indicator values for the latest candle. It is a
// fresh value per cycle; families that could not be computed are recorded
// and their fields stay zero.
type Snapshot struct {
	Symbol    string
	Timestamp time.Time
	Close     float64

	RSI         float64
	MACD        MACDResult
	EMA         EMASet
	Bands       BollingerBands
	ATR         float64
	VolumeRatio float64
	Levels      Levels

	computed map[Family]bool
	errs     map[Family]error
}

// Compute evaluates every indicator family over the candles. It never fails;
// families with too little history are left out and reported by Missing.
func Compute(symbol string, candles []types.OHLCV, p Params) Snapshot {
	snap := Snapshot{
		Symbol:   symbol,
		computed: make(map[Family]bool),
		errs:     make(map[Family]error),
	}
	if len(candles) == 0 {
		for _, f := range Families {
			snap.errs[f] = insufficient(string(f), 1, 0)
		}
		return snap
	}

	last := candles[len(candles)-1]
	snap.Timestamp = last.Timestamp
	snap.Close = last.Close
	closes := types.Closes(candles)

	var err error
	if snap.RSI, err = RSI(closes, p.RSIPeriod); err == nil {
		snap.computed[FamilyRSI] = true
	} else {
		snap.errs[FamilyRSI] = err
	}
	if snap.MACD, err = MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal); err == nil {
		snap.computed[FamilyMACD] = true
	} else {
		snap.errs[FamilyMACD] = err
	}
	if snap.EMA, err = EMAs(closes, p.EMAFast, p.EMASlow, p.EMATrend); err == nil {
		snap.computed[FamilyEMA] = true
	} else {
		snap.errs[FamilyEMA] = err
	}
	if snap.Bands, err = Bollinger(closes, p.BBPeriod, p.BBStdDev); err == nil {
		snap.computed[FamilyBollinger] = true
	} else {
		snap.errs[FamilyBollinger] = err
	}
	if snap.ATR, err = ATR(candles, p.ATRPeriod); err == nil {
		snap.computed[FamilyATR] = true
	} else {
		snap.errs[FamilyATR] = err
	}
	if snap.VolumeRatio, err = VolumeRatio(candles, p.VolumePeriod); err == nil {
		snap.computed[FamilyVolume] = true
	} else {
		snap.errs[FamilyVolume] = err
	}
	if snap.Levels, err = SupportResistance(candles, p.Levels); err == nil {
		snap.computed[FamilyLevels] = true
	} else {
		snap.errs[FamilyLevels] = err
	}

	return snap
}

// Has reports whether a family was computed
func (s Snapshot) Has(f Family) bool {
	return s.computed[f]
}

// ComputedCount returns the number of computed families
func (s Snapshot) ComputedCount() int {
	return len(s.computed)
}

// Missing returns the families that could not be computed, sorted by name
func (s Snapshot) Missing() []Family {
	out := make([]Family, 0, len(s.errs))
	for f := range s.errs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Err returns the reason a family is missing
func (s Snapshot) Err(f Family) error {
	return s.errs[f]
}

// WithValues marks the listed families of a hand-built snapshot as computed.
func WithValues(base Snapshot, families ...Family) Snapshot {
	base.computed = make(map[Family]bool, len(families))
	base.errs = make(map[Family]error)
	for _, f := range families {
		base.computed[f] = true
	}
	for _, f := range Families {
		if !base.computed[f] {
			base.errs[f] = insufficient(string(f), 0, 0)
		}
	}
	return base
}
