package indicators

import "sort"

type fieldDef struct {
	family Family // empty for fields that are always available
	get    func(s *Snapshot) float64
}

var fields = map[string]fieldDef{
	"close": {"", func(s *Snapshot) float64 { return s.Close }},

	"rsi": {FamilyRSI, func(s *Snapshot) float64 { return s.RSI }},

	"macd.line":            {FamilyMACD, func(s *Snapshot) float64 { return s.MACD.Line }},
	"macd.signal":          {FamilyMACD, func(s *Snapshot) float64 { return s.MACD.Signal }},
	"macd.histogram":       {FamilyMACD, func(s *Snapshot) float64 { return s.MACD.Histogram }},
	"macd.histogram_delta": {FamilyMACD, func(s *Snapshot) float64 { return s.MACD.Histogram - s.MACD.PrevHistogram }},

	"ema.fast":  {FamilyEMA, func(s *Snapshot) float64 { return s.EMA.Fast }},
	"ema.slow":  {FamilyEMA, func(s *Snapshot) float64 { return s.EMA.Slow }},
	"ema.trend": {FamilyEMA, func(s *Snapshot) float64 { return s.EMA.Trend }},

	"bb.upper":     {FamilyBollinger, func(s *Snapshot) float64 { return s.Bands.Upper }},
	"bb.middle":    {FamilyBollinger, func(s *Snapshot) float64 { return s.Bands.Middle }},
	"bb.lower":     {FamilyBollinger, func(s *Snapshot) float64 { return s.Bands.Lower }},
	"bb.width":     {FamilyBollinger, func(s *Snapshot) float64 { return s.Bands.Width }},
	"bb.percent_b": {FamilyBollinger, func(s *Snapshot) float64 { return s.Bands.PercentB }},
	"bb.squeeze":   {FamilyBollinger, func(s *Snapshot) float64 { return boolValue(s.Bands.Squeeze) }},

	"atr": {FamilyATR, func(s *Snapshot) float64 { return s.ATR }},
	"atr.percent": {FamilyATR, func(s *Snapshot) float64 {
		if s.Close == 0 {
			return 0
		}
		return s.ATR / s.Close * 100
	}},

	"volume.ratio": {FamilyVolume, func(s *Snapshot) float64 { return s.VolumeRatio }},

	"support":    {FamilyLevels, func(s *Snapshot) float64 { return s.Levels.NearestSupport }},
	"resistance": {FamilyLevels, func(s *Snapshot) float64 { return s.Levels.NearestResistance }},
	"support.distance": {FamilyLevels, func(s *Snapshot) float64 {
		return percentOfClose(s, s.Close-s.Levels.NearestSupport)
	}},
	"resistance.distance": {FamilyLevels, func(s *Snapshot) float64 {
		return percentOfClose(s, s.Levels.NearestResistance-s.Close)
	}},
}

// Field returns a named value from the snapshot. The second result is false
// when the name is unknown or its family was not computed.
func (s Snapshot) Field(name string) (float64, bool) {
	def, ok := fields[name]
	if !ok {
		return 0, false
	}
	if def.family != "" && !s.computed[def.family] {
		return 0, false
	}
	return def.get(&s), true
}

// FieldFamily returns the family a field belongs to. Fields such as "close"
// have an empty family.
func FieldFamily(name string) (Family, bool) {
	def, ok := fields[name]
	return def.family, ok
}

// FieldNames lists every known field, sorted
func FieldNames() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func percentOfClose(s *Snapshot, diff float64) float64 {
	if s.Close == 0 {
		return 0
	}
	return diff / s.Close * 100
}
