package indicators

// EMASeries returns the exponential moving average for every position from
// index period-1 onwards. The first value is the SMA of the first period
// values; each later value applies alpha = 2/(period+1).
func EMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, invalidPeriod("EMA", period)
	}
	if len(values) < period {
		return nil, insufficient("EMA", period, len(values))
	}

	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values)-period+1)
	out[0] = mean(values[:period])
	for i := 1; i < len(out); i++ {
		price := values[period-1+i]
		out[i] = price*alpha + out[i-1]*(1-alpha)
	}
	return out, nil
}

// EMA returns the latest exponential moving average value
func EMA(values []float64, period int) (float64, error) {
	series, err := EMASeries(values, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// EMASet holds the three moving averages used for trend alignment
type EMASet struct {
	Fast  float64
	Slow  float64
	Trend float64
}

// EMAs computes the fast/slow/trend set. All three must be computable.
func EMAs(values []float64, fast, slow, trend int) (EMASet, error) {
	var set EMASet
	var err error
	if set.Fast, err = EMA(values, fast); err != nil {
		return EMASet{}, err
	}
	if set.Slow, err = EMA(values, slow); err != nil {
		return EMASet{}, err
	}
	if set.Trend, err = EMA(values, trend); err != nil {
		return EMASet{}, err
	}
	return set, nil
}
