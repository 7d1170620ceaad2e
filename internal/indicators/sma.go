package indicators

import "math"

// SMA returns the simple moving average of the last period values
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, invalidPeriod("SMA", period)
	}
	if len(values) < period {
		return 0, insufficient("SMA", period, len(values))
	}
	return mean(values[len(values)-period:]), nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev uses the n-1 denominator
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
