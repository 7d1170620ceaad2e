package indicators

import "fmt"

// BollingerBands holds the latest band values
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
	// Width is (upper-lower)/middle
	Width float64
	// PercentB is the close's position inside the bands, 0 at lower and 1 at upper
	PercentB float64
	Squeeze  bool
}

// squeezeFactor marks a squeeze when the current width is below 80% of the
// mean width over the period windows before the current one.
const squeezeFactor = 0.8

// Bollinger computes SMA(period) ± k·stddev(period) on the latest window.
// Squeeze detection needs 2·period values and is left false otherwise.
func Bollinger(values []float64, period int, k float64) (BollingerBands, error) {
	if period <= 1 {
		return BollingerBands{}, invalidPeriod("Bollinger", period)
	}
	if k <= 0 {
		return BollingerBands{}, fmt.Errorf("invalid Bollinger multiplier %.2f", k)
	}
	if len(values) < period {
		return BollingerBands{}, insufficient("Bollinger", period, len(values))
	}

	upper, middle, lower := bandsAt(values, len(values), period, k)
	bands := BollingerBands{
		Upper:  upper,
		Middle: middle,
		Lower:  lower,
		Width:  bandWidth(upper, middle, lower),
	}

	last := values[len(values)-1]
	if upper > lower {
		bands.PercentB = (last - lower) / (upper - lower)
	} else {
		bands.PercentB = 0.5
	}

	if len(values) >= 2*period {
		sum := 0.0
		for end := len(values) - period; end < len(values); end++ {
			u, m, l := bandsAt(values, end, period, k)
			sum += bandWidth(u, m, l)
		}
		avgWidth := sum / float64(period)
		bands.Squeeze = bands.Width < avgWidth*squeezeFactor
	}

	return bands, nil
}

// bandsAt computes the bands for the window ending just before index end
func bandsAt(values []float64, end, period int, k float64) (upper, middle, lower float64) {
	window := values[end-period : end]
	middle = mean(window)
	sd := sampleStdDev(window)
	return middle + k*sd, middle, middle - k*sd
}

func bandWidth(upper, middle, lower float64) float64 {
	if middle == 0 {
		return 0
	}
	return (upper - lower) / middle
}
