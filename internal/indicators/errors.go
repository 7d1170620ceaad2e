package indicators

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a series is shorter than an indicator's window.
var ErrInsufficientData = errors.New("insufficient data")

func insufficient(indicator string, need, have int) error {
	return fmt.Errorf("%w for %s: need %d values, have %d", ErrInsufficientData, indicator, need, have)
}

func invalidPeriod(indicator string, period int) error {
	return fmt.Errorf("invalid %s period %d", indicator, period)
}
