package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
)

// Direction is the side a signal recommends
type Direction int

const (
	Flat Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Flat:
		return "FLAT"
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Sign returns +1 for Long, -1 for Short and 0 for Flat
func (d Direction) Sign() float64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// Opposite returns the reverse side. Flat stays Flat.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Flat
	}
}

// ParseDirection accepts LONG/SHORT/FLAT and the BUY/SELL/HOLD aliases
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return Long, nil
	case "SHORT", "SELL":
		return Short, nil
	case "FLAT", "HOLD", "":
		return Flat, nil
	}
	return Flat, fmt.Errorf("unknown direction %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Vote is one indicator family's contribution to a signal
type Vote struct {
	Family    indicators.Family `json:"family"`
	Rule      string            `json:"rule"`
	Direction Direction         `json:"direction"`
	Score     float64           `json:"score"`
	Weight    float64           `json:"weight"`
}

// Signal is a directional recommendation with suggested prices
type Signal struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"` // 0..1
	Entry     float64   `json:"entry"`
	Stop      float64   `json:"stop"`
	Target    float64   `json:"target"`
	Strategy  string    `json:"strategy"`
	Reason    string    `json:"reason"`
	Votes     []Vote    `json:"votes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Actionable reports whether the signal is directional and at least minStrength strong
func (s Signal) Actionable(minStrength float64) bool {
	return s.Direction != Flat && s.Strength >= minStrength
}

// RiskReward returns |target-entry| / |entry-stop|, or 0 when the stop distance is zero
func (s Signal) RiskReward() float64 {
	risk := s.Entry - s.Stop
	if risk < 0 {
		risk = -risk
	}
	if risk == 0 {
		return 0
	}
	reward := s.Target - s.Entry
	if reward < 0 {
		reward = -reward
	}
	return reward / risk
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s %.2f @ %.4f (SL %.4f, TP %.4f) [%s]",
		s.Symbol, s.Direction, s.Strength, s.Entry, s.Stop, s.Target, s.Strategy)
}
