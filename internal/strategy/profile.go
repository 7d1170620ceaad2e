package strategy

import (
	"fmt"

	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
)

// Operator compares a snapshot field against a threshold
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

func (op Operator) apply(a, b float64) (bool, error) {
	switch op {
	case OpLess:
		return a < b, nil
	case OpLessEqual:
		return a <= b, nil
	case OpGreater:
		return a > b, nil
	case OpGreaterEqual:
		return a >= b, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

// Condition compares Field against Value, or against Ref*Factor when Ref is set
type Condition struct {
	Field  string   `json:"field" yaml:"field"`
	Op     Operator `json:"op" yaml:"op"`
	Value  float64  `json:"value,omitempty" yaml:"value,omitempty"`
	Ref    string   `json:"ref,omitempty" yaml:"ref,omitempty"`
	Factor float64  `json:"factor,omitempty" yaml:"factor,omitempty"` // defaults to 1
}

// Eval reports whether the condition holds. It is false whenever a referenced
// field is unavailable in the snapshot.
func (c Condition) Eval(snap indicators.Snapshot) bool {
	left, ok := snap.Field(c.Field)
	if !ok {
		return false
	}
	right := c.Value
	if c.Ref != "" {
		ref, ok := snap.Field(c.Ref)
		if !ok {
			return false
		}
		factor := c.Factor
		if factor == 0 {
			factor = 1
		}
		right = ref * factor
	}
	matched, err := c.Op.apply(left, right)
	return err == nil && matched
}

func (c Condition) validate() error {
	if _, ok := indicators.FieldFamily(c.Field); !ok {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	if c.Ref != "" {
		if _, ok := indicators.FieldFamily(c.Ref); !ok {
			return fmt.Errorf("unknown ref field %q", c.Ref)
		}
	}
	if _, err := c.Op.apply(0, 0); err != nil {
		return err
	}
	return nil
}

func (c Condition) String() string {
	if c.Ref != "" {
		if c.Factor != 0 && c.Factor != 1 {
			return fmt.Sprintf("%s %s %s*%g", c.Field, c.Op, c.Ref, c.Factor)
		}
		return fmt.Sprintf("%s %s %s", c.Field, c.Op, c.Ref)
	}
	return fmt.Sprintf("%s %s %g", c.Field, c.Op, c.Value)
}

func allHold(conds []Condition, snap indicators.Snapshot) bool {
	for _, c := range conds {
		if !c.Eval(snap) {
			return false
		}
	}
	return true
}

// Rule casts a vote when all of its conditions hold
type Rule struct {
	Name  string      `json:"name" yaml:"name"`
	When  []Condition `json:"when" yaml:"when"`
	Vote  Direction   `json:"vote" yaml:"vote"`
	Score float64     `json:"score" yaml:"score"` // conviction in (0,1]
}

// Voter is a weighted indicator family with rules checked in order; the first
// matching rule is the family's vote.
type Voter struct {
	Family indicators.Family `json:"family" yaml:"family"`
	Weight float64           `json:"weight" yaml:"weight"`
	Rules  []Rule            `json:"rules" yaml:"rules"`
}

// Modifier scales the composed strength when its conditions hold
type Modifier struct {
	Name       string      `json:"name" yaml:"name"`
	When       []Condition `json:"when" yaml:"when"`
	Multiplier float64     `json:"multiplier" yaml:"multiplier"`
}

// Exits configures the suggested stop and target
type Exits struct {
	StopLossPercent   float64 `json:"stop_loss_percent" yaml:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent" yaml:"take_profit_percent"`
	// ATRStopMultiplier places the stop k*ATR from entry when ATR is available,
	// otherwise StopLossPercent applies
	ATRStopMultiplier float64 `json:"atr_stop_multiplier,omitempty" yaml:"atr_stop_multiplier,omitempty"`
	// TrailingPercent trails the stop behind the best price once a position is open
	TrailingPercent float64 `json:"trailing_percent,omitempty" yaml:"trailing_percent,omitempty"`
}

// Profile is a named, data-only strategy configuration
type Profile struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Voters      []Voter    `json:"voters" yaml:"voters"`
	Modifiers   []Modifier `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	MinStrength float64    `json:"min_strength" yaml:"min_strength"`
	Exits       Exits      `json:"exits" yaml:"exits"`
}

// Validate checks weights, scores, fields and exits
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if len(p.Voters) == 0 {
		return fmt.Errorf("profile %s: at least one voter is required", p.Name)
	}
	if p.MinStrength < 0 || p.MinStrength > 1 {
		return fmt.Errorf("profile %s: min_strength must be within [0,1], got %.2f", p.Name, p.MinStrength)
	}
	seen := make(map[indicators.Family]bool)
	for _, v := range p.Voters {
		if !knownFamily(v.Family) {
			return fmt.Errorf("profile %s: unknown family %q", p.Name, v.Family)
		}
		if seen[v.Family] {
			return fmt.Errorf("profile %s: family %s listed twice", p.Name, v.Family)
		}
		seen[v.Family] = true
		if v.Weight < 0 {
			return fmt.Errorf("profile %s: weight for %s cannot be negative", p.Name, v.Family)
		}
		for _, r := range v.Rules {
			if r.Vote == Flat {
				return fmt.Errorf("profile %s: rule %s must vote LONG or SHORT", p.Name, r.Name)
			}
			if r.Score <= 0 || r.Score > 1 {
				return fmt.Errorf("profile %s: rule %s score must be within (0,1]", p.Name, r.Name)
			}
			if len(r.When) == 0 {
				return fmt.Errorf("profile %s: rule %s has no conditions", p.Name, r.Name)
			}
			for _, c := range r.When {
				if err := c.validate(); err != nil {
					return fmt.Errorf("profile %s: rule %s: %w", p.Name, r.Name, err)
				}
			}
		}
	}
	for _, m := range p.Modifiers {
		if m.Multiplier <= 0 {
			return fmt.Errorf("profile %s: modifier %s multiplier must be positive", p.Name, m.Name)
		}
		for _, c := range m.When {
			if err := c.validate(); err != nil {
				return fmt.Errorf("profile %s: modifier %s: %w", p.Name, m.Name, err)
			}
		}
	}
	if p.Exits.StopLossPercent <= 0 {
		return fmt.Errorf("profile %s: stop_loss_percent must be positive", p.Name)
	}
	if p.Exits.ATRStopMultiplier < 0 {
		return fmt.Errorf("profile %s: atr_stop_multiplier cannot be negative", p.Name)
	}
	if p.Exits.TakeProfitPercent <= 0 {
		return fmt.Errorf("profile %s: take_profit_percent must be positive", p.Name)
	}
	if p.Exits.TrailingPercent < 0 {
		return fmt.Errorf("profile %s: trailing_percent cannot be negative", p.Name)
	}
	return nil
}

func knownFamily(f indicators.Family) bool {
	for _, known := range indicators.Families {
		if f == known {
			return true
		}
	}
	return false
}
