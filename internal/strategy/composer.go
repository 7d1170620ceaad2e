package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/id"
)

// minFamilies is the number of computed families needed before any vote counts
const minFamilies = 2

// Composer turns an indicator snapshot into a signal under a profile. It is
// stateless; the same snapshot and profile always give the same signal.
type Composer struct{}

// NewComposer creates a composer whose signal IDs are derived from the
// instrument, the profile and the candle time. Re-scanning a candle yields the
// same ID.
func NewComposer() *Composer {
	return &Composer{}
}

func signalID(snap indicators.Snapshot, profile string) string {
	if snap.Timestamp.IsZero() {
		return id.New()
	}
	return id.Derive(snap.Timestamp, snap.Symbol, profile, snap.Timestamp.UTC().Format(time.RFC3339Nano))
}

// Compose evaluates every voter of the profile and returns the combined signal.
// Missing indicator families abstain; it never fails.
func (c *Composer) Compose(snap indicators.Snapshot, p Profile) Signal {
	sig := Signal{
		ID:        signalID(snap, p.Name),
		Symbol:    snap.Symbol,
		Direction: Flat,
		Entry:     snap.Close,
		Strategy:  p.Name,
		Timestamp: snap.Timestamp,
	}

	if snap.ComputedCount() < minFamilies {
		sig.Reason = fmt.Sprintf("insufficient indicators: %d computed", snap.ComputedCount())
		return sig
	}

	var long, short, voting float64
	for _, voter := range p.Voters {
		if !snap.Has(voter.Family) {
			continue
		}
		for _, r := range voter.Rules {
			if !allHold(r.When, snap) {
				continue
			}
			sig.Votes = append(sig.Votes, Vote{
				Family:    voter.Family,
				Rule:      r.Name,
				Direction: r.Vote,
				Score:     r.Score,
				Weight:    voter.Weight,
			})
			voting += voter.Weight
			switch r.Vote {
			case Long:
				long += voter.Weight * r.Score
			case Short:
				short += voter.Weight * r.Score
			}
			break
		}
	}

	if long == short || voting == 0 {
		sig.Reason = "no consensus"
		if len(sig.Votes) > 0 {
			sig.Reason = "no consensus: " + describeVotes(sig.Votes)
		}
		return sig
	}

	if long > short {
		sig.Direction = Long
	} else {
		sig.Direction = Short
	}
	strength := math.Abs(long-short) / voting

	var applied []string
	for _, m := range p.Modifiers {
		if len(m.When) == 0 || !allHold(m.When, snap) {
			continue
		}
		strength *= m.Multiplier
		applied = append(applied, m.Name)
	}
	sig.Strength = clamp01(strength)

	sig.Stop, sig.Target = suggestedExits(snap, sig.Direction, p.Exits)

	sig.Reason = describeVotes(sig.Votes)
	if len(applied) > 0 {
		sig.Reason += "; " + strings.Join(applied, ", ")
	}
	return sig
}

func suggestedExits(snap indicators.Snapshot, dir Direction, exits Exits) (stop, target float64) {
	entry := snap.Close
	sign := dir.Sign()

	stopDistance := entry * exits.StopLossPercent / 100
	if exits.ATRStopMultiplier > 0 {
		if atr, ok := snap.Field("atr"); ok && atr > 0 {
			stopDistance = exits.ATRStopMultiplier * atr
		}
	}
	stop = entry - sign*stopDistance
	target = entry + sign*entry*exits.TakeProfitPercent/100
	return stop, target
}

func describeVotes(votes []Vote) string {
	parts := make([]string, 0, len(votes))
	for _, v := range votes {
		parts = append(parts, fmt.Sprintf("%s: %s (%s %.2f)", v.Family, v.Rule, v.Direction, v.Score))
	}
	return strings.Join(parts, ", ")
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
