// Package featuregate answers whether automated trading is permitted for the session.
package featuregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// FeatureAutomatedTrading is the feature that unlocks order placement
const FeatureAutomatedTrading = "automated_trading"

// Gate is consulted once per cycle before any order is placed
type Gate interface {
	AutomationPermitted(ctx context.Context) bool
}

// Static always returns the same answer
type Static bool

func (s Static) AutomationPermitted(context.Context) bool { return bool(s) }

var freeFeatures = map[string]bool{
	"basic_dashboard":  true,
	"manual_trading":   true,
	"basic_logs":       true,
	"price_monitoring": true,
}

var paidTiers = map[string]bool{
	"premium": true,
	"pro":     true,
}

// licenseFile is the on-disk license format
type licenseFile struct {
	SubscriptionType string   `json:"subscription_type"`
	ExpiryDate       string   `json:"expiry_date"`
	LicenseKey       string   `json:"license_key"`
	Features         []string `json:"features"`
	PaymentVerified  bool     `json:"payment_verified"`
}

// Status is the parsed license
type Status struct {
	Tier     string
	Expiry   time.Time
	Verified bool
	Features []string
}

// License gates features on a JSON license file read once at start-up.
// Expiry is evaluated on every call.
type License struct {
	status Status
	now    func() time.Time
}

// LoadLicense reads the license. A missing file yields the free tier.
func LoadLicense(path string) (*License, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &License{status: Status{Tier: "free"}, now: time.Now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read license: %w", err)
	}
	return ParseLicense(data)
}

// ParseLicense parses license JSON
func ParseLicense(data []byte) (*License, error) {
	var lf licenseFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse license: %w", err)
	}

	status := Status{
		Tier:     strings.ToLower(strings.TrimSpace(lf.SubscriptionType)),
		Verified: lf.PaymentVerified,
		Features: lf.Features,
	}
	if status.Tier == "" {
		status.Tier = "free"
	}
	if lf.ExpiryDate != "" {
		expiry, err := parseExpiry(lf.ExpiryDate)
		if err != nil {
			return nil, err
		}
		status.Expiry = expiry
	}
	return &License{status: status, now: time.Now}, nil
}

func parseExpiry(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid license expiry %q", s)
}

// SetClock replaces the clock used for expiry checks
func (l *License) SetClock(now func() time.Time) {
	l.now = now
}

// Status returns the parsed license
func (l *License) Status() Status {
	return l.status
}

// Active reports a verified, unexpired license
func (l *License) Active() bool {
	return l.status.Verified && !l.status.Expiry.IsZero() && l.now().Before(l.status.Expiry)
}

// HasFeature reports access to a named feature. Free features are always
// available; others need an active paid tier or an explicit grant.
func (l *License) HasFeature(feature string) bool {
	if freeFeatures[feature] {
		return true
	}
	if !l.Active() {
		return false
	}
	if paidTiers[l.status.Tier] {
		return true
	}
	for _, f := range l.status.Features {
		if f == feature {
			return true
		}
	}
	return false
}

func (l *License) AutomationPermitted(context.Context) bool {
	return l.HasFeature(FeatureAutomatedTrading)
}
