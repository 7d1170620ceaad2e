package featuregate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func license(t *testing.T, body string) *License {
	t.Helper()
	l, err := ParseLicense([]byte(body))
	require.NoError(t, err)
	l.SetClock(func() time.Time { return now })
	return l
}

// TestStatic tests the fixed gate
func TestStatic(t *testing.T) {
	assert.True(t, Static(true).AutomationPermitted(context.Background()))
	assert.False(t, Static(false).AutomationPermitted(context.Background()))
}

// TestLicense_PaidTier tests premium and pro licenses
func TestLicense_PaidTier(t *testing.T) {
	ctx := context.Background()
	premium := license(t, `{"subscription_type":"premium","expiry_date":"2024-07-01T00:00:00","payment_verified":true}`)
	assert.True(t, premium.AutomationPermitted(ctx))

	pro := license(t, `{"subscription_type":"PRO","expiry_date":"2024-07-01","payment_verified":true}`)
	assert.True(t, pro.AutomationPermitted(ctx))

	expired := license(t, `{"subscription_type":"premium","expiry_date":"2024-05-01T00:00:00Z","payment_verified":true}`)
	assert.False(t, expired.AutomationPermitted(ctx))

	unverified := license(t, `{"subscription_type":"premium","expiry_date":"2024-07-01","payment_verified":false}`)
	assert.False(t, unverified.AutomationPermitted(ctx))

	noExpiry := license(t, `{"subscription_type":"premium","payment_verified":true}`)
	assert.False(t, noExpiry.AutomationPermitted(ctx))
}

// TestLicense_FeatureGrant tests explicit feature lists
func TestLicense_FeatureGrant(t *testing.T) {
	l := license(t, `{"subscription_type":"custom","expiry_date":"2024-07-01","payment_verified":true,"features":["automated_trading"]}`)
	assert.True(t, l.HasFeature(FeatureAutomatedTrading))
	assert.False(t, l.HasFeature("ai_analysis"))
	assert.True(t, l.HasFeature("price_monitoring"))
}

// TestLoadLicense tests file loading
func TestLoadLicense(t *testing.T) {
	dir := t.TempDir()

	free, err := LoadLicense(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "free", free.Status().Tier)
	assert.False(t, free.AutomationPermitted(context.Background()))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"expiry_date":"soon"}`), 0600))
	_, err = LoadLicense(bad)
	assert.Error(t, err)

	good := filepath.Join(dir, "license.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"subscription_type":"premium","expiry_date":"2999-01-01","payment_verified":true}`), 0600))
	l, err := LoadLicense(good)
	require.NoError(t, err)
	assert.True(t, l.AutomationPermitted(context.Background()))
}
