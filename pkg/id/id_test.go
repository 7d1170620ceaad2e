package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_Sortable tests that IDs generated in sequence sort in order
func TestNew_Sortable(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		assert.Greater(t, next, prev)
		prev = next
	}
}

// TestAt_EncodesTime tests that the ULID carries the given timestamp
func TestAt_EncodesTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	parsed, err := ulid.Parse(At(ts))
	require.NoError(t, err)
	assert.Equal(t, ts.UnixMilli(), int64(parsed.Time()))
}

// TestDerive_Stable tests that derived IDs depend only on time and parts
func TestDerive_Stable(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Derive(ts, "BTCUSDT", "swing")
	assert.Equal(t, a, Derive(ts, "BTCUSDT", "swing"))
	assert.NotEqual(t, a, Derive(ts, "ETHUSDT", "swing"))
	assert.NotEqual(t, a, Derive(ts.Add(time.Minute), "BTCUSDT", "swing"))

	parsed, err := ulid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, ts.UnixMilli(), int64(parsed.Time()))
}
