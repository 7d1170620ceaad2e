package safety

import (
	"sync"
	"time"
)

// EmergencyStop is the process-wide kill switch. While active no new entries
// are made and open positions are driven to closure.
type EmergencyStop struct {
	mu        sync.RWMutex
	active    bool
	reason    string
	trippedAt time.Time
	untilDay  bool
	now       func() time.Time
	listeners []func(active bool, reason string)
}

// NewEmergencyStop creates an inactive switch
func NewEmergencyStop() *EmergencyStop {
	return &EmergencyStop{now: time.Now}
}

// SetClock replaces the time source
func (e *EmergencyStop) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// OnChange registers a callback for every activation and clearance
func (e *EmergencyStop) OnChange(fn func(active bool, reason string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Trip activates the switch until cleared explicitly. Tripping an active
// switch keeps the original reason and returns false.
func (e *EmergencyStop) Trip(reason string) bool {
	return e.trip(reason, false)
}

// TripForDay activates the switch until the next UTC day boundary
func (e *EmergencyStop) TripForDay(reason string) bool {
	return e.trip(reason, true)
}

func (e *EmergencyStop) trip(reason string, untilDay bool) bool {
	e.mu.Lock()
	if e.active {
		// an explicit trip outlives a daily one
		if !untilDay {
			e.untilDay = false
		}
		e.mu.Unlock()
		return false
	}
	e.active = true
	e.reason = reason
	e.trippedAt = e.now()
	e.untilDay = untilDay
	listeners := append([]func(bool, string){}, e.listeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(true, reason)
	}
	return true
}

// Clear deactivates the switch. It returns false when it was not active.
func (e *EmergencyStop) Clear() bool {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return false
	}
	reason := e.reason
	e.active = false
	e.reason = ""
	e.untilDay = false
	e.trippedAt = time.Time{}
	listeners := append([]func(bool, string){}, e.listeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(false, reason)
	}
	return true
}

// ClearForNewDay clears a switch tripped with TripForDay once now is on a
// later UTC day than the trip.
func (e *EmergencyStop) ClearForNewDay(now time.Time) bool {
	e.mu.RLock()
	eligible := e.active && e.untilDay && utcDay(now).After(utcDay(e.trippedAt))
	e.mu.RUnlock()
	if !eligible {
		return false
	}
	return e.Clear()
}

// Active reports whether the switch is on
func (e *EmergencyStop) Active() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// Reason returns why the switch was tripped
func (e *EmergencyStop) Reason() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reason
}

// TrippedAt returns when the switch was tripped, zero when inactive
func (e *EmergencyStop) TrippedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trippedAt
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
