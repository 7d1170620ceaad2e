package notifications

import (
	"context"
	"time"
)

// EventType classifies an alert
type EventType string

const (
	EventSignal         EventType = "SIGNAL"
	EventEntry          EventType = "ENTRY"
	EventExit           EventType = "EXIT"
	EventRiskVeto       EventType = "RISK_VETO"
	EventEmergencyStop  EventType = "EMERGENCY_STOP"
	EventReconciliation EventType = "RECONCILIATION"
	EventDailyReport    EventType = "DAILY_REPORT"
	// a stop or target crossed while orders are not permitted
	EventExitAlert EventType = "EXIT_ALERT"
)

// Event is a structured alert. Payload values must be JSON-encodable.
type Event struct {
	Type      EventType              `json:"type"`
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent stamps an event with the current time
func NewEvent(t EventType, symbol, message string, payload map[string]interface{}) Event {
	return Event{Type: t, Symbol: symbol, Message: message, Payload: payload, Timestamp: time.Now().UTC()}
}

// Notifier is fire-and-forget: Publish must never block the caller
type Notifier interface {
	Publish(Event)
}

// Sink delivers events to one channel
type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(Event) {}

var eventTypes = []EventType{
	EventSignal, EventEntry, EventExit, EventRiskVeto, EventEmergencyStop, EventReconciliation, EventDailyReport,
	EventExitAlert,
}

// KnownEventType reports whether t is one of the defined event types
func KnownEventType(t EventType) bool {
	for _, known := range eventTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Filter forwards only the listed event types. An empty list forwards everything.
type Filter struct {
	next    Notifier
	allowed map[EventType]bool
}

// NewFilter wraps next with an event type allow-list
func NewFilter(next Notifier, allowed ...EventType) *Filter {
	f := &Filter{next: next}
	if len(allowed) > 0 {
		f.allowed = make(map[EventType]bool, len(allowed))
		for _, t := range allowed {
			f.allowed[t] = true
		}
	}
	return f
}

func (f *Filter) Publish(event Event) {
	if f.allowed != nil && !f.allowed[event.Type] {
		return
	}
	f.next.Publish(event)
}
