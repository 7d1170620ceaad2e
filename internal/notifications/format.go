package notifications

import (
	"fmt"
	"sort"
	"strings"
)

var eventEmoji = map[EventType]string{
	EventSignal:         "📡",
	EventEntry:          "🟢",
	EventExit:           "🔴",
	EventRiskVeto:       "⚠️",
	EventEmergencyStop:  "🚨",
	EventReconciliation: "🔄",
	EventDailyReport:    "📊",
	EventExitAlert:      "⏰",
}

var eventColor = map[EventType]int{
	EventSignal:         0x3498DB,
	EventEntry:          0x2ECC71,
	EventExit:           0xE67E22,
	EventRiskVeto:       0xF1C40F,
	EventEmergencyStop:  0xE74C3C,
	EventReconciliation: 0x9B59B6,
	EventDailyReport:    0x95A5A6,
	EventExitAlert:      0xE67E22,
}

func title(e Event) string {
	emoji, ok := eventEmoji[e.Type]
	if !ok {
		emoji = "ℹ️"
	}
	if e.Symbol == "" {
		return fmt.Sprintf("%s %s", emoji, e.Type)
	}
	return fmt.Sprintf("%s %s %s", emoji, e.Type, e.Symbol)
}

// payloadLines renders the payload as sorted "key: value" lines
func payloadLines(payload map[string]interface{}) []string {
	keys := sortedKeys(payload)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, formatValue(payload[k])))
	}
	return lines
}

func sortedKeys(payload map[string]interface{}) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", x), "0"), ".")
	default:
		return fmt.Sprint(x)
	}
}

// plainText is the message body shared by chat sinks
func plainText(e Event) string {
	var b strings.Builder
	b.WriteString(title(e))
	if e.Message != "" {
		b.WriteString("\n\n")
		b.WriteString(e.Message)
	}
	if lines := payloadLines(e.Payload); len(lines) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}
