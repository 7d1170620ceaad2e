package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Decision metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_signals_total",
			Help: "Signals composed per instrument and direction",
		},
		[]string{"symbol", "direction"},
	)

	signalStrength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_signal_strength",
			Help: "Strength of the latest signal per instrument",
		},
		[]string{"symbol"},
	)

	vetoesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_risk_vetoes_total",
			Help: "Signals rejected by the risk gate, per rule",
		},
		[]string{"rule"},
	)

	// Execution metrics
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_orders_total",
			Help: "Orders submitted to the gateway",
		},
		[]string{"symbol", "side", "kind"},
	)

	fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_fills_total",
			Help: "Order outcomes reported by the gateway",
		},
		[]string{"symbol", "status"},
	)

	// Account metrics
	openPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_engine_open_positions",
		Help: "Positions currently reserved in the ledger",
	})

	equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_engine_equity",
		Help: "Account equity",
	})

	drawdownPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_engine_drawdown_percent",
		Help: "Drawdown from peak equity in percent",
	})

	dailyPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_engine_daily_realized_pnl",
		Help: "Realized P&L for the current UTC day",
	})

	emergencyStop = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_engine_emergency_stop",
		Help: "1 while the emergency stop is active",
	})

	// Runtime metrics
	cycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_engine_cycle_duration_seconds",
			Help:    "Duration of one instrument cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	gatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_gateway_errors_total",
			Help: "Gateway calls that failed after retries",
		},
		[]string{"operation"},
	)

	circuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_circuit_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_notifications_total",
			Help: "Notifications delivered per sink and result",
		},
		[]string{"sink", "result"},
	)

	notificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "risk_engine_notifications_dropped_total",
		Help: "Notifications dropped because the queue was full",
	})

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		signalsTotal,
		signalStrength,
		vetoesTotal,
		ordersTotal,
		fillsTotal,
		openPositions,
		equity,
		drawdownPercent,
		dailyPnL,
		emergencyStop,
		cycleDuration,
		gatewayErrors,
		circuitState,
		notificationsSent,
		notificationsDropped,
		errorsTotal,
	)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordSignal records a composed signal
func RecordSignal(symbol, direction string, strength float64) {
	signalsTotal.WithLabelValues(symbol, direction).Inc()
	signalStrength.WithLabelValues(symbol).Set(strength)
}

// RecordVeto records a risk gate rejection
func RecordVeto(rule string) {
	vetoesTotal.WithLabelValues(rule).Inc()
}

// RecordOrder records a submitted order; kind is entry or exit
func RecordOrder(symbol, side, kind string) {
	ordersTotal.WithLabelValues(symbol, side, kind).Inc()
}

// RecordFill records a fill outcome
func RecordFill(symbol, status string) {
	fillsTotal.WithLabelValues(symbol, status).Inc()
}

// UpdateAccount publishes the ledger view
func UpdateAccount(eq, drawdownPct, realizedToday float64, open int) {
	equity.Set(eq)
	drawdownPercent.Set(drawdownPct)
	dailyPnL.Set(realizedToday)
	openPositions.Set(float64(open))
}

// SetEmergencyStop updates the emergency stop gauge
func SetEmergencyStop(active bool) {
	if active {
		emergencyStop.Set(1)
		return
	}
	emergencyStop.Set(0)
}

// ObserveCycle records how long an instrument cycle took
func ObserveCycle(symbol string, d time.Duration) {
	cycleDuration.WithLabelValues(symbol).Observe(d.Seconds())
}

// RecordGatewayError records a gateway operation that exhausted its retries
func RecordGatewayError(operation string) {
	gatewayErrors.WithLabelValues(operation).Inc()
}

// SetCircuitState records a circuit breaker state change
func SetCircuitState(name string, state int) {
	circuitState.WithLabelValues(name).Set(float64(state))
}

// RecordNotification records a sink delivery
func RecordNotification(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notificationsSent.WithLabelValues(sink, result).Inc()
}

// RecordNotificationDropped counts an event dropped by a full queue
func RecordNotificationDropped() {
	notificationsDropped.Inc()
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
