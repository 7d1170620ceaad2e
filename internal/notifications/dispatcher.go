package notifications

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
	"github.com/ducminhle1904/crypto-risk-engine/internal/monitoring"
)

// DispatcherConfig bounds the queue and each delivery
type DispatcherConfig struct {
	QueueSize   int           `yaml:"queue_size"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// DefaultDispatcherConfig returns a 256-event queue and a 10s send timeout
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{QueueSize: 256, SendTimeout: 10 * time.Second}
}

// Dispatcher fans events out to sinks from a single worker. Publish never
// blocks; when the queue is full the event is dropped and counted.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Event
	timeout time.Duration
	log     *logger.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewDispatcher starts the delivery worker
func NewDispatcher(cfg DispatcherConfig, log *logger.Logger, sinks ...Sink) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Event, cfg.QueueSize),
		timeout: cfg.SendTimeout,
		log:     log,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues an event without blocking
func (d *Dispatcher) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		monitoring.RecordNotificationDropped()
		d.log.Warning("Notification queue full, dropped %s event for %s", event.Type, event.Symbol)
	}
}

// Dropped returns how many events were dropped
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Sinks lists the configured sink names
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			err := sink.Send(ctx, event)
			cancel()
			monitoring.RecordNotification(sink.Name(), err)
			if err != nil {
				d.log.LogWarning("notifications", "%s delivery of %s failed: %v", sink.Name(), event.Type, err)
			}
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}
