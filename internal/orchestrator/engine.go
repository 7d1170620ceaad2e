// Package orchestrator drives the per-instrument decision cycle: market data,
// position management, signal composition, risk admission and order entry.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ducminhle1904/crypto-risk-engine/internal/config"
	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/featuregate"
	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
	"github.com/ducminhle1904/crypto-risk-engine/internal/journal"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
	"github.com/ducminhle1904/crypto-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-risk-engine/internal/position"
	"github.com/ducminhle1904/crypto-risk-engine/internal/recovery"
	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
	"github.com/ducminhle1904/crypto-risk-engine/internal/safety"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// Options are the immutable session parameters of an Engine
type Options struct {
	Instruments    []string
	Interval       exchange.KlineInterval
	ScanInterval   time.Duration
	CandleCount    int
	RequestTimeout time.Duration
	EntryTimeout   time.Duration
	EquitySync     time.Duration

	Indicators     indicators.Params
	Profile        strategy.Profile
	Limits         risk.Limits
	Retry          recovery.Policy
	CircuitBreaker safety.CircuitBreakerConfig
}

// OptionsFromConfig builds engine options for the selected profile
func OptionsFromConfig(cfg *config.Config, profile strategy.Profile) Options {
	return Options{
		Instruments:    cfg.Instruments,
		Interval:       cfg.Interval,
		ScanInterval:   cfg.ScanInterval,
		CandleCount:    cfg.CandleCount,
		RequestTimeout: cfg.RequestTimeout,
		EntryTimeout:   cfg.EntryTimeout,
		EquitySync:     cfg.EquitySync,
		Indicators:     cfg.Indicators,
		Profile:        profile,
		Limits:         cfg.Risk,
		Retry:          cfg.Retry,
		CircuitBreaker: cfg.CircuitBreaker,
	}
}

// Deps are the collaborators of an Engine. Only Gateway is required.
type Deps struct {
	Gateway     exchange.Gateway
	Journal     journal.Journal
	Notifier    notifications.Notifier
	FeatureGate featuregate.Gate
	Health      *monitoring.HealthChecker
	Log         *logger.Logger
	// Clock defaults to time.Now; replay passes the simulated candle time
	Clock func() time.Time
}

// instrument is the state owned by one instrument's loop
type instrument struct {
	symbol  string
	manager *position.Manager

	mu        sync.Mutex
	lot       exchange.LotSize
	lotLoaded bool
	lastPrice float64
	exitAlert string
}

// Engine runs the decision cycle for every configured instrument
type Engine struct {
	opts     Options
	gateway  exchange.Gateway
	journal  journal.Journal
	notifier notifications.Notifier
	features featuregate.Gate
	health   *monitoring.HealthChecker
	log      *logger.Logger
	clock    func() time.Time

	ledger    *risk.Ledger
	gate      *risk.Gate
	emergency *safety.EmergencyStop
	composer  *strategy.Composer
	recovery  *recovery.Handler
	breakers  *safety.CircuitBreakerManager

	instruments map[string]*instrument
	order       []string

	statsMu    sync.Mutex
	dayWins    int
	dayLosses  int
	lastSync   time.Time
	syncMu     sync.Mutex
	cycleCount int
}

// New creates an engine. The starting equity is read from the gateway.
func New(ctx context.Context, opts Options, deps Deps) (*Engine, error) {
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if len(opts.Instruments) == 0 {
		return nil, fmt.Errorf("at least one instrument is required")
	}
	if err := opts.Profile.Validate(); err != nil {
		return nil, err
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = time.Minute
	}
	if opts.CandleCount <= 0 {
		opts.CandleCount = opts.Indicators.MinCandles()
	}

	e := &Engine{
		opts:        opts,
		gateway:     deps.Gateway,
		journal:     deps.Journal,
		notifier:    deps.Notifier,
		features:    deps.FeatureGate,
		health:      deps.Health,
		log:         deps.Log,
		clock:       deps.Clock,
		emergency:   safety.NewEmergencyStop(),
		composer:    strategy.NewComposer(),
		instruments: make(map[string]*instrument, len(opts.Instruments)),
	}
	if e.notifier == nil {
		e.notifier = notifications.Nop{}
	}
	if e.features == nil {
		e.features = featuregate.Static(true)
	}
	if e.health == nil {
		e.health = monitoring.NewHealthChecker(0)
	}
	if e.log == nil {
		e.log = logger.NewNop()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	e.emergency.SetClock(e.clock)
	e.emergency.OnChange(e.onEmergencyChange)
	e.gate = risk.NewGate(opts.Limits, e.emergency)
	e.recovery = recovery.NewHandler(opts.Retry, e.log)
	e.breakers = safety.NewCircuitBreakerManager(opts.CircuitBreaker, func(name string, from, to safety.CircuitBreakerState) {
		monitoring.SetCircuitState(name, int(to))
		e.log.LogWarning("circuit", "%s circuit %s -> %s", name, from, to)
	})

	for _, symbol := range opts.Instruments {
		in := &instrument{
			symbol:  symbol,
			manager: position.NewManager(symbol, deps.Gateway, opts.Profile.Exits),
		}
		in.manager.SetClock(e.clock)
		e.instruments[symbol] = in
		e.order = append(e.order, symbol)
	}

	var equity float64
	err := e.call(ctx, "equity", func(ctx context.Context) error {
		var err error
		equity, err = e.gateway.Equity(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read starting equity: %w", err)
	}
	now := e.clock()
	e.ledger = risk.NewLedger(equity, now)
	e.lastSync = now
	e.health.SetConnected(true)
	e.publishAccount(ctx, now)

	e.log.Info("🚀 Engine ready: %d instruments, profile %s, equity %.2f, gateway %s",
		len(e.order), opts.Profile.Name, equity, e.gateway.Name())
	return e, nil
}

// Ledger exposes the shared account state
func (e *Engine) Ledger() *risk.Ledger {
	return e.ledger
}

// EmergencyStop exposes the process-wide kill switch
func (e *Engine) EmergencyStop() *safety.EmergencyStop {
	return e.emergency
}

// Position returns the local position of symbol
func (e *Engine) Position(symbol string) (position.Position, bool) {
	in, ok := e.instruments[symbol]
	if !ok {
		return position.Position{}, false
	}
	return in.manager.Position(), true
}

// Run cycles every instrument on its own goroutine until ctx is cancelled.
// A cycle that has started finishes on a context detached from ctx.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.routeFills(gctx)
		return nil
	})
	for _, symbol := range e.order {
		in := e.instruments[symbol]
		g.Go(func() error {
			e.loop(gctx, in)
			return nil
		})
	}

	e.log.Status("Engine running, scan interval %v", e.opts.ScanInterval)
	err := g.Wait()
	e.log.Status("Engine stopped after %d cycles", e.cycles())
	return err
}

func (e *Engine) loop(ctx context.Context, in *instrument) {
	ticker := time.NewTicker(e.opts.ScanInterval)
	defer ticker.Stop()

	for {
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cycleBudget())
		e.RunCycle(cycleCtx, in.symbol)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycleBudget bounds one cycle: a handful of gateway calls, each retried
func (e *Engine) cycleBudget() time.Duration {
	attempts := e.opts.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return 4*time.Duration(attempts)*e.opts.RequestTimeout + e.opts.Retry.MaxDelay
}

func (e *Engine) routeFills(ctx context.Context) {
	fills := e.gateway.Fills()
	for {
		select {
		case <-ctx.Done():
			return
		case fill, ok := <-fills:
			if !ok {
				return
			}
			e.applyFill(context.WithoutCancel(ctx), fill)
		}
	}
}

// Step runs one sequential cycle over every instrument, applying pending
// fills before and after each instrument. It is deterministic for a given
// gateway state.
func (e *Engine) Step(ctx context.Context) {
	e.DrainFills(ctx)
	for _, symbol := range e.order {
		e.RunCycle(ctx, symbol)
		e.DrainFills(ctx)
	}
}

// DrainFills applies every fill already buffered by the gateway
func (e *Engine) DrainFills(ctx context.Context) int {
	fills := e.gateway.Fills()
	n := 0
	for {
		select {
		case fill, ok := <-fills:
			if !ok {
				return n
			}
			e.applyFill(ctx, fill)
			n++
		default:
			return n
		}
	}
}

func (e *Engine) applyFill(ctx context.Context, fill exchange.Fill) {
	in, ok := e.instruments[fill.Symbol]
	if !ok {
		e.log.LogWarning("fills", "fill %s for unmanaged symbol %s ignored", fill.OrderID, fill.Symbol)
		return
	}
	monitoring.RecordFill(fill.Symbol, string(fill.Status))
	e.log.Debug("fill %s %s %s %g @ %.4f (%s)", fill.OrderID, fill.Symbol, fill.Side, fill.Size, fill.Price, fill.Status)
	e.handleTransition(ctx, in, in.manager.OnFill(fill))
}

// RunCycle performs one decision cycle for symbol. It never returns an
// error: failures are logged and the cycle is skipped.
func (e *Engine) RunCycle(ctx context.Context, symbol string) {
	in, ok := e.instruments[symbol]
	if !ok {
		return
	}
	start := e.clock()
	wall := time.Now()
	defer func() {
		monitoring.ObserveCycle(symbol, time.Since(wall))
		e.countCycle()
	}()
	log := e.log.With(zap.String("symbol", symbol))

	e.rollDay(ctx, start)
	e.maybeSyncEquity(ctx, start)

	candles, err := e.fetchCandles(ctx, symbol)
	if err != nil {
		log.LogError("candles", err)
		return
	}
	snap := indicators.Compute(symbol, candles, e.opts.Indicators)
	in.setPrice(snap.Close)
	e.health.RecordCycle(symbol, wall)

	// one answer per cycle; a closed gate means no order is submitted or cancelled
	automated := e.features.AutomationPermitted(ctx)
	e.managePosition(ctx, in, snap, automated)

	if e.emergency.Active() {
		if automated {
			e.flatten(ctx, in, snap.Close)
		}
		return
	}

	e.evaluate(ctx, in, snap, automated)
}

func (e *Engine) fetchCandles(ctx context.Context, symbol string) ([]types.OHLCV, error) {
	var candles []types.OHLCV
	err := e.call(ctx, "candles", func(ctx context.Context) error {
		var err error
		candles, err = e.gateway.GetCandles(ctx, symbol, e.opts.Interval, e.opts.CandleCount)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, exchange.ErrNoData.WithDetails("no candles for %s", symbol)
	}
	return candles, nil
}

// call runs a gateway operation with bounded retries behind the gateway's
// circuit breaker. Each attempt is limited by the request timeout.
func (e *Engine) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	breaker := e.breakers.GetOrCreate(e.gateway.Name())
	err := breaker.Call(ctx, func(ctx context.Context) error {
		return e.recovery.Execute(ctx, "gateway", operation, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
			defer cancel()
			return fn(callCtx)
		})
	})
	if err != nil {
		monitoring.RecordGatewayError(operation)
		e.health.RecordError(fmt.Sprintf("%s: %v", operation, err))
		e.health.SetConnected(false)
		return err
	}
	e.health.SetConnected(true)
	return nil
}

func (e *Engine) lotSize(ctx context.Context, in *instrument) (exchange.LotSize, error) {
	in.mu.Lock()
	if in.lotLoaded {
		lot := in.lot
		in.mu.Unlock()
		return lot, nil
	}
	in.mu.Unlock()

	var lot exchange.LotSize
	err := e.call(ctx, "lot_size", func(ctx context.Context) error {
		var err error
		lot, err = e.gateway.LotSize(ctx, in.symbol)
		return err
	})
	if err != nil {
		return exchange.LotSize{}, err
	}
	in.mu.Lock()
	in.lot, in.lotLoaded = lot, true
	in.mu.Unlock()
	return lot, nil
}

func (in *instrument) setPrice(price float64) {
	in.mu.Lock()
	in.lastPrice = price
	in.mu.Unlock()
}

func (in *instrument) price() float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.lastPrice
}

// swapExitAlert records the pending exit alert and reports whether it changed
func (in *instrument) swapExitAlert(reason string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	changed := in.exitAlert != reason
	in.exitAlert = reason
	return changed
}

func (e *Engine) countCycle() {
	e.statsMu.Lock()
	e.cycleCount++
	e.statsMu.Unlock()
}

func (e *Engine) cycles() int {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.cycleCount
}
