package monitor

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/7331/binance-live-price-alerts/format"
	"github.com/7331/binance-live-price-alerts/metrics"
	"github.com/7331/binance-live-price-alerts/notifier"
	"github.com/7331/binance-live-price-alerts/types"
)

const (
	DefaultRetryDelay = 5 * time.Second
	traceFrames       = 3
)

// Session is one subscribed stream connection.
type Session interface {
	Subscribe(ctx context.Context, symbols []string) error
	NextTick(ctx context.Context) (*types.Tick, error)
	Close() error
}

// StreamClient opens fresh sessions.
type StreamClient interface {
	Connect(ctx context.Context) (Session, error)
}

// StreamClientFunc adapts a function to StreamClient.
type StreamClientFunc func(ctx context.Context) (Session, error)

func (f StreamClientFunc) Connect(ctx context.Context) (Session, error) { return f(ctx) }

// Dispatcher delivers an alert to its targets.
type Dispatcher interface {
	Notify(ctx context.Context, event types.AlertEvent) ([]notifier.Delivery, error)
}

// AlertRecorder keeps an audit trail of fired alerts.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, event types.AlertEvent, deliveries []notifier.Delivery) error
}

// PriceMonitor owns the per-pair state and drives the stream. All state is
// touched from the goroutine running Run only.
type PriceMonitor struct {
	pairs   map[string]*types.PairState
	symbols []string

	stream     StreamClient
	dispatcher Dispatcher
	recorder   AlertRecorder
	metrics    *metrics.Metrics
	logger     log.FieldLogger

	retryDelay time.Duration
	now        func() time.Time
	state      atomic.Int32
}

type Option func(pm *PriceMonitor)

func WithLogger(logger log.FieldLogger) Option {
	return func(pm *PriceMonitor) {
		pm.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(pm *PriceMonitor) {
		pm.metrics = m
	}
}

func WithRecorder(recorder AlertRecorder) Option {
	return func(pm *PriceMonitor) {
		pm.recorder = recorder
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(pm *PriceMonitor) {
		pm.retryDelay = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(pm *PriceMonitor) {
		pm.now = now
	}
}

// NewPriceMonitor builds one PairState per spec. Pairs without webhooks use
// defaults.
func NewPriceMonitor(specs []types.PairSpec, defaults []types.WebhookTarget, stream StreamClient, dispatcher Dispatcher, opts ...Option) *PriceMonitor {
	pm := &PriceMonitor{
		pairs:      make(map[string]*types.PairState, len(specs)),
		stream:     stream,
		dispatcher: dispatcher,
		logger:     log.StandardLogger(),
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
	for _, spec := range specs {
		pm.pairs[spec.Symbol] = types.NewPairState(spec, defaults)
	}
	pm.symbols = lo.Keys(pm.pairs)
	sort.Strings(pm.symbols)

	for _, opt := range opts {
		opt(pm)
	}
	if pm.metrics == nil {
		pm.metrics = metrics.New(prometheus.NewRegistry())
	}
	return pm
}

// Symbols returns the monitored symbols in sorted order.
func (pm *PriceMonitor) Symbols() []string {
	return append([]string(nil), pm.symbols...)
}

func (pm *PriceMonitor) State() State {
	return State(pm.state.Load())
}

func (pm *PriceMonitor) setState(s State) {
	pm.state.Store(int32(s))
	pm.metrics.State.Set(float64(s))
}

// Run supervises stream sessions until ctx is cancelled. Session failures
// are logged and followed by the retry delay; Run itself never fails.
func (pm *PriceMonitor) Run(ctx context.Context) error {
	pm.logger.Infof("Starting price monitor for pairs: %v", pm.symbols)

	for {
		pm.setState(StateConnecting)
		err := pm.runSession(ctx)
		if ctx.Err() != nil {
			pm.logger.Info("Context cancelled, stopping price monitor...")
			return nil
		}

		pm.setState(StateFailed)
		kind := types.KindOf(err)
		pm.metrics.SessionFailures.WithLabelValues(kind.String()).Inc()
		pm.logger.WithField("kind", kind.String()).
			Errorf("Something went wrong, reconnecting: %s", Summarize(err, traceFrames))

		timer := time.NewTimer(pm.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			pm.logger.Info("Context cancelled, stopping price monitor...")
			return nil
		case <-timer.C:
		}
	}
}

func (pm *PriceMonitor) runSession(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in stream session: %v", r)
		}
	}()

	session, err := pm.stream.Connect(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Subscribe(ctx, pm.symbols); err != nil {
		return err
	}
	pm.setState(StateSubscribed)
	pm.metrics.Sessions.Inc()

	started := pm.now()
	var ticks int64
	pm.logger.Infof("Subscribed to %d pairs", len(pm.symbols))
	defer func() {
		pm.logger.Infof("Stream session started %s ended after %s ticks",
			humanize.Time(started), humanize.Comma(ticks))
	}()

	for {
		tick, err := session.NextTick(ctx)
		if err != nil {
			if types.IsSessionFatal(err) {
				return err
			}
			pm.metrics.DecodeErrors.Inc()
			pm.logger.WithError(err).Debug("Dropping malformed tick")
			continue
		}
		if tick == nil {
			continue
		}
		ticks++
		pm.handleTick(ctx, tick)
	}
}

func (pm *PriceMonitor) handleTick(ctx context.Context, tick *types.Tick) {
	event := pm.Evaluate(tick)
	if event == nil {
		return
	}

	direction := "up"
	if event.Negative() {
		direction = "down"
	}
	pm.metrics.AlertsFired.WithLabelValues(event.Symbol, direction).Inc()

	entry := pm.logger.WithFields(log.Fields{"symbol": event.Symbol, "alert_id": event.ID})
	entry.Infof("ALERT: [%s] Price: %s Change: %s", event.Symbol, event.PriceText, event.DeltaText)

	deliveries, err := pm.dispatcher.Notify(ctx, *event)
	for _, d := range deliveries {
		result := "success"
		if d.Err != nil {
			result = "failure"
		}
		pm.metrics.WebhookDeliveries.WithLabelValues(result).Inc()
	}
	if err != nil {
		entry.WithError(err).Warn("Alert was not delivered to every webhook")
	}

	if pm.recorder != nil {
		if err := pm.recorder.RecordAlert(ctx, *event, deliveries); err != nil {
			entry.WithError(err).Warn("Failed to record alert")
		}
	}
}

// Evaluate applies one tick to its pair's state and returns the alert to
// send, if any. The first tick of a symbol only sets the baseline.
func (pm *PriceMonitor) Evaluate(tick *types.Tick) *types.AlertEvent {
	if tick == nil || tick.Symbol == "" {
		return nil
	}
	pair, ok := pm.pairs[tick.Symbol]
	if !ok {
		pm.logger.WithField("symbol", tick.Symbol).Debug("Ignoring tick for unmonitored symbol")
		return nil
	}
	pm.metrics.TicksProcessed.WithLabelValues(pair.Symbol).Inc()

	current := tick.Price
	if pair.LastNotifiedPrice == nil {
		pm.setBaseline(pair, current)
		pm.logger.WithField("symbol", pair.Symbol).
			Infof("[%s] Base price set to: %s", pair.Symbol, format.Price(current, false))
		return nil
	}

	previous := *pair.LastNotifiedPrice
	pm.logger.WithField("symbol", pair.Symbol).
		Infof("[%s] %s -> %s", pair.Symbol, format.Price(previous, false), format.Price(current, false))

	delta := current.Sub(previous)
	if delta.Abs().LessThan(pair.Threshold) {
		return nil
	}

	pm.setBaseline(pair, current)
	return &types.AlertEvent{
		ID:         uuid.NewString(),
		Symbol:     pair.Symbol,
		Price:      current,
		Previous:   previous,
		Delta:      delta,
		PriceText:  format.Price(current, false),
		DeltaText:  format.Price(delta, true),
		Targets:    append([]types.WebhookTarget(nil), pair.Webhooks...),
		DetectedAt: pm.now(),
	}
}

// Baseline returns the last notified price for symbol. It must not be
// called while Run is active.
func (pm *PriceMonitor) Baseline(symbol string) (decimal.Decimal, bool) {
	pair, found := pm.pairs[symbol]
	if !found || pair.LastNotifiedPrice == nil {
		return decimal.Zero, false
	}
	return *pair.LastNotifiedPrice, true
}

func (pm *PriceMonitor) setBaseline(pair *types.PairState, price decimal.Decimal) {
	pair.LastNotifiedPrice = &price
	pm.metrics.Baseline.WithLabelValues(pair.Symbol).Set(price.InexactFloat64())
}
