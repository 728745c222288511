// Package coordinator owns the poll/normalize/cache cycle: it resolves the
// observer position from a Home Assistant entity, fetches nearby aircraft
// from ADSB.fi, normalizes the response, caches it as the current snapshot,
// and notifies listeners.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"planesnearby/internal/adsbfi"
	"planesnearby/internal/clock"
	"planesnearby/internal/ha"
	"planesnearby/internal/planes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	// DefaultUpdateInterval is the poll cadence.
	DefaultUpdateInterval = 30 * time.Second

	// DefaultFetchTimeout bounds one resolve+fetch cycle.
	DefaultFetchTimeout = 10 * time.Second
)

var (
	promFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planes_nearby_fetches_total",
		Help: "Number of completed poll cycles.",
	})
	promFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planes_nearby_fetch_errors_total",
		Help: "Number of poll cycles that ended in an empty snapshot due to an error.",
	})
	promCurrentAircraft = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planes_nearby_current_aircraft",
		Help: "Aircraft in the latest snapshot.",
	})
)

// Fetcher is the ADSB.fi query surface the coordinator depends on.
// *adsbfi.Client satisfies it.
type Fetcher interface {
	NearbyAircraft(ctx context.Context, lat, lon, distanceNM float64) ([]adsbfi.Aircraft, error)
}

// Listener is notified after every cycle, including error-induced empty ones.
type Listener func(snapshot planes.Snapshot)

// Options are the user-editable settings: which entity provides the observer
// position and how far out to search.
type Options struct {
	LocationEntityID string
	DistanceNM       float64
}

// Config tunes the coordinator. Zero values fall back to defaults.
type Config struct {
	UpdateInterval time.Duration
	FetchTimeout   time.Duration
}

// Coordinator polls ADSB.fi on a fixed cadence and caches the latest
// normalized snapshot.
type Coordinator struct {
	haClient ha.HAClient
	fetcher  Fetcher
	logger   *zap.Logger
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration

	optsMu sync.RWMutex
	opts   Options

	snapMu   sync.RWMutex
	snapshot planes.Snapshot

	listenersMu    sync.Mutex
	listeners      map[int]Listener
	nextListenerID int

	locationSub ha.Subscription

	refreshChan chan struct{}
	stopChan    chan struct{}
	doneChan    chan struct{}
	started     bool
	startMu     sync.Mutex
}

// New creates a coordinator. It does not poll until Start is called.
func New(haClient ha.HAClient, fetcher Fetcher, opts Options, cfg Config, logger *zap.Logger) *Coordinator {
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	return &Coordinator{
		haClient:    haClient,
		fetcher:     fetcher,
		logger:      logger.Named("coordinator"),
		clock:       clock.NewRealClock(),
		interval:    cfg.UpdateInterval,
		timeout:     cfg.FetchTimeout,
		opts:        opts,
		listeners:   make(map[int]Listener),
		refreshChan: make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// SetClock sets the clock implementation (useful for testing).
func (c *Coordinator) SetClock(clk clock.Clock) {
	c.clock = clk
}

// Start performs the first refresh, begins the poll loop, and watches the
// location entity so a moving observer triggers an immediate re-poll.
// Fetch errors are contained, so Start only fails on misuse.
func (c *Coordinator) Start() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.started {
		return fmt.Errorf("coordinator already started")
	}
	c.started = true

	c.logger.Info("Starting coordinator",
		zap.String("location_entity", c.Options().LocationEntityID),
		zap.Float64("distance_nm", c.Options().DistanceNM),
		zap.Duration("interval", c.interval))

	c.refresh()
	c.watchLocation(c.Options().LocationEntityID)

	go c.run()
	return nil
}

// Stop halts the poll loop and releases the location subscription.
func (c *Coordinator) Stop() {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if !c.started {
		return
	}
	c.started = false

	close(c.stopChan)
	<-c.doneChan

	if c.locationSub != nil {
		c.locationSub.Unsubscribe()
		c.locationSub = nil
	}

	c.logger.Info("Coordinator stopped")
}

// run is the poll loop.
func (c *Coordinator) run() {
	defer close(c.doneChan)

	for {
		select {
		case <-c.stopChan:
			return
		case <-c.clock.After(c.interval):
			c.refresh()
		case <-c.refreshChan:
			c.refresh()
		}
	}
}

// RequestRefresh schedules an immediate refresh. It never blocks; a refresh
// already pending is enough.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshChan <- struct{}{}:
	default:
	}
}

// refresh runs one cycle and always produces a snapshot: errors are logged
// and yield an empty aircraft list rather than aborting the loop.
func (c *Coordinator) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	list := c.fetchCycle(ctx)

	snap := planes.Snapshot{
		Planes:    list,
		FetchedAt: c.clock.Now(),
	}

	c.snapMu.Lock()
	c.snapshot = snap
	c.snapMu.Unlock()

	promFetchesTotal.Inc()
	promCurrentAircraft.Set(float64(len(list)))

	c.notify(snap)
}

// fetchCycle resolves the observer position and fetches nearby aircraft.
// Any failure returns an empty list.
func (c *Coordinator) fetchCycle(ctx context.Context) []planes.Plane {
	opts := c.Options()

	state, err := c.haClient.GetState(opts.LocationEntityID)
	if err != nil {
		c.logger.Error("Location entity not found",
			zap.String("entity_id", opts.LocationEntityID),
			zap.Error(err))
		promFetchErrorsTotal.Inc()
		return []planes.Plane{}
	}

	lat, latOK := state.Latitude()
	lon, lonOK := state.Longitude()
	if !latOK || !lonOK {
		c.logger.Error("Location entity has no latitude/longitude",
			zap.String("entity_id", opts.LocationEntityID))
		promFetchErrorsTotal.Inc()
		return []planes.Plane{}
	}

	raw, err := c.fetcher.NearbyAircraft(ctx, lat, lon, opts.DistanceNM)
	if err != nil {
		c.logger.Error("Failed to fetch aircraft", zap.Error(err))
		promFetchErrorsTotal.Inc()
		return []planes.Plane{}
	}

	list := planes.NormalizeAll(raw)
	c.logger.Debug("Fetched planes", zap.Int("count", len(list)))
	return list
}

// watchLocation subscribes to the location entity and re-polls immediately
// when its coordinates change.
func (c *Coordinator) watchLocation(entityID string) {
	if entityID == "" {
		return
	}

	sub, err := c.haClient.SubscribeStateChanges(entityID, func(_ string, oldState, newState *ha.State) {
		if !positionChanged(oldState, newState) {
			return
		}
		c.logger.Debug("Location entity moved", zap.String("entity_id", entityID))
		c.RequestRefresh()
	})
	if err != nil {
		c.logger.Warn("Failed to watch location entity",
			zap.String("entity_id", entityID),
			zap.Error(err))
		return
	}
	c.locationSub = sub
}

func positionChanged(oldState, newState *ha.State) bool {
	newLat, newOK := newState.Latitude()
	newLon, newOK2 := newState.Longitude()
	if !newOK || !newOK2 {
		return false
	}
	oldLat, oldOK := oldState.Latitude()
	oldLon, oldOK2 := oldState.Longitude()
	if !oldOK || !oldOK2 {
		return true
	}
	return oldLat != newLat || oldLon != newLon
}

// SetOptions swaps the location entity and radius at runtime and triggers a
// refresh so the change takes effect without waiting for the next tick.
func (c *Coordinator) SetOptions(opts Options) {
	c.optsMu.Lock()
	previous := c.opts
	c.opts = opts
	c.optsMu.Unlock()

	if previous.LocationEntityID != opts.LocationEntityID {
		if c.locationSub != nil {
			c.locationSub.Unsubscribe()
			c.locationSub = nil
		}
		c.watchLocation(opts.LocationEntityID)
	}

	c.logger.Info("Options updated",
		zap.String("location_entity", opts.LocationEntityID),
		zap.Float64("distance_nm", opts.DistanceNM))

	c.RequestRefresh()
}

// Options returns the current options.
func (c *Coordinator) Options() Options {
	c.optsMu.RLock()
	defer c.optsMu.RUnlock()
	return c.opts
}

// Snapshot returns the latest snapshot.
func (c *Coordinator) Snapshot() planes.Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapshot
}

// Subscribe registers a listener for future snapshots and returns a function
// that removes it.
func (c *Coordinator) Subscribe(l Listener) (unsubscribe func()) {
	c.listenersMu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = l
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

// notify fans a snapshot out to all listeners.
func (c *Coordinator) notify(snap planes.Snapshot) {
	c.listenersMu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.listenersMu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
