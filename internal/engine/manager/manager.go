package manager

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"TrafficLens/internal/alerter"
	"TrafficLens/internal/config"
	_ "TrafficLens/internal/connector/impl/linecounter" // Registers the linecounter family
	_ "TrafficLens/internal/connector/impl/multisense"  // Registers the multisense family
	"TrafficLens/internal/engine/rollup"
	"TrafficLens/internal/factory"
	"TrafficLens/internal/model"
	"TrafficLens/internal/notification"
	"TrafficLens/internal/obs"
	"TrafficLens/internal/store"
	"TrafficLens/internal/timenorm"
	"TrafficLens/internal/transport"
)

// Manager orchestrates collection cycles: one goroutine per sensor, a join
// barrier per cycle, and immutable outcome messages back across the task
// boundary. No mutable state is shared between sensor tasks.
type Manager struct {
	connectors  []model.Connector
	writers     []model.RollupWriter
	storeLabels map[string]string
	norm        *timenorm.Normalizer
	statusCache *store.StatusCache
	publisher   *transport.Publisher
	alerter     *alerter.Alerter

	interval time.Duration
	lookback time.Duration

	done     chan struct{}
	tickerWg sync.WaitGroup
}

// NewManager builds the full pipeline from configuration: connectors via the
// registry, writers via the store switch, plus the optional status cache,
// NATS publisher and alerter.
func NewManager(cfg *config.Config) (*Manager, error) {
	connectors, err := factory.Create(cfg)
	if err != nil {
		return nil, err
	}

	writers, err := store.BuildWriters(cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		connectors:  connectors,
		writers:     writers,
		storeLabels: make(map[string]string, len(cfg.Sensors)),
		norm:        timenorm.New(cfg.Collector),
		interval:    config.Duration(cfg.Collector.Interval, 15*time.Minute),
		lookback:    config.Duration(cfg.Collector.Lookback, time.Hour),
		done:        make(chan struct{}),
	}
	for _, sensor := range cfg.Sensors {
		m.storeLabels[sensor.Name] = sensor.Store
	}

	if cfg.Redis.Enabled {
		cache, err := store.NewStatusCache(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to create status cache: %w", err)
		}
		m.statusCache = cache
	}

	if cfg.NATS.Enabled {
		pub, err := transport.NewPublisher(cfg.NATS)
		if err != nil {
			return nil, fmt.Errorf("failed to create record publisher: %w", err)
		}
		m.publisher = pub
	}

	if cfg.Alerter.Enabled {
		var notifier model.Notifier
		if cfg.SMTP.Host != "" { // Simple check to see if email is configured
			notifier = notification.NewEmailNotifier(cfg.SMTP)
		}
		m.alerter = alerter.New(&cfg.Alerter, notifier)
		log.Println("Alerter enabled and initialized.")
	}

	return m, nil
}

// SensorCount returns the number of configured sensors.
func (m *Manager) SensorCount() int {
	return len(m.connectors)
}

// Start begins the fixed-interval scheduling loop.
func (m *Manager) Start() {
	m.tickerWg.Add(1)
	go m.runScheduler()
	log.Printf("Manager started with %d sensor(s), cycle interval %s.", len(m.connectors), m.interval)
}

func (m *Manager) runScheduler() {
	defer m.tickerWg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			end := time.Now().UTC()
			ctx, cancel := context.WithTimeout(context.Background(), m.interval)
			m.RunCycle(ctx, end.Add(-m.lookback), end)
			cancel()
		case <-m.done:
			log.Println("Scheduler shutting down.")
			return
		}
	}
}

// RunCycle collects the given window from every sensor in parallel and
// blocks at the join barrier until all sensor tasks finish. One sensor's
// failure or timeout never blocks or cancels the others.
func (m *Manager) RunCycle(ctx context.Context, start, end time.Time) []model.SensorOutcome {
	log.Printf("Starting collection cycle for window %s - %s (%d sensors)",
		start.Format(time.RFC3339), end.Format(time.RFC3339), len(m.connectors))

	results := make(chan model.SensorOutcome, len(m.connectors))
	var wg sync.WaitGroup
	wg.Add(len(m.connectors))

	for _, conn := range m.connectors {
		go func(c model.Connector) {
			defer wg.Done()
			results <- m.collectSensor(ctx, c, start, end)
		}(conn)
	}

	wg.Wait()
	close(results)

	outcomes := make([]model.SensorOutcome, 0, len(m.connectors))
	failed := 0
	for outcome := range results {
		if outcome.Failed() {
			failed++
			log.Printf("Sensor %s: cycle finished with failures: %v", outcome.Sensor, outcome.Failures)
		} else {
			log.Printf("Sensor %s: cycle finished, %d record(s), %d hourly row(s)",
				outcome.Sensor, outcome.Records, outcome.HourlyRows)
		}
		outcomes = append(outcomes, outcome)
	}

	if failed == 0 {
		obs.Cycles.WithLabelValues("ok").Inc()
	} else {
		obs.Cycles.WithLabelValues("degraded").Inc()
	}

	if m.alerter != nil {
		m.alerter.Observe(outcomes)
	}

	log.Printf("Collection cycle complete: %d/%d sensors ok.", len(outcomes)-failed, len(outcomes))
	return outcomes
}

// collectSensor runs one sensor's full sequence synchronously within its
// task: authenticate, detect offset, collect per chunk, filter, roll up,
// write.
func (m *Manager) collectSensor(ctx context.Context, c model.Connector, start, end time.Time) model.SensorOutcome {
	outcome := model.SensorOutcome{Sensor: c.Name()}

	if !c.Authenticate(ctx) {
		outcome.Failures = append(outcome.Failures, "authentication failed")
		return outcome
	}

	offset := m.norm.DetectClockOffset(ctx, c)

	merged := model.NewCollectionResult(c.Name())
	for _, chunk := range m.norm.Chunk(start, end) {
		res := c.CollectData(ctx, chunk.Start, chunk.End, c.Endpoints())
		mergeResults(merged, res)
	}

	for ep, records := range merged.Records {
		kept, dropped := m.norm.FilterFuture(records, offset)
		if dropped > 0 {
			obs.FutureDrops.WithLabelValues(c.Name()).Add(float64(dropped))
		}
		merged.Records[ep] = kept
	}

	for _, f := range merged.Failures {
		outcome.Failures = append(outcome.Failures, fmt.Sprintf("%s: %s", f.Endpoint, f.Reason))
	}

	counting := rollup.Dedupe(merged.Records[model.EndpointPeopleCounting])
	outcome.Records = len(counting)
	obs.RecordsCollected.WithLabelValues(c.Name()).Add(float64(len(counting)))

	if m.publisher != nil {
		m.publishRecords(merged)
	}

	if merged.Status != nil && m.statusCache != nil {
		if err := m.statusCache.Set(ctx, merged.Status); err != nil {
			log.Printf("Sensor %s: failed to cache status: %v", c.Name(), err)
		}
	}

	if len(counting) == 0 {
		return outcome
	}

	hourly := rollup.HourlyRollups(counting)
	daily := rollup.DailyRollups(counting)
	outcome.HourlyRows = len(hourly)
	outcome.DailyRows = len(daily)
	for _, h := range hourly {
		if h.PeakOccupancy > outcome.PeakOccupancy {
			outcome.PeakOccupancy = h.PeakOccupancy
		}
	}

	for _, w := range m.writersFor(c.Name()) {
		if err := w.WriteHourly(ctx, hourly); err != nil {
			outcome.Failures = append(outcome.Failures, fmt.Sprintf("writer %s: %v", w.Name(), err))
			continue
		}
		if err := w.WriteDaily(ctx, daily); err != nil {
			outcome.Failures = append(outcome.Failures, fmt.Sprintf("writer %s: %v", w.Name(), err))
		}
	}

	return outcome
}

// mergeResults concatenates chunked results in fetch order, which is
// chronological because chunks are issued sequentially.
func mergeResults(dst, src *model.CollectionResult) {
	for ep, records := range src.Records {
		dst.Records[ep] = append(dst.Records[ep], records...)
	}
	for ep, grid := range src.Grids {
		dst.Grids[ep] = grid
	}
	if len(src.HeatSeries) > 0 {
		dst.HeatSeries = append(dst.HeatSeries, src.HeatSeries...)
	}
	if src.Status != nil {
		dst.Status = src.Status
	}
	dst.Failures = append(dst.Failures, src.Failures...)
}

func (m *Manager) publishRecords(res *model.CollectionResult) {
	now := time.Now().UTC()
	for ep, records := range res.Records {
		if len(records) == 0 {
			continue
		}
		batch := transport.RecordBatch{
			SensorID:    res.SensorID,
			Endpoint:    ep,
			Records:     records,
			CollectedAt: now,
		}
		if err := m.publisher.Publish(batch); err != nil {
			log.Printf("Sensor %s: failed to publish %s batch: %v", res.SensorID, ep, err)
		}
	}
}

// writersFor resolves a sensor's store label to its writer; sensors without
// a label write to every enabled writer.
func (m *Manager) writersFor(sensor string) []model.RollupWriter {
	label := m.storeLabels[sensor]
	if label == "" {
		return m.writers
	}
	for _, w := range m.writers {
		if w.Name() == label {
			return []model.RollupWriter{w}
		}
	}
	log.Printf("Warning: sensor %s references unknown store '%s', writing to all writers", sensor, label)
	return m.writers
}

// ValidateAll runs ValidateConnection for every sensor in parallel.
func (m *Manager) ValidateAll(ctx context.Context) map[string]bool {
	results := make([]bool, len(m.connectors))
	var wg sync.WaitGroup
	wg.Add(len(m.connectors))
	for i, conn := range m.connectors {
		go func(i int, c model.Connector) {
			defer wg.Done()
			results[i] = c.ValidateConnection(ctx)
		}(i, conn)
	}
	wg.Wait()

	byName := make(map[string]bool, len(m.connectors))
	for i, conn := range m.connectors {
		byName[conn.Name()] = results[i]
	}
	return byName
}

// Stop gracefully shuts down the manager and releases all connections.
func (m *Manager) Stop() {
	log.Println("Manager stopping...")
	close(m.done)
	m.tickerWg.Wait()

	if m.publisher != nil {
		m.publisher.Close()
	}
	if m.statusCache != nil {
		m.statusCache.Close()
	}
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			log.Printf("Error closing writer %s: %v", w.Name(), err)
		}
	}
	log.Println("Manager stopped.")
}
