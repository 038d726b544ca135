package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/model"
	"github.com/lazypower/tabpulse/internal/notify"
	"github.com/lazypower/tabpulse/internal/store"
)

// Event topics.
const (
	TopicTabActivated = "tab:activated"
	TopicTabRemoved   = "tab:removed"
	TopicLeakDetected = "leak:detected"
)

// ErrTickInProgress is returned when a sampling pass is requested while
// another one is still running.
var ErrTickInProgress = errors.New("sampling pass already in progress")

// Host is the browser side of the engine: live tabs and memory readings.
type Host interface {
	ListTabs(ctx context.Context) ([]model.Descriptor, error)
	// PreciseMemory returns a per-tab reading in MB, or false when none is
	// obtainable.
	PreciseMemory(ctx context.Context, d model.Descriptor) (float64, bool)
	SystemAvailableMemory(ctx context.Context) (float64, error)
}

// Engine samples tabs, detects leaks, records usage and serves predictions.
type Engine struct {
	Store     *store.Store
	Host      Host
	Notifier  notify.Notifier
	Predictor *Predictor
	Health    HealthScorer
	Detector  LeakDetector
	Metrics   *Metrics

	cfg     config.Config
	history *History
	bus     evbus.Bus
	log     zerolog.Logger
	now     func() time.Time

	ticking atomic.Bool

	mu          sync.RWMutex
	snapshots   []model.Snapshot
	lastTick    time.Time
	leakAlerted map[int]bool
	highAlerted map[int]bool
	totalAlert  bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an Engine and wires its event routes.
func New(cfg config.Config, st *store.Store, host Host, notifier notify.Notifier, log zerolog.Logger) *Engine {
	log = log.With().Str("component", "engine").Logger()
	e := &Engine{
		Store:       st,
		Host:        host,
		Notifier:    notifier,
		Predictor:   NewPredictor(cfg.Predictor, st, log),
		Health:      NewHealthScorer(cfg.Health),
		Detector:    NewLeakDetector(cfg.Monitor),
		Metrics:     NewMetrics(),
		cfg:         cfg,
		history:     NewHistory(cfg.Monitor.HistorySize),
		bus:         evbus.New(),
		log:         log,
		now:         time.Now,
		leakAlerted: make(map[int]bool),
		highAlerted: make(map[int]bool),
		stopCh:      make(chan struct{}),
	}

	// Handlers run synchronously inside Publish and must not publish.
	e.mustSubscribe(TopicTabActivated, e.onTabActivated)
	e.mustSubscribe(TopicTabRemoved, e.onTabRemoved)
	e.mustSubscribe(TopicLeakDetected, e.onLeakDetected)
	return e
}

func (e *Engine) mustSubscribe(topic string, fn any) {
	if err := e.bus.Subscribe(topic, fn); err != nil {
		panic(fmt.Sprintf("subscribe %s: %v", topic, err))
	}
}

// Subscribe registers an additional handler for one of the event topics.
func (e *Engine) Subscribe(topic string, fn any) error {
	return e.bus.Subscribe(topic, fn)
}

// SetClock overrides the time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// History exposes the per-tab sample windows.
func (e *Engine) History() *History {
	return e.history
}

// Start runs one sampling pass immediately and then one per interval until
// Stop is called.
func (e *Engine) Start(ctx context.Context) {
	interval := e.cfg.Monitor.SampleInterval()
	e.runTick(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.runTick(ctx)
			case <-e.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	e.log.Info().Dur("interval", interval).Str("source", e.cfg.Monitor.SampleSource).Msg("sampler started")
}

// Stop shuts down the sampler and releases the history.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()
		e.history.Reset()
	})
}

func (e *Engine) runTick(ctx context.Context) {
	if err := e.Tick(ctx); err != nil {
		if errors.Is(err, ErrTickInProgress) {
			e.log.Debug().Msg("previous pass still running, tick skipped")
			return
		}
		e.log.Error().Err(err).Msg("sampling pass")
	}
}

// Tick performs one sampling pass: enumerate, measure, record, evaluate.
// Every sample in the pass comes from a single enumeration. Leak write
// failures are returned after the pass completes.
func (e *Engine) Tick(ctx context.Context) error {
	if !e.ticking.CompareAndSwap(false, true) {
		e.Metrics.ticks.WithLabelValues("skipped").Inc()
		return ErrTickInProgress
	}
	defer e.ticking.Store(false)

	start := time.Now()
	defer func() { e.Metrics.tickDuration.Observe(time.Since(start).Seconds()) }()

	tabs, err := e.Host.ListTabs(ctx)
	if err != nil {
		e.Metrics.ticks.WithLabelValues("error").Inc()
		return fmt.Errorf("list tabs: %w", err)
	}
	now := e.now()

	available, availErr := e.Host.SystemAvailableMemory(ctx)
	if availErr != nil {
		e.log.Debug().Err(availErr).Msg("system available memory unavailable")
	} else {
		e.Metrics.availableMB.Set(available)
	}
	systemSource := e.cfg.Monitor.SampleSource == "system"

	snapshots := make([]model.Snapshot, 0, len(tabs))
	live := make(map[int]struct{}, len(tabs))
	var total float64
	var errs []error

	for _, d := range tabs {
		precise, ok := e.Host.PreciseMemory(ctx, d)
		snap := snapshotOf(d, Measure(d, precise, ok), now)
		snapshots = append(snapshots, snap)
		total += snap.MemoryUsageMB
		live[d.ID] = struct{}{}

		if internalURL(d.URL) {
			continue
		}

		sample := snap.MemoryUsageMB
		if systemSource {
			if availErr != nil {
				continue
			}
			sample = available
		}

		window := e.history.Record(d.ID, sample)
		leak, growing := e.Detector.Detect(snap, window, now)
		if !growing {
			if e.Detector.Evaluate(window) == NotGrowing {
				e.clearLeakAlert(d.ID)
			}
			continue
		}
		if err := e.Store.SaveLeak(ctx, leak); err != nil {
			errs = append(errs, fmt.Errorf("save leak for tab %d: %w", d.ID, err))
			continue
		}
		e.Metrics.leaksDetected.Inc()
		e.log.Info().Int("tab", d.ID).Float64("growth_mb_min", leak.GrowthRate).Msg("leak detected")
		e.bus.Publish(TopicLeakDetected, ctx, leak)
	}

	if n := e.history.Prune(live); n > 0 {
		e.log.Debug().Int("removed", n).Msg("pruned orphaned histories")
	}

	e.mu.Lock()
	e.snapshots = snapshots
	e.lastTick = now
	e.mu.Unlock()

	e.checkMemoryAlerts(ctx, snapshots, total)

	if err := e.Store.SaveSnapshot(ctx, model.MemorySnapshot{
		Timestamp:          now,
		Tabs:               snapshots,
		TotalMemoryUsageMB: total,
		TabCount:           len(snapshots),
	}); err != nil {
		e.log.Warn().Err(err).Msg("persist memory snapshot")
	}

	e.Metrics.trackedTabs.Set(float64(e.history.Len()))
	e.Metrics.totalMemoryMB.Set(total)

	if len(errs) > 0 {
		e.Metrics.ticks.WithLabelValues("error").Inc()
		return errors.Join(errs...)
	}
	e.Metrics.ticks.WithLabelValues("ok").Inc()
	return nil
}

// snapshotOf builds the pass's view of d. A tab the browser reports without
// an access time counts as accessed now.
func snapshotOf(d model.Descriptor, memoryMB float64, now time.Time) model.Snapshot {
	lastAccessed := d.LastAccessed
	if lastAccessed.IsZero() {
		lastAccessed = now
	}
	return model.Snapshot{
		TabID:         d.ID,
		Title:         d.Title,
		URL:           d.URL,
		Favicon:       d.FavIconURL,
		Domain:        model.DomainOf(d.URL),
		MemoryUsageMB: memoryMB,
		LastAccessed:  lastAccessed,
		IsActive:      d.Active,
		IsPinned:      d.Pinned,
		IsDiscarded:   d.Discarded,
	}
}

// internalURL reports browser-internal pages, which are never sampled.
func internalURL(url string) bool {
	return strings.HasPrefix(url, "chrome://") || strings.HasPrefix(url, "chrome-extension://")
}

// TabActivated records an activation of d in the access and usage logs.
// Write failures are returned.
func (e *Engine) TabActivated(ctx context.Context, d model.Descriptor) error {
	now := e.now()
	pattern := model.NewUsagePattern(d.ID, model.DomainOf(d.URL), now)

	if err := e.Store.RecordAccess(ctx, model.AccessEvent{TabID: d.ID, Timestamp: now}); err != nil {
		return fmt.Errorf("record access: %w", err)
	}
	if err := e.Store.AddUsagePattern(ctx, pattern); err != nil {
		return fmt.Errorf("record usage pattern: %w", err)
	}
	e.bus.Publish(TopicTabActivated, pattern)
	return nil
}

// TabCreated starts nothing; history for a new tab is created lazily on its
// first sample.
func (e *Engine) TabCreated(d model.Descriptor) {
	e.log.Debug().Int("tab", d.ID).Msg("tab created")
}

// TabRemoved drops all per-tab state for id.
func (e *Engine) TabRemoved(id int) {
	e.bus.Publish(TopicTabRemoved, id)
}

func (e *Engine) onTabActivated(p model.UsagePattern) {
	e.Predictor.Observe(p)
	e.Metrics.activations.Inc()
}

func (e *Engine) onTabRemoved(id int) {
	e.history.Delete(id)
	e.mu.Lock()
	delete(e.leakAlerted, id)
	delete(e.highAlerted, id)
	e.mu.Unlock()
}

// onLeakDetected notifies once per growth episode of a tab, or on every
// detection when monitor.leak_alert_once is off.
func (e *Engine) onLeakDetected(ctx context.Context, leak model.Leak) {
	e.mu.Lock()
	seen := e.leakAlerted[leak.TabID]
	e.leakAlerted[leak.TabID] = true
	e.mu.Unlock()
	if seen && e.cfg.Monitor.LeakAlertOnce {
		return
	}

	settings := e.Store.Settings(ctx)
	if !settings.Notifications.Enabled || !settings.Notifications.LeakAlerts {
		return
	}
	e.send(ctx, notify.LeakDetected(leak), settings)
}

func (e *Engine) clearLeakAlert(id int) {
	e.mu.Lock()
	delete(e.leakAlerted, id)
	e.mu.Unlock()
}

// checkMemoryAlerts sends high-memory and total-memory notifications once
// per threshold crossing.
func (e *Engine) checkMemoryAlerts(ctx context.Context, snapshots []model.Snapshot, total float64) {
	settings := e.Store.Settings(ctx)
	threshold := settings.Notifications.HighMemoryThreshold

	var pending []notify.Notification
	e.mu.Lock()
	for _, s := range snapshots {
		over := threshold > 0 && s.MemoryUsageMB >= threshold
		switch {
		case over && !e.highAlerted[s.TabID]:
			e.highAlerted[s.TabID] = true
			pending = append(pending, notify.HighMemory(s.Title, s.MemoryUsageMB))
		case !over:
			delete(e.highAlerted, s.TabID)
		}
	}
	totalOver := total >= e.cfg.Monitor.TotalMemoryAlertMB
	if totalOver && !e.totalAlert {
		pending = append(pending, notify.TotalMemory(total, len(snapshots)))
	}
	e.totalAlert = totalOver
	e.mu.Unlock()

	if !settings.Notifications.Enabled {
		return
	}
	for _, n := range pending {
		e.send(ctx, n, settings)
	}
}

// ReportHibernated announces a completed bulk hibernation.
func (e *Engine) ReportHibernated(ctx context.Context, count int, freedMB float64) {
	settings := e.Store.Settings(ctx)
	if !settings.Notifications.Enabled {
		return
	}
	e.send(ctx, notify.Hibernated(count, freedMB), settings)
}

func (e *Engine) send(ctx context.Context, n notify.Notification, settings model.Settings) {
	n.Sound = settings.Notifications.SoundEnabled
	e.Metrics.notifications.WithLabelValues(n.Kind).Inc()
	notify.Send(ctx, e.Notifier, n, e.log)
}

// Snapshots returns the snapshots from the latest pass.
func (e *Engine) Snapshots() []model.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Snapshot, len(e.snapshots))
	copy(out, e.snapshots)
	return out
}

// LastTick returns when the latest pass ran, zero before the first.
func (e *Engine) LastTick() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastTick
}

// Refresh runs a pass now and returns its snapshots. A pass already in
// flight is not an error; its predecessor's snapshots are returned.
func (e *Engine) Refresh(ctx context.Context) ([]model.Snapshot, error) {
	if err := e.Tick(ctx); err != nil && !errors.Is(err, ErrTickInProgress) {
		return e.Snapshots(), err
	}
	return e.Snapshots(), nil
}

// Predictions scores snapshots for keep probability.
func (e *Engine) Predictions(ctx context.Context, snapshots []model.Snapshot) []model.Prediction {
	preds := e.Predictor.Predict(ctx, snapshots, e.now())
	e.Metrics.predictionsRun.Add(float64(len(preds)))
	return preds
}

// HealthScore rates a single snapshot at the current time.
func (e *Engine) HealthScore(s model.Snapshot) int {
	return e.Health.Score(s, e.now())
}

// ScoredSnapshots returns snapshots annotated with their health scores.
func (e *Engine) ScoredSnapshots(snapshots []model.Snapshot) []model.Snapshot {
	return e.Health.Annotate(snapshots, e.now())
}

// DomainGroups aggregates snapshots by domain.
func (e *Engine) DomainGroups(snapshots []model.Snapshot) []model.DomainGroup {
	return Aggregate(snapshots)
}

// Insights computes duplicate, heavy and idle tabs over snapshots.
func (e *Engine) Insights(snapshots []model.Snapshot, top, idleMinutes int) Insights {
	return BuildInsights(snapshots, top, time.Duration(idleMinutes)*time.Minute, e.now())
}

// QuickActions returns the stock bulk actions for the current settings.
func (e *Engine) QuickActions(ctx context.Context) []model.QuickAction {
	return QuickActions(e.Store.Settings(ctx).AutoHibernateIdleMinutes)
}

// PlanAction resolves a onto the given snapshots.
func (e *Engine) PlanAction(a model.QuickAction, snapshots []model.Snapshot) ActionPlan {
	return PlanAction(a, snapshots, e.now())
}

// ImportPatterns appends historical usage patterns and reloads the
// predictor so they count immediately.
func (e *Engine) ImportPatterns(ctx context.Context, patterns []model.UsagePattern) error {
	if len(patterns) > 0 {
		if err := e.Store.Patterns.Append(ctx, patterns...); err != nil {
			return fmt.Errorf("append patterns: %w", err)
		}
		e.log.Info().Int("patterns", len(patterns)).Msg("usage patterns imported")
	}
	return e.RefreshPredictions(ctx)
}

// RefreshPredictions reloads the predictor's pattern cache from the store.
func (e *Engine) RefreshPredictions(ctx context.Context) error {
	if err := e.Predictor.Refresh(ctx); err != nil {
		return fmt.Errorf("reload usage patterns: %w", err)
	}
	return nil
}

// ActiveLeaks returns the persisted leak records.
func (e *Engine) ActiveLeaks(ctx context.Context) []model.Leak {
	return e.Store.MemoryLeaks(ctx)
}

// DismissLeak removes the leak record for a tab.
func (e *Engine) DismissLeak(ctx context.Context, tabID int) (bool, error) {
	removed, err := e.Store.RemoveLeak(ctx, tabID)
	if err != nil {
		return false, err
	}
	e.clearLeakAlert(tabID)
	return removed, nil
}
