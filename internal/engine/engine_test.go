package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/model"
	"github.com/lazypower/tabpulse/internal/notify"
	"github.com/lazypower/tabpulse/internal/store"
)

type fakeHost struct {
	mu        sync.Mutex
	tabs      []model.Descriptor
	readings  map[int]float64
	available float64
	listErr   error
	availErr  error
	block     chan struct{}
}

func (h *fakeHost) ListTabs(ctx context.Context) ([]model.Descriptor, error) {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listErr != nil {
		return nil, h.listErr
	}
	return append([]model.Descriptor(nil), h.tabs...), nil
}

func (h *fakeHost) PreciseMemory(_ context.Context, d model.Descriptor) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.readings[d.ID]
	return v, ok
}

func (h *fakeHost) SystemAvailableMemory(context.Context) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available, h.availErr
}

func (h *fakeHost) set(id int, mb float64) {
	h.mu.Lock()
	h.readings[id] = mb
	h.mu.Unlock()
}

var engineNow = time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)

func testEngine(t *testing.T, tabs ...model.Descriptor) (*Engine, *fakeHost, *notify.Mock) {
	t.Helper()
	return testEngineWith(t, config.Default(), tabs...)
}

func testEngineWith(t *testing.T, cfg config.Config, tabs ...model.Descriptor) (*Engine, *fakeHost, *notify.Mock) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	st := store.New(db, cfg.Storage, zerolog.Nop())
	t.Cleanup(func() { st.Close() })

	host := &fakeHost{tabs: tabs, readings: make(map[int]float64), available: 4096}
	mock := &notify.Mock{}
	e := New(cfg, st, host, mock, zerolog.Nop())
	e.SetClock(func() time.Time { return engineNow })
	t.Cleanup(e.Stop)
	return e, host, mock
}

func tab(id int, url string) model.Descriptor {
	return model.Descriptor{ID: id, Title: "tab", URL: url, LastAccessed: engineNow.Add(-time.Minute)}
}

func TestTickBuildsSnapshots(t *testing.T) {
	e, host, _ := testEngine(t,
		model.Descriptor{ID: 1, Title: "Video", URL: "https://www.youtube.com/watch", Active: true, LastAccessed: engineNow},
		tab(2, "https://example.com/a"),
	)
	host.set(2, 77.777)

	require.NoError(t, e.Tick(context.Background()))

	snaps := e.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "youtube.com", snaps[0].Domain)
	assert.Equal(t, 230.0, snaps[0].MemoryUsageMB)
	assert.True(t, snaps[0].IsActive)
	assert.Equal(t, 77.78, snaps[1].MemoryUsageMB)
	assert.Equal(t, engineNow, e.LastTick())

	persisted := e.Store.RecentSnapshots(context.Background(), 10)
	require.Len(t, persisted, 1)
	assert.Equal(t, 2, persisted[0].TabCount)
	assert.InDelta(t, 307.78, persisted[0].TotalMemoryUsageMB, 1e-9)
}

func TestTickDetectsLeakOnce(t *testing.T) {
	e, host, mock := testEngine(t, tab(1, "https://leaky.example"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		host.set(1, 100+float64(i)*10)
		require.NoError(t, e.Tick(ctx))
	}

	leaks := e.ActiveLeaks(ctx)
	require.Len(t, leaks, 1)
	assert.Equal(t, 1, leaks[0].TabID)
	assert.InDelta(t, 16.0, leaks[0].GrowthRate, 1e-9)
	assert.Equal(t, []float64{100, 110, 120, 130, 140}, leaks[0].MemoryHistory)
	assert.True(t, leaks[0].IsConfirmed, "persisted records are confirmed")
	assert.Equal(t, []string{notify.KindLeak}, mock.Kinds())

	host.set(1, 150)
	require.NoError(t, e.Tick(ctx))
	leaks = e.ActiveLeaks(ctx)
	require.Len(t, leaks, 1, "one record per tab")
	assert.Len(t, leaks[0].MemoryHistory, 6)
	assert.Len(t, mock.Calls(), 1, "a continuing episode is not re-announced")
	assert.Equal(t, 2.0, testutil.ToFloat64(e.Metrics.leaksDetected))
}

func TestLeakAlertRearmsAfterPlateau(t *testing.T) {
	cfg := config.Default()
	cfg.Monitor.HistorySize = 5
	e, host, mock := testEngineWith(t, cfg, tab(1, "https://leaky.example"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		host.set(1, 100+float64(i))
		require.NoError(t, e.Tick(ctx))
	}
	for i := 0; i < 5; i++ {
		host.set(1, 50)
		require.NoError(t, e.Tick(ctx))
	}
	for i := 0; i < 5; i++ {
		host.set(1, 200+float64(i))
		require.NoError(t, e.Tick(ctx))
	}
	assert.Equal(t, []string{notify.KindLeak, notify.KindLeak}, mock.Kinds())
}

func TestLeakAlertEveryDetection(t *testing.T) {
	cfg := config.Default()
	cfg.Monitor.LeakAlertOnce = false
	e, host, mock := testEngineWith(t, cfg, tab(1, "https://leaky.example"))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		host.set(1, 100+float64(i)*10)
		require.NoError(t, e.Tick(ctx))
	}
	assert.Equal(t, []string{notify.KindLeak, notify.KindLeak, notify.KindLeak}, mock.Kinds())
	assert.Len(t, e.ActiveLeaks(ctx), 1)
}

func TestLeakAlertsRespectSettings(t *testing.T) {
	e, host, mock := testEngine(t, tab(1, "https://leaky.example"))
	ctx := context.Background()
	_, err := e.Store.UpdateSettings(ctx, []byte(`{"notifications":{"leakAlerts":false}}`))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		host.set(1, 100+float64(i)*10)
		require.NoError(t, e.Tick(ctx))
	}
	assert.Len(t, e.ActiveLeaks(ctx), 1, "leak is still recorded")
	assert.Empty(t, mock.Calls())
}

func TestInternalPagesNotSampled(t *testing.T) {
	e, _, _ := testEngine(t,
		tab(1, "chrome://settings"),
		tab(2, "chrome-extension://abc/popup.html"),
		tab(3, "https://example.com"),
	)
	require.NoError(t, e.Tick(context.Background()))

	assert.Len(t, e.Snapshots(), 3)
	assert.Nil(t, e.History().Get(1))
	assert.Nil(t, e.History().Get(2))
	assert.Equal(t, []float64{50}, e.History().Get(3))
}

func TestSystemSampleSource(t *testing.T) {
	cfg := config.Default()
	cfg.Monitor.SampleSource = "system"
	e, host, _ := testEngineWith(t, cfg, tab(1, "https://a.com"), tab(2, "https://b.com"))
	host.available = 3000

	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, []float64{3000}, e.History().Get(1))
	assert.Equal(t, []float64{3000}, e.History().Get(2))

	host.availErr = errors.New("no reading")
	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, []float64{3000}, e.History().Get(1), "no reading, no sample")
}

func TestTickListFailureKeepsState(t *testing.T) {
	e, host, _ := testEngine(t, tab(1, "https://a.com"))
	require.NoError(t, e.Tick(context.Background()))

	host.listErr = errors.New("agent gone")
	err := e.Tick(context.Background())
	require.Error(t, err)
	assert.Len(t, e.Snapshots(), 1)
	assert.Equal(t, []float64{50}, e.History().Get(1))
}

func TestTickReentrancyGuard(t *testing.T) {
	e, host, _ := testEngine(t, tab(1, "https://a.com"))
	host.block = make(chan struct{})

	done := make(chan error)
	go func() { done <- e.Tick(context.Background()) }()

	require.Eventually(t, func() bool { return e.ticking.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, e.Tick(context.Background()), ErrTickInProgress)

	close(host.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics.ticks.WithLabelValues("skipped")))
}

func TestTickPrunesRemovedTabs(t *testing.T) {
	e, host, _ := testEngine(t, tab(1, "https://a.com"), tab(2, "https://b.com"))
	require.NoError(t, e.Tick(context.Background()))
	require.Equal(t, 2, e.History().Len())

	host.mu.Lock()
	host.tabs = host.tabs[:1]
	host.mu.Unlock()
	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, 1, e.History().Len())
}

func TestTabRemovedDeletesHistory(t *testing.T) {
	e, _, _ := testEngine(t, tab(1, "https://a.com"))
	require.NoError(t, e.Tick(context.Background()))
	require.NotNil(t, e.History().Get(1))

	e.TabRemoved(1)
	assert.Nil(t, e.History().Get(1))
}

func TestTabActivatedRecordsUsage(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Predictor.Refresh(ctx))

	require.NoError(t, e.TabActivated(ctx, tab(4, "https://www.github.com/x")))

	patterns, err := e.Store.UsagePatterns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "github.com", patterns[0].Domain)
	assert.Equal(t, 3, patterns[0].DayOfWeek)
	assert.Equal(t, 14, patterns[0].HourOfDay)

	access := e.Store.Access.All(ctx)
	require.Len(t, access, 1)
	assert.Equal(t, engineNow, access[0].Timestamp.UTC())

	assert.Equal(t, 1, e.Predictor.CacheLen(), "predictor observes activations")
}

func TestHighMemoryAlertOncePerCrossing(t *testing.T) {
	e, host, mock := testEngine(t, tab(1, "https://a.com"))
	ctx := context.Background()

	host.set(1, 600)
	require.NoError(t, e.Tick(ctx))
	require.NoError(t, e.Tick(ctx))
	assert.Equal(t, []string{notify.KindHighMemory}, mock.Kinds())

	host.set(1, 200)
	require.NoError(t, e.Tick(ctx))
	host.set(1, 500)
	require.NoError(t, e.Tick(ctx))
	assert.Equal(t, []string{notify.KindHighMemory, notify.KindHighMemory}, mock.Kinds())
}

func TestTotalMemoryAlert(t *testing.T) {
	e, host, mock := testEngine(t, tab(1, "https://a.com"), tab(2, "https://b.com"))
	ctx := context.Background()
	_, err := e.Store.UpdateSettings(ctx, []byte(`{"notifications":{"highMemoryThreshold":0}}`))
	require.NoError(t, err)

	host.set(1, 1024)
	host.set(2, 1024)
	require.NoError(t, e.Tick(ctx))
	require.NoError(t, e.Tick(ctx))
	require.Equal(t, []string{notify.KindTotalMemory}, mock.Kinds())
	assert.Contains(t, mock.Calls()[0].Message, "2 tabs are using a total of 2.0 GB")
}

func TestNotificationsDisabled(t *testing.T) {
	e, host, mock := testEngine(t, tab(1, "https://a.com"))
	ctx := context.Background()
	_, err := e.Store.UpdateSettings(ctx, []byte(`{"notifications":{"enabled":false}}`))
	require.NoError(t, err)

	host.set(1, 5000)
	require.NoError(t, e.Tick(ctx))
	assert.Empty(t, mock.Calls())
}

func TestRefreshAndQueries(t *testing.T) {
	e, host, _ := testEngine(t,
		tab(1, "https://a.com/x"),
		tab(2, "https://a.com/x/"),
		tab(3, "https://b.com"),
	)
	host.set(3, 420)
	ctx := context.Background()

	snaps, err := e.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	groups := e.DomainGroups(snaps)
	require.Len(t, groups, 2)
	assert.Equal(t, "a.com", groups[0].Domain)

	preds := e.Predictions(ctx, snaps)
	assert.Len(t, preds, 3)

	scored := e.ScoredSnapshots(snaps)
	require.NotNil(t, scored[2].HealthScore)
	assert.Equal(t, e.HealthScore(snaps[2]), *scored[2].HealthScore)

	ins := e.Insights(snaps, 1, 30)
	assert.Len(t, ins.Duplicates, 1)
	require.Len(t, ins.TopConsumers, 1)
	assert.Equal(t, 3, ins.TopConsumers[0].TabID)
	assert.Empty(t, ins.IdleTabs)

	actions := e.QuickActions(ctx)
	assert.Equal(t, 60, actions[0].Filter.OlderThanMinutes)
}

func TestDismissLeak(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Store.SaveLeak(ctx, model.Leak{TabID: 9}))

	ok, err := e.DismissLeak(ctx, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, e.ActiveLeaks(ctx))
}

func TestReportHibernated(t *testing.T) {
	e, _, mock := testEngine(t)
	ctx := context.Background()
	e.ReportHibernated(ctx, 3, 450)
	assert.Equal(t, []string{notify.KindHibernated}, mock.Kinds())

	_, err := e.Store.UpdateSettings(ctx, []byte(`{"notifications":{"enabled":false}}`))
	require.NoError(t, err)
	e.ReportHibernated(ctx, 1, 80)
	assert.Len(t, mock.Calls(), 1)
}

func TestStartStop(t *testing.T) {
	cfg := config.Default()
	cfg.Monitor.SampleIntervalMinutes = 0.0005
	e, _, _ := testEngineWith(t, cfg, tab(1, "https://a.com"))

	e.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(e.Store.RecentSnapshots(context.Background(), 10)) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	e.Stop()
	e.Stop()
	assert.Equal(t, 0, e.History().Len())
}

func TestSubscribe(t *testing.T) {
	e, _, _ := testEngine(t)
	var removed []int
	require.NoError(t, e.Subscribe(TopicTabRemoved, func(id int) { removed = append(removed, id) }))
	e.TabRemoved(5)
	assert.Equal(t, []int{5}, removed)
}

func TestMissingLastAccessedCountsAsNow(t *testing.T) {
	e, host, _ := testEngine(t, model.Descriptor{ID: 7, Title: "Docs", URL: "https://docs.example.com"})
	host.set(7, 50)
	ctx := context.Background()

	snaps, err := e.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].LastAccessed.Equal(engineNow))

	assert.Equal(t, 100, e.HealthScore(snaps[0]))
	assert.InDelta(t, 1.0, e.Predictor.Factors(snaps[0], nil, engineNow).Recency, 1e-9)

	preds := e.Predictions(ctx, snaps)
	require.Len(t, preds, 1)
	assert.True(t, preds[0].SuggestKeep)

	for _, a := range e.QuickActions(ctx) {
		if a.ID == "close-stale" {
			assert.Empty(t, e.PlanAction(a, snaps).TabIDs)
		}
	}
	assert.Empty(t, e.Insights(snaps, 5, 30).IdleTabs)
}

func TestImportPatternsRefreshesPredictor(t *testing.T) {
	e, _, _ := testEngine(t, tab(1, "https://mail.example.com"))
	ctx := context.Background()
	snaps, err := e.Refresh(ctx)
	require.NoError(t, err)

	before := e.Predictions(ctx, snaps)[0].Probability
	require.Zero(t, e.Predictor.CacheLen())

	var patterns []model.UsagePattern
	for i := 0; i < 20; i++ {
		patterns = append(patterns, model.NewUsagePattern(1, "mail.example.com", engineNow.Add(-time.Duration(i)*24*time.Hour)))
	}
	require.NoError(t, e.ImportPatterns(ctx, patterns))
	assert.Equal(t, 20, e.Predictor.CacheLen())

	after := e.Predictions(ctx, snaps)[0].Probability
	assert.Greater(t, after, before)
}
