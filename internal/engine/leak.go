package engine

import (
	"time"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/model"
)

// Verdict is the outcome of evaluating a sample window.
type Verdict int

const (
	InsufficientData Verdict = iota
	NotGrowing
	Growing
)

func (v Verdict) String() string {
	switch v {
	case InsufficientData:
		return "insufficient data"
	case NotGrowing:
		return "not growing"
	case Growing:
		return "growing"
	}
	return "unknown"
}

// LeakDetector applies the sustained-growth test to sample windows.
type LeakDetector struct {
	MinSamples      int
	Threshold       float64
	IntervalMinutes float64
}

// NewLeakDetector builds a detector from the monitor settings.
func NewLeakDetector(cfg config.MonitorConfig) LeakDetector {
	return LeakDetector{
		MinSamples:      cfg.HistoryMinSize,
		Threshold:       cfg.GrowthThreshold,
		IntervalMinutes: cfg.SampleIntervalMinutes,
	}
}

// Evaluate counts adjacent increases in history. The window is growing when
// increases >= len(history) * Threshold; the full length is the base, not
// the number of pairs.
func (d LeakDetector) Evaluate(history []float64) Verdict {
	n := len(history)
	if n < d.MinSamples || n < 2 {
		return InsufficientData
	}

	increases := 0
	for i := 1; i < n; i++ {
		if history[i] > history[i-1] {
			increases++
		}
	}
	if float64(increases) >= float64(n)*d.Threshold {
		return Growing
	}
	return NotGrowing
}

// GrowthRate returns the MB per minute change across history.
func (d LeakDetector) GrowthRate(history []float64) float64 {
	n := len(history)
	if n == 0 || d.IntervalMinutes <= 0 {
		return 0
	}
	return (history[n-1] - history[0]) / (float64(n) * d.IntervalMinutes)
}

// Detect evaluates history for s and returns a leak record when it is
// growing. The record carries its own copy of the window and is confirmed:
// it only exists once the full sustained-growth test has passed.
func (d LeakDetector) Detect(s model.Snapshot, history []float64, now time.Time) (model.Leak, bool) {
	if d.Evaluate(history) != Growing {
		return model.Leak{}, false
	}
	window := make([]float64, len(history))
	copy(window, history)
	return model.Leak{
		TabID:         s.TabID,
		Title:         s.Title,
		URL:           s.URL,
		GrowthRate:    d.GrowthRate(history),
		MemoryHistory: window,
		DetectedAt:    now,
		IsConfirmed:   true,
	}, true
}
