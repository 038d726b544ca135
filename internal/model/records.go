package model

import "time"

// Leak records a sustained-growth pattern detected in a tab's sample window.
type Leak struct {
	TabID         int       `json:"tabId"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	GrowthRate    float64   `json:"growthRate"` // MB per minute, signed
	MemoryHistory []float64 `json:"memoryHistory"`
	DetectedAt    time.Time `json:"detectedAt"`
	IsConfirmed   bool      `json:"isConfirmed"`
}

// UsagePattern is one tab activation, bucketed for the predictor.
type UsagePattern struct {
	TabID      int       `json:"tabId"`
	Domain     string    `json:"domain"`
	AccessedAt time.Time `json:"accessedAt"`
	DayOfWeek  int       `json:"dayOfWeek"`
	HourOfDay  int       `json:"hourOfDay"`
	DurationMS int64     `json:"durationMs"`
}

// NewUsagePattern buckets an access at t using t's location.
func NewUsagePattern(tabID int, domain string, t time.Time) UsagePattern {
	return UsagePattern{
		TabID:      tabID,
		Domain:     domain,
		AccessedAt: t,
		DayOfWeek:  int(t.Weekday()),
		HourOfDay:  t.Hour(),
	}
}

// AccessEvent is a raw activation entry in the access log.
type AccessEvent struct {
	TabID     int       `json:"tabId"`
	Timestamp time.Time `json:"timestamp"`
}

// MemorySnapshot is the persisted summary of one sampling pass.
type MemorySnapshot struct {
	Timestamp          time.Time  `json:"timestamp"`
	Tabs               []Snapshot `json:"tabs"`
	TotalMemoryUsageMB float64    `json:"totalMemoryUsageMB"`
	TabCount           int        `json:"tabCount"`
}

// Confidence buckets a prediction's probability.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Prediction is the keep/discard estimate for a single tab.
type Prediction struct {
	TabID       int        `json:"tabId"`
	Title       string     `json:"title"`
	Probability float64    `json:"probability"`
	SuggestKeep bool       `json:"suggestKeep"`
	Reasoning   string     `json:"reasoning"`
	Confidence  Confidence `json:"confidence"`
}

// DomainGroup aggregates the tabs of one domain.
type DomainGroup struct {
	Domain             string     `json:"domain"`
	Tabs               []Snapshot `json:"tabs"`
	TotalMemoryUsageMB float64    `json:"totalMemoryUsageMB"`
	TabCount           int        `json:"tabCount"`
	HealthScore        int        `json:"healthScore"`
}

// SavedTab is a tab stored inside a Session.
type SavedTab struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Favicon string `json:"favicon,omitempty"`
	Pinned  bool   `json:"pinned,omitempty"`
}

// Session is a named, saved set of tabs.
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	Tabs      []SavedTab `json:"tabs"`
	TabCount  int        `json:"tabCount"`
}

// TabFilter selects tabs for a bulk action. Zero fields do not filter.
type TabFilter struct {
	Domain           string  `json:"domain,omitempty"`
	OlderThanMinutes int     `json:"olderThanMinutes,omitempty"`
	MemoryAboveMB    float64 `json:"memoryAboveMB,omitempty"`
	ExcludeActive    bool    `json:"excludeActive,omitempty"`
	ExcludePinned    bool    `json:"excludePinned,omitempty"`
}

// Match reports whether s passes the filter at time now.
func (f TabFilter) Match(s Snapshot, now time.Time) bool {
	if f.Domain != "" && s.Domain != f.Domain {
		return false
	}
	if f.OlderThanMinutes > 0 && now.Sub(s.LastAccessed) < time.Duration(f.OlderThanMinutes)*time.Minute {
		return false
	}
	if f.MemoryAboveMB > 0 && s.MemoryUsageMB <= f.MemoryAboveMB {
		return false
	}
	if f.ExcludeActive && s.IsActive {
		return false
	}
	if f.ExcludePinned && s.IsPinned {
		return false
	}
	return true
}

// ActionKind is what the browser agent does with the planned tabs.
type ActionKind string

const (
	ActionHibernate ActionKind = "hibernate"
	ActionClose     ActionKind = "close"
	ActionGroup     ActionKind = "group"
)

// QuickAction is a named bulk action over a filter.
type QuickAction struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Action      ActionKind `json:"action"`
	Filter      TabFilter  `json:"filter"`
}
