package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Descriptor is a live tab as reported by the browser agent.
type Descriptor struct {
	ID           int       `json:"id"`
	WindowID     int       `json:"windowId,omitempty"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	FavIconURL   string    `json:"favIconUrl,omitempty"`
	Active       bool      `json:"active"`
	Pinned       bool      `json:"pinned"`
	Discarded    bool      `json:"discarded"`
	LastAccessed time.Time `json:"lastAccessed"`

	// Optional precise-reading hints. PID is the renderer process hosting
	// the tab; MemoryBytes is private memory reported by the browser itself.
	PID         int32  `json:"pid,omitempty"`
	MemoryBytes uint64 `json:"memoryBytes,omitempty"`
}

// UnmarshalJSON accepts lastAccessed as the browser's epoch milliseconds or
// as an RFC 3339 string. A missing value leaves it zero.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	type plain Descriptor
	aux := struct {
		*plain
		LastAccessed json.RawMessage `json:"lastAccessed"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := ParseTimestamp(aux.LastAccessed)
	if err != nil {
		return fmt.Errorf("lastAccessed: %w", err)
	}
	d.LastAccessed = t
	return nil
}

// ParseTimestamp decodes epoch milliseconds (fractional allowed) or an
// RFC 3339 string. Absent, null and non-positive values yield the zero time.
func ParseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if ms <= 0 {
			return time.Time{}, nil
		}
		return time.UnixMilli(int64(ms)), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Snapshot is one tab's measured state for a single sampling pass.
// Snapshots are replaced wholesale every pass, never mutated.
type Snapshot struct {
	TabID         int       `json:"tabId"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Favicon       string    `json:"favicon,omitempty"`
	Domain        string    `json:"domain"`
	MemoryUsageMB float64   `json:"memoryUsageMB"`
	CPUUsage      float64   `json:"cpuUsage"`
	LastAccessed  time.Time `json:"lastAccessed"`
	IsActive      bool      `json:"isActive"`
	IsPinned      bool      `json:"isPinned"`
	IsDiscarded   bool      `json:"isDiscarded"`
	HealthScore   *int      `json:"healthScore,omitempty"`
}

// WithHealth returns a copy of s carrying the given health score.
func (s Snapshot) WithHealth(score int) Snapshot {
	s.HealthScore = &score
	return s
}

// Domain sentinels.
const (
	DomainBlank     = "unknown"
	DomainMalformed = "Unknown"
)

// DomainOf returns the lowercased hostname of rawURL with any "www." prefix
// stripped. Blank input yields "unknown"; input that is not an absolute URL
// yields "Unknown".
func DomainOf(rawURL string) string {
	if strings.TrimSpace(rawURL) == "" {
		return DomainBlank
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque != "") {
		return DomainMalformed
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
