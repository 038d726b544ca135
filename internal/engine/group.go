package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lazypower/tabpulse/internal/model"
)

// Domain health tiers.
const (
	domainMemoryHighMB   = 500
	domainMemoryMidMB    = 300
	domainMemoryLowMB    = 150
	domainManyTabs       = 10
	domainSeveralTabs    = 5
	domainHeavyAverageMB = 200
)

// Aggregate groups snapshots by domain in first-seen order and scores each
// group.
func Aggregate(snapshots []model.Snapshot) []model.DomainGroup {
	index := make(map[string]int)
	var groups []model.DomainGroup
	for _, s := range snapshots {
		i, ok := index[s.Domain]
		if !ok {
			i = len(groups)
			index[s.Domain] = i
			groups = append(groups, model.DomainGroup{Domain: s.Domain})
		}
		g := &groups[i]
		g.Tabs = append(g.Tabs, s)
		g.TotalMemoryUsageMB += s.MemoryUsageMB
		g.TabCount++
	}
	for i := range groups {
		groups[i].HealthScore = DomainHealth(groups[i])
	}
	return groups
}

// DomainHealth scores a group from its total memory, tab count and average
// per-tab memory. Within each tier family only the highest match applies.
func DomainHealth(g model.DomainGroup) int {
	score := maxScore

	switch {
	case g.TotalMemoryUsageMB > domainMemoryHighMB:
		score -= 30
	case g.TotalMemoryUsageMB > domainMemoryMidMB:
		score -= 20
	case g.TotalMemoryUsageMB > domainMemoryLowMB:
		score -= 10
	}

	switch {
	case g.TabCount > domainManyTabs:
		score -= 20
	case g.TabCount > domainSeveralTabs:
		score -= 10
	}

	if g.TabCount > 0 && g.TotalMemoryUsageMB/float64(g.TabCount) > domainHeavyAverageMB {
		score -= 15
	}
	return clampScore(score)
}

// DuplicateSet is a URL open in more than one tab.
type DuplicateSet struct {
	URL  string           `json:"url"`
	Tabs []model.Snapshot `json:"tabs"`
}

// FindDuplicates returns the URLs open in two or more tabs, ignoring a
// trailing slash. Tabs without a URL are skipped.
func FindDuplicates(snapshots []model.Snapshot) []DuplicateSet {
	index := make(map[string]int)
	var sets []DuplicateSet
	for _, s := range snapshots {
		if s.URL == "" {
			continue
		}
		url := strings.TrimSuffix(s.URL, "/")
		i, ok := index[url]
		if !ok {
			i = len(sets)
			index[url] = i
			sets = append(sets, DuplicateSet{URL: url})
		}
		sets[i].Tabs = append(sets[i].Tabs, s)
	}

	out := sets[:0]
	for _, set := range sets {
		if len(set.Tabs) > 1 {
			out = append(out, set)
		}
	}
	return out
}

// TopConsumers returns up to n snapshots with the highest memory usage.
func TopConsumers(snapshots []model.Snapshot, n int) []model.Snapshot {
	sorted := make([]model.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MemoryUsageMB > sorted[j].MemoryUsageMB
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// IdleTabs returns the inactive tabs last accessed before now - idle.
func IdleTabs(snapshots []model.Snapshot, idle time.Duration, now time.Time) []model.Snapshot {
	cutoff := now.Add(-idle)
	var out []model.Snapshot
	for _, s := range snapshots {
		if s.IsActive {
			continue
		}
		if s.LastAccessed.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Insights are the derived tab-management hints shown next to the groups.
type Insights struct {
	Duplicates   []DuplicateSet   `json:"duplicates"`
	TopConsumers []model.Snapshot `json:"topConsumers"`
	IdleTabs     []model.Snapshot `json:"idleTabs"`
}

// Insights defaults.
const (
	DefaultTopConsumers = 10
	DefaultIdleMinutes  = 30
)

// BuildInsights computes duplicates, the top consumers and idle tabs.
func BuildInsights(snapshots []model.Snapshot, top int, idle time.Duration, now time.Time) Insights {
	return Insights{
		Duplicates:   FindDuplicates(snapshots),
		TopConsumers: TopConsumers(snapshots, top),
		IdleTabs:     IdleTabs(snapshots, idle, now),
	}
}

// QuickActions returns the stock bulk actions. idleMinutes comes from the
// auto-hibernate setting.
func QuickActions(idleMinutes int) []model.QuickAction {
	return []model.QuickAction{
		{
			ID:          "hibernate-idle",
			Name:        "Hibernate idle tabs",
			Description: fmt.Sprintf("Discard tabs not used in the last %d minutes", idleMinutes),
			Icon:        "moon",
			Action:      model.ActionHibernate,
			Filter:      model.TabFilter{OlderThanMinutes: idleMinutes, ExcludeActive: true, ExcludePinned: true},
		},
		{
			ID:          "hibernate-heavy",
			Name:        "Hibernate heavy tabs",
			Description: "Discard background tabs above 300 MB",
			Icon:        "zap",
			Action:      model.ActionHibernate,
			Filter:      model.TabFilter{MemoryAboveMB: 300, ExcludeActive: true},
		},
		{
			ID:          "close-stale",
			Name:        "Close stale tabs",
			Description: "Close unpinned tabs not used in a day",
			Icon:        "trash",
			Action:      model.ActionClose,
			Filter:      model.TabFilter{OlderThanMinutes: 24 * 60, ExcludeActive: true, ExcludePinned: true},
		},
		{
			ID:          "group-domains",
			Name:        "Group by domain",
			Description: "Group tabs that share a domain",
			Icon:        "layers",
			Action:      model.ActionGroup,
		},
	}
}

// ActionPlan lists the tabs an action applies to. The browser agent
// carries it out.
type ActionPlan struct {
	Action  model.ActionKind `json:"action"`
	TabIDs  []int            `json:"tabIds"`
	FreedMB float64          `json:"freedMB"`

	// Groups is only set for group actions: domain to tab ids.
	Groups map[string][]int `json:"groups,omitempty"`
}

// PlanAction selects the snapshots matching a's filter.
func PlanAction(a model.QuickAction, snapshots []model.Snapshot, now time.Time) ActionPlan {
	plan := ActionPlan{Action: a.Action, TabIDs: []int{}}
	var matched []model.Snapshot
	for _, s := range snapshots {
		if a.Filter.Match(s, now) {
			matched = append(matched, s)
			plan.TabIDs = append(plan.TabIDs, s.TabID)
		}
	}

	switch a.Action {
	case model.ActionGroup:
		plan.Groups = make(map[string][]int)
		for _, g := range Aggregate(matched) {
			if g.TabCount < 2 {
				continue
			}
			for _, s := range g.Tabs {
				plan.Groups[g.Domain] = append(plan.Groups[g.Domain], s.TabID)
			}
		}
	default:
		for _, s := range matched {
			if !s.IsDiscarded {
				plan.FreedMB += s.MemoryUsageMB
			}
		}
	}
	return plan
}

// FormatMemory renders mb as "X.X MB", switching to GB from 1024 MB.
func FormatMemory(mb float64) string {
	if mb >= 1024 {
		return fmt.Sprintf("%.1f GB", mb/1024)
	}
	return fmt.Sprintf("%.1f MB", mb)
}
