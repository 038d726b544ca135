package visits

import (
	"sort"

	"github.com/lazypower/tabpulse/internal/model"
)

// Patterns converts visits into usage patterns, oldest first, keeping at
// most limit of the newest. A limit of 0 keeps everything.
func Patterns(visits []Visit, limit int) []model.UsagePattern {
	sorted := make([]Visit, len(visits))
	copy(sorted, visits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}

	out := make([]model.UsagePattern, 0, len(sorted))
	for _, v := range sorted {
		out = append(out, model.NewUsagePattern(v.TabID, v.Domain, v.At))
	}
	return out
}

// DomainCount is the number of visits to one domain.
type DomainCount struct {
	Domain string
	Visits int
}

// Summarize counts visits per domain, most visited first. Ties keep
// first-seen order.
func Summarize(visits []Visit) []DomainCount {
	index := make(map[string]int)
	var counts []DomainCount
	for _, v := range visits {
		i, ok := index[v.Domain]
		if !ok {
			i = len(counts)
			index[v.Domain] = i
			counts = append(counts, DomainCount{Domain: v.Domain})
		}
		counts[i].Visits++
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Visits > counts[j].Visits })
	return counts
}
