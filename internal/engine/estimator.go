package engine

import (
	"math"
	"strings"

	"github.com/lazypower/tabpulse/internal/model"
)

// Heuristic estimate components, in MB.
const (
	baseMemoryMB   = 50
	heavySiteMB    = 150
	mediumSiteMB   = 80
	devSiteMB      = 60
	activeTabMB    = 30
	pinnedTabMB    = 20
	precisionScale = 100
)

var (
	heavySites  = []string{"youtube.com", "netflix.com", "twitch.tv", "kick.com"}
	mediumSites = []string{"facebook.com", "instagram.com", "linkedin.com", "reddit.com", "x.com"}
	devSites    = []string{"github.com", "stackoverflow.com", "gitlab.com", "codepen.io"}
)

// EstimateMemory derives a heuristic MB figure for a tab from its URL and
// flags. Each site list contributes its bonus at most once, and the lists
// are checked independently so bonuses can stack.
func EstimateMemory(d model.Descriptor) float64 {
	estimate := float64(baseMemoryMB)
	url := strings.ToLower(d.URL)

	if matchesAny(url, heavySites) {
		estimate += heavySiteMB
	}
	if matchesAny(url, mediumSites) {
		estimate += mediumSiteMB
	}
	if matchesAny(url, devSites) {
		estimate += devSiteMB
	}
	if d.Active {
		estimate += activeTabMB
	}
	if d.Pinned {
		estimate += pinnedTabMB
	}
	return estimate
}

// Measure returns the precise reading rounded to two decimals when one is
// available, and the heuristic estimate otherwise.
func Measure(d model.Descriptor, precise float64, ok bool) float64 {
	if ok && precise >= 0 && !math.IsNaN(precise) && !math.IsInf(precise, 0) {
		return math.Round(precise*precisionScale) / precisionScale
	}
	return EstimateMemory(d)
}

func matchesAny(url string, sites []string) bool {
	for _, site := range sites {
		if strings.Contains(url, site) {
			return true
		}
	}
	return false
}
