package engine

import (
	"math"
	"time"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/model"
)

const (
	maxScore = 100
	// idle time up to this many hours is not penalised
	idleGraceHours = 1
)

// HealthScorer rates a single tab from 0 (unhealthy) to 100.
type HealthScorer struct {
	cfg config.HealthConfig
}

// NewHealthScorer builds a scorer with the given penalties.
func NewHealthScorer(cfg config.HealthConfig) HealthScorer {
	return HealthScorer{cfg: cfg}
}

// Score rates s at now. Memory costs MemoryPenaltyPoints per full
// MemoryPenaltyStep above MemoryPenaltyThreshold; idle time costs
// TimePenaltyPoints per full hour once past the grace hour. Both penalties
// are capped and the result is clamped to [0,100].
func (h HealthScorer) Score(s model.Snapshot, now time.Time) int {
	score := maxScore

	if s.MemoryUsageMB > h.cfg.MemoryPenaltyThreshold && h.cfg.MemoryPenaltyStep > 0 {
		steps := math.Floor((s.MemoryUsageMB - h.cfg.MemoryPenaltyThreshold) / h.cfg.MemoryPenaltyStep)
		score -= capPenalty(steps, h.cfg.MemoryPenaltyPoints, h.cfg.MemoryPenaltyMax)
	}

	if !s.LastAccessed.IsZero() {
		hours := now.Sub(s.LastAccessed).Hours()
		if hours > idleGraceHours {
			score -= capPenalty(math.Floor(hours), h.cfg.TimePenaltyPoints, h.cfg.TimePenaltyMax)
		}
	}

	if s.IsActive {
		score += h.cfg.ActiveTabBonus
	}
	return clampScore(score)
}

// Annotate returns copies of snapshots carrying their health score.
func (h HealthScorer) Annotate(snapshots []model.Snapshot, now time.Time) []model.Snapshot {
	out := make([]model.Snapshot, len(snapshots))
	for i, s := range snapshots {
		out[i] = s.WithHealth(h.Score(s, now))
	}
	return out
}

func capPenalty(steps float64, points, max int) int {
	penalty := steps * float64(points)
	if penalty > float64(max) {
		return max
	}
	return int(penalty)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
