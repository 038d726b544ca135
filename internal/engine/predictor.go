package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/model"
)

const (
	// neutralScore is returned by a factor that lacks the data to say more.
	neutralScore = 0.5
	// minDomainPatterns is the sample size below which the temporal factors
	// stay neutral.
	minDomainPatterns = 5
	hourWindow        = 2
)

// PatternSource supplies the recent usage patterns the predictor learns from.
type PatternSource interface {
	UsagePatterns(ctx context.Context, limit int) ([]model.UsagePattern, error)
}

// Factors are the per-tab signals, each in [0,1].
type Factors struct {
	Recency   float64 `json:"recency"`
	Frequency float64 `json:"frequency"`
	TimeOfDay float64 `json:"timeOfDay"`
	DayOfWeek float64 `json:"dayOfWeek"`
}

// Predictor scores how likely the user is to want each tab kept.
type Predictor struct {
	cfg    config.PredictorConfig
	source PatternSource
	log    zerolog.Logger

	mu       sync.RWMutex
	reasoner Reasoner
	cache    []model.UsagePattern
	loaded   bool
}

// NewPredictor creates a predictor backed by source. The cache is filled
// lazily on the first prediction.
func NewPredictor(cfg config.PredictorConfig, source PatternSource, log zerolog.Logger) *Predictor {
	return &Predictor{
		cfg:      cfg,
		source:   source,
		log:      log.With().Str("component", "predictor").Logger(),
		reasoner: DefaultReasoner(),
	}
}

// SetReasoner swaps the explanation strategy.
func (p *Predictor) SetReasoner(r Reasoner) {
	p.mu.Lock()
	p.reasoner = r
	p.mu.Unlock()
}

// Refresh reloads the pattern cache from the source.
func (p *Predictor) Refresh(ctx context.Context) error {
	patterns, err := p.source.UsagePatterns(ctx, p.cfg.CacheSize)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.cache = patterns
	p.loaded = true
	p.mu.Unlock()
	return nil
}

// Observe adds a freshly recorded pattern to a loaded cache. An unloaded
// cache picks it up from the source on its first refresh.
func (p *Predictor) Observe(u model.UsagePattern) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return
	}
	p.cache = append(p.cache, u)
	if max := p.cfg.CacheSize; max > 0 && len(p.cache) > max {
		p.cache = append([]model.UsagePattern(nil), p.cache[len(p.cache)-max:]...)
	}
}

// CacheLen returns the number of cached patterns.
func (p *Predictor) CacheLen() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}

// Predict scores every snapshot independently. A failing pattern source
// is logged and the prediction proceeds on whatever is cached.
func (p *Predictor) Predict(ctx context.Context, snapshots []model.Snapshot, now time.Time) []model.Prediction {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if !loaded {
		if err := p.Refresh(ctx); err != nil {
			p.log.Warn().Err(err).Msg("load usage patterns")
		}
	}

	p.mu.RLock()
	patterns := p.cache
	reasoner := p.reasoner
	p.mu.RUnlock()

	out := make([]model.Prediction, 0, len(snapshots))
	for _, s := range snapshots {
		f := p.Factors(s, patterns, now)
		prob := p.Probability(f)
		out = append(out, model.Prediction{
			TabID:       s.TabID,
			Title:       s.Title,
			Probability: prob,
			SuggestKeep: prob > p.cfg.KeepThreshold,
			Reasoning:   reasoner.Explain(s, f),
			Confidence:  p.Confidence(prob),
		})
	}
	return out
}

// Factors computes the four signals for s against patterns at now.
func (p *Predictor) Factors(s model.Snapshot, patterns []model.UsagePattern, now time.Time) Factors {
	var domain []model.UsagePattern
	for _, u := range patterns {
		if u.Domain == s.Domain {
			domain = append(domain, u)
		}
	}
	return Factors{
		Recency:   p.recency(s, now),
		Frequency: frequencyScore(len(domain), len(patterns)),
		TimeOfDay: timeOfDayScore(domain, now.Hour()),
		DayOfWeek: dayOfWeekScore(domain, int(now.Weekday())),
	}
}

// Probability is the weighted sum of f, clamped to [0,1].
func (p *Predictor) Probability(f Factors) float64 {
	sum := f.Recency*p.cfg.RecencyWeight +
		f.Frequency*p.cfg.FrequencyWeight +
		f.TimeOfDay*p.cfg.TimeWeight +
		f.DayOfWeek*p.cfg.DayWeight
	return clamp01(sum)
}

// Confidence buckets prob. Both cutoffs are exclusive.
func (p *Predictor) Confidence(prob float64) model.Confidence {
	switch {
	case prob > p.cfg.HighConfidence:
		return model.ConfidenceHigh
	case prob > p.cfg.MediumConfidence:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func (p *Predictor) recency(s model.Snapshot, now time.Time) float64 {
	if s.IsActive {
		return 1
	}
	return RecencyDecay(now.Sub(s.LastAccessed).Hours(), p.cfg.DecayRate)
}

func frequencyScore(domainCount, total int) float64 {
	if total == 0 {
		return neutralScore
	}
	fraction := float64(domainCount) / float64(total)
	return math.Min(1, math.Sqrt(fraction*10))
}

func timeOfDayScore(domain []model.UsagePattern, hour int) float64 {
	if len(domain) < minDomainPatterns {
		return neutralScore
	}
	near := 0
	for _, u := range domain {
		if hourDistance(u.HourOfDay, hour) <= hourWindow {
			near++
		}
	}
	return math.Min(1, float64(near)/float64(len(domain))*2)
}

func dayOfWeekScore(domain []model.UsagePattern, day int) float64 {
	if len(domain) < minDomainPatterns {
		return neutralScore
	}
	same := 0
	for _, u := range domain {
		if u.DayOfWeek == day {
			same++
		}
	}
	return math.Min(1, float64(same)/float64(len(domain))*2)
}

// hourDistance is the distance between two hours on a 24h clock.
func hourDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	d %= 24
	if d > 12 {
		d = 24 - d
	}
	return d
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
