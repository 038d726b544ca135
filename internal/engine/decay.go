package engine

import "math"

// Recency decay:
//   - exponential in hours since last access: exp(-rate * hours)
//   - default rate 0.115/h gives a half-life of about 6 hours
//   - future timestamps count as "just now"
//   - computed on every prediction, never persisted

// RecencyDecay returns exp(-rate*hours), with negative hours clamped to 0.
func RecencyDecay(hours, rate float64) float64 {
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-rate * hours)
}

// HalfLife returns the number of hours after which RecencyDecay halves.
func HalfLife(rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return math.Ln2 / rate
}
