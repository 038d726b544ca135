package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lazypower/tabpulse/internal/model"
)

// Reasoner turns a prediction's factors into a human-readable explanation.
type Reasoner interface {
	Explain(s model.Snapshot, f Factors) string
}

// Rule adds Clause to an explanation when Match holds.
type Rule struct {
	Clause string
	Match  func(s model.Snapshot, f Factors) bool
}

// RuleReasoner evaluates its rules in order and joins the clauses that
// fire into one sentence. Fallback is used when none fire.
type RuleReasoner struct {
	Rules    []Rule
	Fallback string
}

// DefaultReasoner returns the stock rule set.
func DefaultReasoner() *RuleReasoner {
	return &RuleReasoner{
		Rules: []Rule{
			{"currently active", func(s model.Snapshot, _ Factors) bool { return s.IsActive }},
			{"accessed very recently", func(s model.Snapshot, f Factors) bool { return !s.IsActive && f.Recency > 0.8 }},
			{"not accessed in a while", func(_ model.Snapshot, f Factors) bool { return f.Recency < 0.2 }},
			{"frequently visited domain", func(_ model.Snapshot, f Factors) bool { return f.Frequency > 0.7 }},
			{"rarely visited domain", func(_ model.Snapshot, f Factors) bool { return f.Frequency < 0.3 }},
			{"usually open at this hour", func(_ model.Snapshot, f Factors) bool { return f.TimeOfDay > 0.7 }},
			{"usually open on this weekday", func(_ model.Snapshot, f Factors) bool { return f.DayOfWeek > 0.7 }},
		},
		Fallback: "No clear usage pattern yet.",
	}
}

func (r *RuleReasoner) Explain(s model.Snapshot, f Factors) string {
	var clauses []string
	for _, rule := range r.Rules {
		if rule.Match(s, f) {
			clauses = append(clauses, rule.Clause)
		}
	}
	if len(clauses) == 0 {
		return r.Fallback
	}
	return sentence(strings.Join(clauses, ", "))
}

func sentence(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:] + "."
}
