package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/lazypower/tabpulse/internal/engine"
	"github.com/lazypower/tabpulse/internal/model"
	"github.com/lazypower/tabpulse/internal/visits"
)

const maxTitle = 48

// renderTable writes rows as a pterm table with the first row as header.
func renderTable(w io.Writer, rows [][]string) error {
	out, err := pterm.DefaultTable.
		WithHasHeader().
		WithHeaderRowSeparator("-").
		WithData(rows).
		Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func mbBytes(mb float64) uint64 {
	if mb <= 0 {
		return 0
	}
	return uint64(mb * 1024 * 1024)
}

func lastSeen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func tabFlags(s model.Snapshot) string {
	var flags []string
	if s.IsActive {
		flags = append(flags, "active")
	}
	if s.IsPinned {
		flags = append(flags, "pinned")
	}
	if s.IsDiscarded {
		flags = append(flags, "discarded")
	}
	return strings.Join(flags, ",")
}

func tabRows(tabs []model.Snapshot) [][]string {
	rows := [][]string{{"ID", "Title", "Domain", "Memory", "Health", "Last used", "Flags"}}
	for _, s := range tabs {
		health := "-"
		if s.HealthScore != nil {
			health = strconv.Itoa(*s.HealthScore)
		}
		rows = append(rows, []string{
			strconv.Itoa(s.TabID),
			truncate(s.Title, maxTitle),
			s.Domain,
			humanize.IBytes(mbBytes(s.MemoryUsageMB)),
			health,
			lastSeen(s.LastAccessed),
			tabFlags(s),
		})
	}
	return rows
}

func predictionRows(preds []model.Prediction) [][]string {
	rows := [][]string{{"ID", "Title", "Keep", "Probability", "Confidence", "Reasoning"}}
	for _, p := range preds {
		keep := "no"
		if p.SuggestKeep {
			keep = "yes"
		}
		rows = append(rows, []string{
			strconv.Itoa(p.TabID),
			truncate(p.Title, maxTitle),
			keep,
			fmt.Sprintf("%.0f%%", p.Probability*100),
			string(p.Confidence),
			p.Reasoning,
		})
	}
	return rows
}

func domainRows(groups []model.DomainGroup) [][]string {
	rows := [][]string{{"Domain", "Tabs", "Memory", "Health"}}
	for _, g := range groups {
		rows = append(rows, []string{
			g.Domain,
			strconv.Itoa(g.TabCount),
			engine.FormatMemory(g.TotalMemoryUsageMB),
			strconv.Itoa(g.HealthScore),
		})
	}
	return rows
}

func leakRows(leaks []model.Leak) [][]string {
	rows := [][]string{{"ID", "Title", "Growth", "Latest", "Detected"}}
	for _, l := range leaks {
		latest := "-"
		if n := len(l.MemoryHistory); n > 0 {
			latest = engine.FormatMemory(l.MemoryHistory[n-1])
		}
		rows = append(rows, []string{
			strconv.Itoa(l.TabID),
			truncate(l.Title, maxTitle),
			fmt.Sprintf("%+.2f MB/min", l.GrowthRate),
			latest,
			lastSeen(l.DetectedAt),
		})
	}
	return rows
}

func visitRows(counts []visits.DomainCount, n int) [][]string {
	rows := [][]string{{"Domain", "Visits"}}
	for i, c := range counts {
		if i == n {
			break
		}
		rows = append(rows, []string{c.Domain, humanize.Comma(int64(c.Visits))})
	}
	return rows
}
