package visits

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lazypower/tabpulse/internal/model"
)

// Entry is one line of a browser history export in JSONL form.
type Entry struct {
	URL       string          `json:"url"`
	Title     string          `json:"title,omitempty"`
	TabID     int             `json:"tabId,omitempty"`
	VisitTime json.RawMessage `json:"visitTime"` // epoch ms or RFC 3339
}

// Visit is a parsed history entry.
type Visit struct {
	TabID  int
	URL    string
	Domain string
	At     time.Time
}

var errNoTime = errors.New("missing visit time")

// ParseFile reads a JSONL history export. Malformed lines are skipped.
func ParseFile(path string, loc *time.Location) ([]Visit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()
	return Parse(f, loc)
}

// Parse reads JSONL visits from r, bucketing times in loc. Malformed lines,
// blank URLs and browser-internal pages are skipped.
func Parse(r io.Reader, loc *time.Location) ([]Visit, error) {
	if loc == nil {
		loc = time.Local
	}

	var visits []Visit
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := parseLine([]byte(line), loc)
		if err != nil {
			continue // skip malformed lines
		}
		if v != nil {
			visits = append(visits, *v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return visits, nil
}

// ParseLines parses history content from a string.
func ParseLines(content string, loc *time.Location) ([]Visit, error) {
	return Parse(strings.NewReader(content), loc)
}

func parseLine(line []byte, loc *time.Location) (*Visit, error) {
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, err
	}
	if strings.TrimSpace(e.URL) == "" ||
		strings.HasPrefix(e.URL, "chrome://") || strings.HasPrefix(e.URL, "chrome-extension://") {
		return nil, nil
	}

	at, err := parseTime(e.VisitTime)
	if err != nil {
		return nil, err
	}
	return &Visit{
		TabID:  e.TabID,
		URL:    e.URL,
		Domain: model.DomainOf(e.URL),
		At:     at.In(loc),
	}, nil
}

func parseTime(raw json.RawMessage) (time.Time, error) {
	t, err := model.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		return time.Time{}, errNoTime
	}
	return t, nil
}
