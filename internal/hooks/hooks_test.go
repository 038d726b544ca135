package hooks

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lazypower/tabpulse/internal/engine"
	"github.com/lazypower/tabpulse/internal/model"
)

type request struct {
	method string
	path   string
	body   string
}

// fakeDaemon records every non-health request and answers plan requests
// with plan.
type fakeDaemon struct {
	mu       sync.Mutex
	requests []request
	plan     string
	status   int
}

func (f *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/health" {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, request{r.Method, r.URL.Path, string(body)})
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		w.Write([]byte(`{"error":"boom"}`))
		return
	}
	if r.URL.Path == "/api/actions/plan" {
		w.Write([]byte(f.plan))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

func (f *fakeDaemon) seen() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

func startDaemon(t *testing.T) (*fakeDaemon, *Client) {
	t.Helper()
	d := &fakeDaemon{}
	ts := httptest.NewServer(d)
	t.Cleanup(ts.Close)
	return d, NewClientURL(ts.URL)
}

func TestDispatchTabEvents(t *testing.T) {
	for _, event := range []string{EventCreated, EventUpdated, EventActivated, EventRemoved} {
		t.Run(event, func(t *testing.T) {
			d, client := startDaemon(t)

			err := Dispatch(client, event, strings.NewReader(`{"id":7,"url":"https://github.com"}`), io.Discard)
			if err != nil {
				t.Fatalf("Dispatch: %v", err)
			}

			reqs := d.seen()
			if len(reqs) != 1 {
				t.Fatalf("requests = %d, want 1", len(reqs))
			}
			if reqs[0].method != "POST" || reqs[0].path != "/api/events/"+event {
				t.Errorf("request = %s %s, want POST /api/events/%s", reqs[0].method, reqs[0].path, event)
			}
			var got model.Descriptor
			if err := json.Unmarshal([]byte(reqs[0].body), &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if got.ID != 7 {
				t.Errorf("id = %d, want 7", got.ID)
			}
		})
	}
}

func TestDispatchSkipsDevtools(t *testing.T) {
	d, client := startDaemon(t)

	err := Dispatch(client, EventCreated, strings.NewReader(`{"id":3,"url":"devtools://devtools/bundled/inspector.html"}`), io.Discard)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n := len(d.seen()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestDispatchTabMissingID(t *testing.T) {
	d, client := startDaemon(t)

	err := Dispatch(client, EventRemoved, strings.NewReader(`{"url":"https://x.test"}`), io.Discard)
	if err == nil {
		t.Fatal("expected error for missing tab id")
	}
	if n := len(d.seen()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestDispatchSync(t *testing.T) {
	d, client := startDaemon(t)

	payload := `[
		{"id":1,"url":"https://github.com"},
		{"id":2,"url":"devtools://devtools"},
		{"id":0,"url":"https://nope.test"},
		{"id":3,"url":"https://youtube.com"}
	]`
	if err := Dispatch(client, EventSync, strings.NewReader(payload), io.Discard); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	reqs := d.seen()
	if len(reqs) != 1 || reqs[0].method != "PUT" || reqs[0].path != "/api/tabs" {
		t.Fatalf("requests = %+v, want one PUT /api/tabs", reqs)
	}
	var tabs []model.Descriptor
	if err := json.Unmarshal([]byte(reqs[0].body), &tabs); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(tabs) != 2 || tabs[0].ID != 1 || tabs[1].ID != 3 {
		t.Errorf("synced tabs = %+v, want ids 1 and 3", tabs)
	}
}

func TestDispatchPlanWritesPlan(t *testing.T) {
	d, client := startDaemon(t)
	d.plan = `{"action":"hibernate","tabIds":[4,5],"freedMB":320}`

	var out bytes.Buffer
	if err := Dispatch(client, EventPlan, strings.NewReader(`{"id":"hibernate-heavy"}`), &out); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var plan engine.ActionPlan
	if err := json.Unmarshal(out.Bytes(), &plan); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if plan.Action != model.ActionHibernate || len(plan.TabIDs) != 2 || plan.FreedMB != 320 {
		t.Errorf("plan = %+v", plan)
	}
	if reqs := d.seen(); reqs[0].body != `{"id":"hibernate-heavy"}` {
		t.Errorf("forwarded body = %q", reqs[0].body)
	}
}

func TestDispatchPlanEmptyOnServerError(t *testing.T) {
	d, client := startDaemon(t)
	d.status = http.StatusBadRequest

	var out bytes.Buffer
	err := Dispatch(client, EventPlan, strings.NewReader(`{"id":"nope"}`), &out)
	if err == nil {
		t.Fatal("expected error from 400 response")
	}
	if strings.TrimSpace(out.String()) != `{"action":"","tabIds":[],"freedMB":0}` {
		t.Errorf("output = %q, want empty plan", out.String())
	}
}

func TestDispatchServerDown(t *testing.T) {
	client := NewClientURL("http://127.0.0.1:1")

	if err := Dispatch(client, EventActivated, strings.NewReader(`{"id":1}`), io.Discard); err != nil {
		t.Errorf("tab event with daemon down: %v, want nil", err)
	}

	var out bytes.Buffer
	if err := Dispatch(client, EventPlan, strings.NewReader(`{"id":"x"}`), &out); err != nil {
		t.Fatalf("plan with daemon down: %v", err)
	}
	if !strings.Contains(out.String(), `"tabIds":[]`) {
		t.Errorf("output = %q, want empty plan", out.String())
	}
}

func TestDispatchCompleted(t *testing.T) {
	d, client := startDaemon(t)

	body := `{"action":"hibernate","count":2,"freedMB":150}`
	if err := Dispatch(client, EventCompleted, strings.NewReader(body), io.Discard); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	reqs := d.seen()
	if len(reqs) != 1 || reqs[0].path != "/api/actions/completed" || reqs[0].body != body {
		t.Errorf("requests = %+v", reqs)
	}

	if err := Dispatch(client, EventCompleted, strings.NewReader(`{oops`), io.Discard); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestDispatchUnknownEvent(t *testing.T) {
	_, client := startDaemon(t)

	err := Dispatch(client, "zoom", strings.NewReader(`{}`), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown hook event") {
		t.Errorf("err = %v, want unknown hook event", err)
	}
}

func TestClientHealthyFalseWhenDown(t *testing.T) {
	client := NewClientURL("http://127.0.0.1:1")
	if client.Healthy() {
		t.Error("expected Healthy() = false for unreachable server")
	}
}

func TestNewClientEnv(t *testing.T) {
	t.Setenv("TABPULSE_URL", "http://127.0.0.1:9999")
	if c := NewClient(); c.serverURL != "http://127.0.0.1:9999" {
		t.Errorf("serverURL = %q", c.serverURL)
	}

	t.Setenv("TABPULSE_URL", "")
	if c := NewClient(); c.serverURL != defaultServerURL {
		t.Errorf("serverURL = %q, want %q", c.serverURL, defaultServerURL)
	}
}

func TestClientErrorIncludesStatus(t *testing.T) {
	d, client := startDaemon(t)
	d.status = http.StatusInternalServerError

	data, err := client.Post("/api/events/created", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("err = %v, want status 500", err)
	}
	if !strings.Contains(string(data), "boom") {
		t.Errorf("body = %q", data)
	}
}

func TestShouldSkipTab(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://github.com", false},
		{"chrome://settings", false},
		{"devtools://devtools/bundled/inspector.html", true},
		{"view-source:https://example.com", true},
	}
	for _, tt := range tests {
		if got := ShouldSkipTab(model.Descriptor{URL: tt.url}); got != tt.want {
			t.Errorf("ShouldSkipTab(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
