package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/model"
)

func TestNewProviders(t *testing.T) {
	cases := map[string]struct {
		cfg  config.NotifyConfig
		want string
	}{
		"default": {config.NotifyConfig{}, "log"},
		"log":     {config.NotifyConfig{Provider: "log"}, "log"},
		"command": {config.NotifyConfig{Provider: "command"}, "command:notify-send"},
		"webhook": {config.NotifyConfig{Provider: "webhook", WebhookURL: "http://x"}, "webhook"},
		"none":    {config.NotifyConfig{Provider: "none"}, "none"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			n, err := New(tc.cfg, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tc.want, n.Name())
		})
	}
}

func TestNewRejects(t *testing.T) {
	_, err := New(config.NotifyConfig{Provider: "webhook"}, zerolog.Nop())
	assert.Error(t, err, "webhook without url")

	_, err = New(config.NotifyConfig{Provider: "pigeon"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(zerolog.New(&buf))

	require.NoError(t, n.Notify(context.Background(), LeakDetected(model.Leak{
		Title:         "Feed",
		MemoryHistory: []float64{100, 140.31},
	})))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, KindLeak, entry["kind"])
	assert.Equal(t, `"Feed" is consuming 140.3 MB and growing.`, entry["message"])
}

func TestWebhook(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL)
	require.NoError(t, w.Notify(context.Background(), HighMemory("Docs", 612.34)))
	assert.Equal(t, KindHighMemory, got.Kind)
	assert.Equal(t, PriorityNormal, got.Priority)
	assert.Equal(t, `"Docs" is using 612.3 MB of memory.`, got.Message)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Notify(context.Background(), Hibernated(3, 450))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestCommand(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	require.NoError(t, NewCommand("true").Notify(context.Background(), Hibernated(1, 10)))

	err := NewCommand("false").Notify(context.Background(), Hibernated(1, 10))
	assert.Error(t, err)
}

func TestSendSwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	m := &Mock{Err: errors.New("sink down")}

	Send(context.Background(), m, TotalMemory(3072, 40), zerolog.New(&buf))
	assert.Len(t, m.Calls(), 1)
	assert.True(t, strings.Contains(buf.String(), "sink down"))

	Send(context.Background(), nil, TotalMemory(3072, 40), zerolog.Nop())
}

func TestMessages(t *testing.T) {
	total := TotalMemory(3072, 40)
	assert.Equal(t, "40 tabs are using a total of 3.0 GB total memory. Consider closing some tabs.", total.Message)

	h := Hibernated(4, 812.5)
	assert.Equal(t, PriorityLow, h.Priority)
	assert.Equal(t, "4 tabs hibernated, freeing up 812.5 MB of memory.", h.Message)

	empty := LeakDetected(model.Leak{Title: "x"})
	assert.Contains(t, empty.Message, "0.0 MB")
}
