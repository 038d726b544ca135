package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lazypower/tabpulse/internal/model"
)

func TestEstimateMemory(t *testing.T) {
	cases := map[string]struct {
		d    model.Descriptor
		want float64
	}{
		"plain":         {model.Descriptor{URL: "https://example.com"}, 50},
		"heavy":         {model.Descriptor{URL: "https://www.youtube.com/watch?v=1"}, 200},
		"medium":        {model.Descriptor{URL: "https://reddit.com/r/golang"}, 130},
		"dev":           {model.Descriptor{URL: "https://github.com/golang/go"}, 110},
		"active pinned": {model.Descriptor{URL: "https://twitch.tv/x", Active: true, Pinned: true}, 250},
		"lists stack":   {model.Descriptor{URL: "https://github.com/search?q=youtube.com"}, 260},
		"one per list":  {model.Descriptor{URL: "https://youtube.com/?ref=netflix.com"}, 200},
		"case folded":   {model.Descriptor{URL: "https://GitLab.COM/x"}, 110},
		"empty":         {model.Descriptor{}, 50},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, EstimateMemory(tc.d))
		})
	}
}

func TestMeasure(t *testing.T) {
	d := model.Descriptor{URL: "https://youtube.com", Active: true}

	assert.Equal(t, 123.46, Measure(d, 123.456, true))
	assert.Equal(t, 0.0, Measure(d, 0, true), "a zero reading is still a reading")
	assert.Equal(t, 230.0, Measure(d, 999, false))
	assert.Equal(t, 230.0, Measure(d, -1, true), "negative readings fall back to the estimate")
}
