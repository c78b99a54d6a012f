package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_WithDefaults(t *testing.T) {
	cases := map[string]struct {
		in       Options
		wantBase time.Duration
		wantMax  time.Duration
	}{
		"zero":               {Options{}, 500 * time.Millisecond, 30 * time.Second},
		"explicit":           {Options{RetryBase: time.Second, RetryMax: 10 * time.Second}, time.Second, 10 * time.Second},
		"base above default": {Options{RetryBase: time.Minute}, time.Minute, time.Minute},
		"max below base":     {Options{RetryBase: 2 * time.Second, RetryMax: time.Second}, 2 * time.Second, 30 * time.Second},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := tc.in.withDefaults()
			assert.Equal(t, tc.wantBase, got.RetryBase)
			assert.Equal(t, tc.wantMax, got.RetryMax)
		})
	}
}

func TestBackoff_NeverShrinks(t *testing.T) {
	c := &Coordinator{opts: Options{RetryBase: time.Minute}.withDefaults()}

	prev := time.Duration(0)
	for attempt := 0; attempt < 5; attempt++ {
		d := c.backoff(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.GreaterOrEqual(t, d, time.Minute)
		prev = d
	}
}
