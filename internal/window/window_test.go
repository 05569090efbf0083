package window

import (
	"testing"
	"time"
)

func TestLowerBound(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		skew time.Duration
		want int64
	}{
		{"default skew", time.Unix(1_700_000_000, 0), 0, 1_700_000_000 - 18000},
		{"explicit skew", time.Unix(1_700_000_000, 0), time.Hour, 1_700_000_000 - 3600},
		{"sub-second now truncated", time.Unix(1_700_000_000, 999_000_000), DefaultSkew, 1_700_000_000 - 18000},
		{"epoch", time.Unix(0, 0), DefaultSkew, -18000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(func() time.Time { return tt.now }, tt.skew)
			if got := c.LowerBound(); got != tt.want {
				t.Errorf("LowerBound() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLowerBound_FollowsClock(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	c := New(func() time.Time { return now }, DefaultSkew)

	first := c.LowerBound()
	now = now.Add(time.Hour)
	second := c.LowerBound()

	if second-first != 3600 {
		t.Errorf("bound moved by %d, want 3600", second-first)
	}
}

func TestNew_NilClockUsesWallTime(t *testing.T) {
	c := New(nil, DefaultSkew)
	want := time.Now().Unix() - 18000
	if got := c.LowerBound(); got < want-1 || got > want+1 {
		t.Errorf("LowerBound() = %d, want about %d", got, want)
	}
}
