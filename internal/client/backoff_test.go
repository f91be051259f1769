package client

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/ackwire/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 250 * time.Millisecond},
		{attempt: 1, want: 250 * time.Millisecond},
		{attempt: 2, want: 500 * time.Millisecond},
		{attempt: 3, want: time.Second},
		{attempt: 6, want: 5 * time.Second},
	}
	for _, tc := range tests {
		if got := NextBackoffDelay(cfg, tc.attempt, nil); got != tc.want {
			t.Fatalf("attempt%d got=%v want=%v", tc.attempt, got, tc.want)
		}
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	for attempt := 2; attempt < 8; attempt++ {
		base := NextBackoffDelay(BackoffConfig{InitialDelay: cfg.InitialDelay, Multiplier: cfg.Multiplier, MaxDelay: cfg.MaxDelay}, attempt, nil)
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < base/2 || got >= base*3/2 {
			t.Fatalf("attempt%d jitter out of range: got=%v base=%v", attempt, got, base)
		}
	}
}

func TestNextBackoffDelayDegenerate(t *testing.T) {
	testlog.Start(t)
	if got := NextBackoffDelay(BackoffConfig{}, 4, nil); got != 0 {
		t.Fatalf("zero config got=%v", got)
	}
	flat := BackoffConfig{InitialDelay: time.Second, Multiplier: 0.5}
	if got := NextBackoffDelay(flat, 4, nil); got != time.Second {
		t.Fatalf("multiplier below one got=%v want=1s", got)
	}
}
