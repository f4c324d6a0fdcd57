// Package pacing bounds the request rate against a remote surface by
// pausing between item-level processing steps. The policy is a knob, not a
// correctness requirement: any implementation may return immediately.
package pacing

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"pinharvest/pkg/config"
)

// Policy is consulted between successive item-level steps
type Policy interface {
	// Pause blocks for the policy's delay or until ctx is done, in which
	// case it returns the context's error
	Pause(ctx context.Context) error
}

// FixedDelay pauses for the same duration every time
type FixedDelay struct {
	Delay time.Duration
}

// NewFixedDelay creates a fixed-delay pacing policy
func NewFixedDelay(d time.Duration) *FixedDelay {
	return &FixedDelay{Delay: d}
}

func (p *FixedDelay) Pause(ctx context.Context) error {
	return sleep(ctx, p.Delay)
}

// JitteredDelay pauses for a random duration within [Min, Max], imitating
// human pacing
type JitteredDelay struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitteredDelay creates a jittered pacing policy
func NewJitteredDelay(min, max time.Duration) *JitteredDelay {
	if max < min {
		min, max = max, min
	}
	return &JitteredDelay{
		Min: min,
		Max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *JitteredDelay) Pause(ctx context.Context) error {
	p.mu.Lock()
	d := p.Min
	if span := p.Max - p.Min; span > 0 {
		d += time.Duration(p.rng.Int63n(int64(span)))
	}
	p.mu.Unlock()

	return sleep(ctx, d)
}

// NoDelay never pauses
type NoDelay struct{}

func (NoDelay) Pause(ctx context.Context) error { return nil }

// FromConfig builds a Policy from pacing configuration
func FromConfig(cfg config.PacingConfig) Policy {
	switch strings.ToLower(cfg.Mode) {
	case "jittered":
		return NewJitteredDelay(cfg.MinDelay, cfg.MaxDelay)
	case "none":
		return NoDelay{}
	default:
		return NewFixedDelay(cfg.Delay)
	}
}

// sleep waits for d, returning early if ctx is cancelled
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
