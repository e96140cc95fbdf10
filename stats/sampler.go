package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/dennis-hamester/aldrin/store"
)

// Sampler periodically persists a Snapshot to a store.Store — an
// opt-in telemetry path entirely separate from, and never consulted by,
// broker state recovery (there is none).
//
// retain bounds how much history accumulates in the backend: every tick
// that saves a new snapshot also prunes the sink down to the retain most
// recent entries, so a long-running broker with a pebble or redis sink
// never grows that store without bound. retain <= 0 disables pruning.
type Sampler struct {
	sample   SampleFunc
	sink     store.Store[Snapshot]
	interval time.Duration
	retain   int
}

// SampleFunc produces one Snapshot for the given tick time. The broker's
// Handle provides one that merges its Counters with registry gauges.
type SampleFunc func(now time.Time) Snapshot

func NewSampler(sample SampleFunc, sink store.Store[Snapshot], interval time.Duration, retain int) *Sampler {
	return &Sampler{sample: sample, sink: sink, interval: interval, retain: retain}
}

// Run blocks, sampling, saving and pruning on every tick, until ctx is
// canceled. The key is the snapshot's UnixNano timestamp: each tick gets
// its own entry rather than overwriting a single "latest" key, so a store
// backed by pebble/redis keeps a rolling history for later inspection.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			snap := s.sample(now)
			key := fmt.Sprintf("%d", now.UnixNano())
			if err := s.sink.Save(ctx, key, snap); err != nil {
				return err
			}
			if s.retain > 0 {
				if _, err := s.sink.Prune(ctx, s.retain); err != nil {
					return err
				}
			}
		}
	}
}
