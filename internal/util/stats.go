package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide negotiation event counter.
var Stats = &stats{}

type stats struct {
	SessionsOpened     atomic.Int64 // sessions that left Idle
	SessionsClosed     atomic.Int64 // sessions that reached Closed
	Established        atomic.Int64 // sessions whose connection reported connected
	GlareYields        atomic.Int64 // local offers discarded in favour of the remote one
	CandidatesBuffered atomic.Int64 // remote candidates parked before the remote description
	CandidatesApplied  atomic.Int64 // remote candidates accepted by the connection
	CandidatesDropped  atomic.Int64 // remote candidates rejected by the connection
	StaleSignals       atomic.Int64 // offers/answers/candidates arriving in the wrong phase
	MisroutedSignals   atomic.Int64 // signals tagged with a room other than the current one
}

func (s *stats) AddOpened()      { s.SessionsOpened.Add(1) }
func (s *stats) AddClosed()      { s.SessionsClosed.Add(1) }
func (s *stats) AddEstablished() { s.Established.Add(1) }
func (s *stats) AddGlareYield()  { s.GlareYields.Add(1) }
func (s *stats) AddBuffered()    { s.CandidatesBuffered.Add(1) }
func (s *stats) AddApplied()     { s.CandidatesApplied.Add(1) }
func (s *stats) AddDropped()     { s.CandidatesDropped.Add(1) }
func (s *stats) AddStale()       { s.StaleSignals.Add(1) }
func (s *stats) AddMisrouted()   { s.MisroutedSignals.Add(1) }

// snapshot is a point-in-time copy of the counters used by the reporter.
type snapshot struct {
	opened, closed, established, glare int64
	buffered, applied, dropped         int64
	stale, misrouted                   int64
}

func (s *stats) snapshot() snapshot {
	return snapshot{
		opened:      s.SessionsOpened.Load(),
		closed:      s.SessionsClosed.Load(),
		established: s.Established.Load(),
		glare:       s.GlareYields.Load(),
		buffered:    s.CandidatesBuffered.Load(),
		applied:     s.CandidatesApplied.Load(),
		dropped:     s.CandidatesDropped.Load(),
		stale:       s.StaleSignals.Load(),
		misrouted:   s.MisroutedSignals.Load(),
	}
}

func (a snapshot) sub(b snapshot) snapshot {
	return snapshot{
		opened:      a.opened - b.opened,
		closed:      a.closed - b.closed,
		established: a.established - b.established,
		glare:       a.glare - b.glare,
		buffered:    a.buffered - b.buffered,
		applied:     a.applied - b.applied,
		dropped:     a.dropped - b.dropped,
		stale:       a.stale - b.stale,
		misrouted:   a.misrouted - b.misrouted,
	}
}

func (a snapshot) zero() bool {
	return a == snapshot{}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs negotiation statistics
// every interval, skipping intervals in which nothing happened. It stops when
// ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev := Stats.snapshot()
		for {
			select {
			case <-ticker.C:
				cur := Stats.snapshot()
				if delta := cur.sub(prev); !delta.zero() {
					pterm.DefaultLogger.Info(formatStats(delta))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a one-line summary of a counter delta for the logger.
func formatStats(d snapshot) string {
	return fmt.Sprintf("Sessions: %2d↑ %2d↓ %2d✓ | Glare: %2d | Cand: %3d buf %3d ok %3d drop | Stale: %2d | Misrouted: %2d",
		d.opened,
		d.closed,
		d.established,
		d.glare,
		d.buffered,
		d.applied,
		d.dropped,
		d.stale,
		d.misrouted,
	)
}
