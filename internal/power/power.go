// Package power derives an estimated power draw and interval energy from
// consecutive metric snapshots. The host has no power sensor; the formula
// is a calibration policy kept behind a single function so it can be
// swapped without touching the rest of the pipeline.
package power

import (
	"time"

	"codeberg.org/mutker/powerlog/internal/sampler"
)

const (
	bytesPerMB     = 1024 * 1024
	secondsPerHour = 3600
)

// State is the minimal record persisted between invocations: when the
// previous sample was taken and where the cumulative network counters
// stood. Absent state means a cold start.
type State struct {
	Timestamp time.Time
	BytesSent uint64
	BytesRecv uint64
}

// Derived holds the values computed from the previous State and the
// current Snapshot. Discarded after being logged; only State persists.
type Derived struct {
	Watts      float64
	IntervalWh float64
	SentDelta  uint64
	RecvDelta  uint64
}

// Formula maps a snapshot to estimated wattage.
type Formula struct {
	IdleWatts         float64
	CPUWatts          float64
	NetworkWattsPerMB float64
}

// Watts estimates instantaneous draw: a baseline, a term linear in CPU
// load, and optionally a term linear in network throughput (MB/s over the
// elapsed interval, zero on a cold start).
func (f Formula) Watts(snap sampler.Snapshot, netMBPerSec float64) float64 {
	return f.IdleWatts + f.CPUWatts*(snap.CPULoad/100) + f.NetworkWattsPerMB*netMBPerSec
}

type Estimator struct {
	Formula Formula
}

// Derive computes the derived metrics for the current snapshot and
// returns the state to persist for the next invocation.
//
// Cold start (prev == nil): zero derived values, state seeded from the
// snapshot. Warm with non-positive elapsed time: zero derived values and
// the previous state unchanged, guarding against clock skew and
// sub-resolution re-invocation. Counter resets (current below previous,
// i.e. a reboot) clamp that delta to zero.
func (e Estimator) Derive(prev *State, snap sampler.Snapshot) (Derived, State) {
	next := State{
		Timestamp: snap.Timestamp,
		BytesSent: snap.BytesSent,
		BytesRecv: snap.BytesRecv,
	}

	if prev == nil {
		return Derived{}, next
	}

	elapsed := snap.Timestamp.Sub(prev.Timestamp)
	if elapsed <= 0 {
		return Derived{}, *prev
	}

	derived := Derived{
		SentDelta: counterDelta(snap.BytesSent, prev.BytesSent),
		RecvDelta: counterDelta(snap.BytesRecv, prev.BytesRecv),
	}

	totalMB := float64(derived.SentDelta+derived.RecvDelta) / bytesPerMB
	derived.Watts = e.Formula.Watts(snap, totalMB/elapsed.Seconds())
	derived.IntervalWh = derived.Watts * elapsed.Seconds() / secondsPerHour

	return derived, next
}

func counterDelta(current, previous uint64) uint64 {
	if current < previous {
		return 0
	}

	return current - previous
}
