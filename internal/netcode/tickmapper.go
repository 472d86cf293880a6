// Package netcode holds the per-client time/tick reconciliation the driver
// needs to turn a laggy client's reported shot into a server-tick-relative
// rewind lookup.
package netcode

import "math"

// Smoothing and snap tuning for the offset estimator.
const (
	blend              = 0.15
	snapThresholdTicks = 12
)

// TickMapper maintains offsetTicks = serverTick - clientTick for one
// session, smoothing small drift and snapping on large jumps (client clock
// resets, reconnects).
type TickMapper struct {
	offsetTicks float32
	initialized bool
}

// NewTickMapper creates an uninitialized mapper; EstimateServerTick returns
// 0 until the first UpdateOffset call.
func NewTickMapper() *TickMapper {
	return &TickMapper{}
}

// UpdateOffset folds one (serverTick, clientTick) observation into the
// running estimate. Non-finite input is ignored.
func (m *TickMapper) UpdateOffset(serverTick, clientTick int64) {
	observed := float32(serverTick - clientTick)
	if math.IsNaN(float64(observed)) || math.IsInf(float64(observed), 0) {
		return
	}

	if !m.initialized {
		m.offsetTicks = observed
		m.initialized = true
		return
	}

	delta := observed - m.offsetTicks
	if delta > snapThresholdTicks || delta < -snapThresholdTicks {
		m.offsetTicks = observed
		return
	}
	m.offsetTicks += delta * blend
}

// EstimatedOffsetTicks exposes the current smoothed offset, mainly for
// tests asserting the smoothing/snap behavior directly.
func (m *TickMapper) EstimatedOffsetTicks() float32 {
	return m.offsetTicks
}

// EstimateServerTick projects a client tick into server tick space. Returns
// 0 if the mapper has never observed a sample.
func (m *TickMapper) EstimateServerTick(clientTick int64) int64 {
	if !m.initialized {
		return 0
	}
	return int64(math.Round(float64(clientTick) + float64(m.offsetTicks)))
}

// Reset clears the mapper back to its uninitialized state (used on
// reconnect).
func (m *TickMapper) Reset() {
	m.offsetTicks = 0
	m.initialized = false
}

// ClampResult is the outcome of ClampRewindTick.
type ClampResult struct {
	Tick    int64
	Clamped bool
}

// ClampRewindTick clamps estimatedTick into [nowTick-maxRewindTicks,
// nowTick] and reports whether clamping changed the value.
func ClampRewindTick(nowTick, estimatedTick, maxRewindTicks int64) ClampResult {
	lo := nowTick - maxRewindTicks
	hi := nowTick
	switch {
	case estimatedTick < lo:
		return ClampResult{Tick: lo, Clamped: true}
	case estimatedTick > hi:
		return ClampResult{Tick: hi, Clamped: true}
	default:
		return ClampResult{Tick: estimatedTick, Clamped: false}
	}
}
