package services

import (
	"time"
)

const (
	// smoothingFactor is the weight kept from the previous aggregate value
	smoothingFactor = 0.8

	// updateInterval caps how often the smoothed aggregate moves
	updateInterval = 100 * time.Millisecond
)

// progressSmoother blends raw batch progress into a stable percentage.
// Raw per-file fractions jump around as files of different lengths start
// and finish; the exponential blend keeps the displayed value from
// flickering, and the interval throttle keeps subscribers from being
// hammered. Not safe for concurrent use; callers update it from a single
// event loop.
type progressSmoother struct {
	value      float64
	lastUpdate time.Time
}

// Update feeds a raw 0-100 percentage in and returns the current smoothed
// value. The blend only advances once per interval; terminal updates pass
// force to flush immediately (completion must show 100%, not 98.4%).
func (s *progressSmoother) Update(raw float64, force bool) float64 {
	now := time.Now()
	if !force && now.Sub(s.lastUpdate) < updateInterval {
		return s.value
	}
	s.lastUpdate = now

	if force {
		s.value = raw
		return s.value
	}

	s.value = smoothingFactor*s.value + (1-smoothingFactor)*raw
	return s.value
}
