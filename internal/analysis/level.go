// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MinDBFS is reported for digital silence instead of -Inf.
const MinDBFS = -120.0

// Level summarises one chunk of samples. Peak and RMS are normalised to 0.0-1.0.
type Level struct {
	Peak   float64 `json:"peak"`
	RMS    float64 `json:"rms"`
	DBFS   float64 `json:"dbfs"`
	Silent bool    `json:"silent"`
}

// Meter measures chunk levels and applies a noise gate. A Meter is owned by
// one capture goroutine and is not safe for concurrent use.
type Meter struct {
	threshold float64
	scratch   []float64
}

// NewMeter returns a meter whose gate closes below threshold (0.0-1.0).
func NewMeter(threshold float64) *Meter {
	m := &Meter{}
	m.SetGateThreshold(threshold)
	return m
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (m *Meter) SetGateThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	m.threshold = threshold
}

// GateThreshold returns the current noise gate threshold.
func (m *Meter) GateThreshold() float64 {
	return m.threshold
}

// Measure computes the level of a chunk of signed 16-bit samples.
func (m *Meter) Measure(samples []int16) Level {
	if len(samples) == 0 {
		return Level{DBFS: MinDBFS, Silent: true}
	}

	if cap(m.scratch) < len(samples) {
		m.scratch = make([]float64, len(samples))
	}
	x := m.scratch[:len(samples)]
	for i, s := range samples {
		x[i] = float64(s) / 32768.0
	}

	peak := math.Max(floats.Max(x), -floats.Min(x))
	rms := floats.Norm(x, 2) / math.Sqrt(float64(len(x)))

	dbfs := MinDBFS
	if rms > 0 {
		dbfs = math.Max(20*math.Log10(rms), MinDBFS)
	}

	return Level{
		Peak:   peak,
		RMS:    rms,
		DBFS:   dbfs,
		Silent: peak < m.threshold,
	}
}
