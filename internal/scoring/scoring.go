// Package scoring maps response latency and correctness to points.
package scoring

import "math"

const (
	// MaxPoints is awarded for an instantaneous correct answer.
	MaxPoints = 1000
	// DefaultMaxSeconds is the answer window after which a correct answer earns nothing.
	DefaultMaxSeconds = 30.0
)

// Points decays linearly from MaxPoints at zero elapsed time to 0 at maxSeconds.
// A non-positive maxSeconds falls back to DefaultMaxSeconds.
func Points(elapsedSeconds, maxSeconds float64) int {
	if maxSeconds <= 0 {
		maxSeconds = DefaultMaxSeconds
	}
	if math.IsNaN(elapsedSeconds) || elapsedSeconds >= maxSeconds {
		return 0
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	p := int(math.Round(MaxPoints * (1 - elapsedSeconds/maxSeconds)))
	switch {
	case p < 0:
		return 0
	case p > MaxPoints:
		return MaxPoints
	}
	return p
}

// Award returns Points for a correct answer and 0 otherwise.
func Award(correct bool, elapsedSeconds, maxSeconds float64) int {
	if !correct {
		return 0
	}
	return Points(elapsedSeconds, maxSeconds)
}
