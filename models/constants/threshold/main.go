package threshold

import (
	"math"

	"github.com/captainzonks/GeneGnome/models/constants"
)

const (
	R08      constants.QualityThreshold = "R08"
	R09      constants.QualityThreshold = "R09"
	NoFilter constants.QualityThreshold = "NoFilter"
)

// Default matches the reference pipeline's R² ≥ 0.9 behaviour.
const Default = R09

func IsKnown(text string) bool {
	switch constants.QualityThreshold(text) {
	case R08, R09, NoFilter:
		return true
	}
	return false
}

func CastToQualityThreshold(text string) constants.QualityThreshold {
	if IsKnown(text) {
		return constants.QualityThreshold(text)
	}
	return Default
}

// Value returns the numeric cutoff, or NaN for NoFilter.
func Value(t constants.QualityThreshold) float64 {
	switch t {
	case R08:
		return 0.8
	case R09:
		return 0.9
	}
	return math.NaN()
}

// Passes reports whether an imputation quality clears the threshold.
// A NaN quality (directly-genotyped data) always passes.
func Passes(t constants.QualityThreshold, r2 float64) bool {
	cutoff := Value(t)
	if math.IsNaN(cutoff) || math.IsNaN(r2) {
		return true
	}
	return r2 >= cutoff
}
