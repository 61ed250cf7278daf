// Package analysis computes intensity statistics of slices and volumes and
// derives display windows from them.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// histogramBins is the resolution used for the entropy estimate
const histogramBins = 256

// Statistics summarises a set of intensities
type Statistics struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64

	// Entropy is the Shannon entropy in bits of a 256-bin histogram
	Entropy float64
}

// ComputeStatistics summarises values. The second return value is false
// for empty input.
func ComputeStatistics(values []float64) (Statistics, bool) {
	if len(values) == 0 {
		return Statistics{}, false
	}

	s := Statistics{
		Count: len(values),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
	if len(values) == 1 {
		s.Mean = values[0]
		return s, true
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	s.Entropy = entropy(values, s.Min, s.Max)
	return s, true
}

// entropy bins values between min and max and returns the entropy in bits
func entropy(values []float64, min, max float64) float64 {
	if max <= min {
		return 0
	}

	hist := make([]float64, histogramBins)
	binWidth := (max - min) / histogramBins
	for _, v := range values {
		idx := int((v - min) / binWidth)
		if idx >= histogramBins {
			idx = histogramBins - 1
		} else if idx < 0 {
			idx = 0
		}
		hist[idx]++
	}
	floats.Scale(1/float64(len(values)), hist)

	// stat.Entropy uses the natural logarithm
	return stat.Entropy(hist) / math.Ln2
}

// AutoWindow returns a window covering the lowPct and highPct quantiles of
// values (both in [0,1]). The width is at least 1. ok is false for empty
// input or an invalid percentile range.
func AutoWindow(values []float64, lowPct, highPct float64) (center, width float64, ok bool) {
	if len(values) == 0 || lowPct < 0 || highPct > 1 || lowPct >= highPct {
		return 0, 0, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	low := stat.Quantile(lowPct, stat.Empirical, sorted, nil)
	high := stat.Quantile(highPct, stat.Empirical, sorted, nil)

	width = math.Max(high-low, 1)
	center = low + width/2
	return center, width, true
}
