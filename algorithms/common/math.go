package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistics shared by the analyzers. All of them return 0 for empty
// input instead of NaN so feature values stay finite.

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// PopStdDev calculates the population (ddof=0) standard deviation
func PopStdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.PopStdDev(data, nil)
}

// CentralMoment calculates E[(x - mean)^order] over the whole slice
func CentralMoment(data []float64, order float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Moment(order, data, nil)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// MeanAbs calculates the mean absolute amplitude
func MeanAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 1) / float64(len(data))
}

// Sign mirrors the mathematical sign function, with Sign(0) == 0
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Finite replaces NaN and ±Inf with 0
func Finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0.0
	}
	return x
}

// ArgMax returns the index of the first maximum, or -1 for empty input
func ArgMax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MaxIdx(data)
}

// ArraySplit splits data into n contiguous parts whose lengths differ by at
// most one; the first len(data)%n parts get the extra element. Parts may be
// empty when len(data) < n.
func ArraySplit(data []float64, n int) [][]float64 {
	if n <= 0 {
		return nil
	}
	parts := make([][]float64, n)
	base, extra := len(data)/n, len(data)%n
	start := 0
	for i := range n {
		size := base
		if i < extra {
			size++
		}
		parts[i] = data[start : start+size]
		start += size
	}
	return parts
}
