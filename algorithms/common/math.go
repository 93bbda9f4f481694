package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Tiny is the smallest positive normal float64. Norms below it are treated as zero.
const Tiny = 2.2250738585072014e-308

// Median returns the middle value, averaging the two middle values for even lengths.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// MaxAbs returns the largest absolute value in data
func MaxAbs(data []float64) float64 {
	peak := 0.0
	for _, v := range data {
		peak = math.Max(peak, math.Abs(v))
	}
	return peak
}

// NormalizeMax divides data in place by its largest absolute value.
// Vectors whose peak is below Tiny are left untouched.
func NormalizeMax(data []float64) {
	peak := MaxAbs(data)
	if peak < Tiny {
		return
	}
	floats.Scale(1.0/peak, data)
}

// NormalizeL2 divides data in place by its Euclidean norm.
// Vectors whose norm is below Tiny are left untouched.
func NormalizeL2(data []float64) {
	norm := floats.Norm(data, 2)
	if norm < Tiny {
		return
	}
	floats.Scale(1.0/norm, data)
}

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, stop)
}

// Histogram counts values into the bins delimited by edges. Each bin is
// half-open [edges[i], edges[i+1]) except the last, which includes its right
// edge. Values outside the edges are ignored.
func Histogram(values, edges []float64) []int {
	if len(edges) < 2 {
		return []int{}
	}

	counts := make([]int, len(edges)-1)
	last := len(counts) - 1
	for _, v := range values {
		if v < edges[0] || v > edges[len(edges)-1] || math.IsNaN(v) {
			continue
		}
		// first edge strictly greater than v
		idx := sort.SearchFloat64s(edges, math.Nextafter(v, math.Inf(1))) - 1
		if idx > last {
			idx = last
		}
		counts[idx]++
	}
	return counts
}

// ArgMax returns the index of the first maximum, or -1 for empty input.
func ArgMax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	best := 0
	for i, v := range data[1:] {
		if v > data[best] {
			best = i + 1
		}
	}
	return best
}

// Mod returns x modulo m with the sign of m.
func Mod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r != 0 && (r < 0) != (m < 0) {
		r += m
	}
	return r
}
