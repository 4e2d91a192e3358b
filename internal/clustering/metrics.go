package clustering

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Silhouette returns the mean silhouette coefficient over all rows using
// Euclidean distance. Rows alone in their cluster score 0.
func Silhouette(data *mat.Dense, labels []int, k int) float64 {
	rows, _ := data.Dims()
	if rows == 0 || k < 2 {
		return 0
	}

	sizes := clusterSizes(labels, k)
	dist := mat.NewSymDense(rows, nil)
	for i := 0; i < rows; i++ {
		for j := i + 1; j < rows; j++ {
			dist.SetSym(i, j, floats.Distance(data.RawRowView(i), data.RawRowView(j), 2))
		}
	}

	var total float64
	sums := make([]float64, k)
	for i := 0; i < rows; i++ {
		own := labels[i]
		if sizes[own] < 2 {
			continue
		}
		for c := range sums {
			sums[c] = 0
		}
		for j := 0; j < rows; j++ {
			if j != i {
				sums[labels[j]] += dist.At(i, j)
			}
		}

		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || sizes[c] == 0 {
				continue
			}
			b = math.Min(b, sums[c]/float64(sizes[c]))
		}
		if math.IsInf(b, 1) {
			continue
		}
		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(rows)
}

// Balance is 1 - largest/n - penalty per singleton cluster. It rewards
// partitions whose sizes are spread out.
func Balance(labels []int, k int, singletonPenalty float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	largest, singletons := 0, 0
	for _, size := range clusterSizes(labels, k) {
		if size > largest {
			largest = size
		}
		if size == 1 {
			singletons++
		}
	}
	return 1 - float64(largest)/float64(len(labels)) - singletonPenalty*float64(singletons)
}

func clusterSizes(labels []int, k int) []int {
	sizes := make([]int, k)
	for _, label := range labels {
		sizes[label]++
	}
	return sizes
}
