package clustering

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Standardize returns a copy of data with every column scaled to zero mean
// and unit population variance. Constant columns become all zeros.
func Standardize(data *mat.Dense) *mat.Dense {
	rows, cols := data.Dims()
	out := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, data)
		mean, variance := stat.PopMeanVariance(col, nil)
		std := math.Sqrt(variance)
		for i := 0; i < rows; i++ {
			if std < 1e-12 {
				out.Set(i, j, 0)
				continue
			}
			out.Set(i, j, (col[i]-mean)/std)
		}
	}
	return out
}

// kmeansRun is the outcome of one Lloyd run
type kmeansRun struct {
	labels    []int
	centroids *mat.Dense
	inertia   float64
}

// kmeans runs Lloyd's algorithm from a k-means++ seeding.
func kmeans(data *mat.Dense, k, maxIterations int, rng *rand.Rand) kmeansRun {
	rows, _ := data.Dims()
	centroids := seedPlusPlus(data, k, rng)
	labels := make([]int, rows)
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := assign(data, centroids, labels)
		if !changed && iter > 0 {
			break
		}
		centroids = update(data, labels, k)
		repairEmpty(data, centroids, labels, k)
	}

	return kmeansRun{
		labels:    labels,
		centroids: centroids,
		inertia:   inertia(data, centroids, labels),
	}
}

// seedPlusPlus picks initial centroids with probability proportional to the
// squared distance from the nearest centroid chosen so far.
func seedPlusPlus(data *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	rows, cols := data.Dims()
	centroids := mat.NewDense(k, cols, nil)
	centroids.SetRow(0, data.RawRowView(rng.Intn(rows)))

	nearest := make([]float64, rows)
	for i := range nearest {
		nearest[i] = math.Inf(1)
	}

	for c := 1; c < k; c++ {
		last := centroids.RawRowView(c - 1)
		var total float64
		for i := 0; i < rows; i++ {
			d := sqDist(data.RawRowView(i), last)
			if d < nearest[i] {
				nearest[i] = d
			}
			total += nearest[i]
		}

		pick := rng.Intn(rows)
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range nearest {
				target -= d
				if target <= 0 {
					pick = i
					break
				}
			}
		}
		centroids.SetRow(c, data.RawRowView(pick))
	}
	return centroids
}

// assign moves every row to its nearest centroid and reports whether any label changed.
func assign(data, centroids *mat.Dense, labels []int) bool {
	rows, _ := data.Dims()
	k, _ := centroids.Dims()
	changed := false
	for i := 0; i < rows; i++ {
		row := data.RawRowView(i)
		best, bestDist := 0, math.Inf(1)
		for c := 0; c < k; c++ {
			if d := sqDist(row, centroids.RawRowView(c)); d < bestDist {
				best, bestDist = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

func update(data *mat.Dense, labels []int, k int) *mat.Dense {
	_, cols := data.Dims()
	centroids := mat.NewDense(k, cols, nil)
	counts := make([]int, k)
	for i, label := range labels {
		floats.Add(centroids.RawRowView(label), data.RawRowView(i))
		counts[label]++
	}
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), centroids.RawRowView(c))
		}
	}
	return centroids
}

// repairEmpty gives each empty cluster the row that is currently farthest
// from its own centroid.
func repairEmpty(data, centroids *mat.Dense, labels []int, k int) {
	counts := make([]int, k)
	for _, label := range labels {
		counts[label]++
	}
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, label := range labels {
			if counts[label] < 2 {
				continue
			}
			if d := sqDist(data.RawRowView(i), centroids.RawRowView(label)); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return
		}
		counts[labels[far]]--
		labels[far] = c
		counts[c] = 1
		centroids.SetRow(c, data.RawRowView(far))
	}
}

func inertia(data, centroids *mat.Dense, labels []int) float64 {
	var total float64
	for i, label := range labels {
		total += sqDist(data.RawRowView(i), centroids.RawRowView(label))
	}
	return total
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// canonicalize renumbers labels in order of first appearance so that equal
// partitions always carry equal ids.
func canonicalize(labels []int) []int {
	mapping := make(map[int]int)
	out := make([]int, len(labels))
	for i, label := range labels {
		id, ok := mapping[label]
		if !ok {
			id = len(mapping)
			mapping[label] = id
		}
		out[i] = id
	}
	return out
}
