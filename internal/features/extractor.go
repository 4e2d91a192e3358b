// Package features reduces a trajectory to a fixed-order shape descriptor.
// Names is the canonical feature order shared by clustering, naming and any
// downstream consumer.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/xaenox/trajectory-bot/internal/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrEmptyTrajectory = errors.New("trajectory has no points")

// Indices into Vector.Values.
const (
	AvgIntensity = iota
	MinIntensity
	MaxIntensity
	IntensityVariance
	PeakCount
	ValleyCount
	PeakDensity
	ValleyDensity
	DriftMagnitude
	DriftX
	DriftY
	PathStraightness
	FinalX
	FinalY
	MessageCount

	Dimensions
)

// Names lists the features in vector order.
var Names = [Dimensions]string{
	"avg_intensity",
	"min_intensity",
	"max_intensity",
	"intensity_variance",
	"peak_count",
	"valley_count",
	"peak_density",
	"valley_density",
	"drift_magnitude",
	"drift_x",
	"drift_y",
	"path_straightness",
	"final_x",
	"final_y",
	"message_count",
}

const (
	peakThreshold   = 0.7
	valleyThreshold = 0.3
)

// Vector is the feature vector of one conversation together with the
// categorical values the namer needs.
type Vector struct {
	ConversationID string    `json:"conversation_id"`
	Values         []float64 `json:"values"`
	Pattern        string    `json:"pattern,omitempty"`
	Purpose        string    `json:"purpose,omitempty"`
}

// Get returns the value at index i.
func (v Vector) Get(i int) float64 {
	return v.Values[i]
}

// Map returns the values keyed by feature name.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, Dimensions)
	for i, name := range Names {
		out[name] = v.Values[i]
	}
	return out
}

// Extractor computes feature vectors. It holds no state.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract builds the feature vector for one trajectory. The classification may be nil.
func (e *Extractor) Extract(id string, points []models.TrajectoryPoint, class *models.Classification) (Vector, error) {
	if len(points) == 0 {
		return Vector{}, fmt.Errorf("extract %s: %w", id, ErrEmptyTrajectory)
	}

	n := len(points)
	z := make([]float64, n)
	for i, p := range points {
		z[i] = p.Z
	}

	values := make([]float64, Dimensions)

	avg, lo, hi, variance := summarize(z)
	values[AvgIntensity] = avg
	values[MinIntensity] = lo
	values[MaxIntensity] = hi
	values[IntensityVariance] = variance

	peaks, valleys := extrema(z)
	values[PeakCount] = float64(peaks)
	values[ValleyCount] = float64(valleys)
	values[PeakDensity] = float64(peaks) / float64(n)
	values[ValleyDensity] = float64(valleys) / float64(n)

	start, end := points[0], points[n-1]
	dx, dy := end.X-start.X, end.Y-start.Y
	drift := math.Hypot(dx, dy)
	values[DriftMagnitude] = drift
	values[DriftX] = dx
	values[DriftY] = dy
	values[PathStraightness] = straightness(drift, arcLength(points))

	values[FinalX] = end.X
	values[FinalY] = end.Y
	values[MessageCount] = float64(n)

	v := Vector{ConversationID: id, Values: values}
	if class != nil {
		v.Pattern = class.InteractionPattern.Category
		v.Purpose = class.ConversationPurpose.Category
	}
	return v, nil
}

// summarize returns mean, min, max and population variance.
func summarize(z []float64) (float64, float64, float64, float64) {
	avg, variance := stat.PopMeanVariance(z, nil)
	return avg, floats.Min(z), floats.Max(z), variance
}

// extrema counts strict interior maxima above peakThreshold and strict
// interior minima below valleyThreshold.
func extrema(z []float64) (int, int) {
	var peaks, valleys int
	for i := 1; i < len(z)-1; i++ {
		prev, cur, next := z[i-1], z[i], z[i+1]
		if cur > prev && cur > next && cur > peakThreshold {
			peaks++
		}
		if cur < prev && cur < next && cur < valleyThreshold {
			valleys++
		}
	}
	return peaks, valleys
}

// arcLength sums the 3-D step distances between consecutive points.
func arcLength(points []models.TrajectoryPoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total
}

// A trajectory that never moves is treated as perfectly straight.
func straightness(drift, arc float64) float64 {
	if arc <= 0 {
		return 1
	}
	return math.Min(1, drift/arc)
}
