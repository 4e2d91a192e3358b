// Package clustering partitions feature vectors with k-means and picks the
// cluster count by a blend of silhouette and balance scores.
package clustering

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/xaenox/trajectory-bot/internal/models"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInsufficientData  = errors.New("not enough feature vectors to cluster")
	ErrDimensionMismatch = errors.New("feature vectors differ in length")
	ErrInvalidConfig     = errors.New("invalid clustering config")
)

type Config struct {
	KMin          int
	KMax          int
	Restarts      int
	MaxIterations int
	Seed          int64

	// Selection policy. The weights decide between cohesion and size
	// spread and should be tuned per dataset.
	SilhouetteWeight float64
	BalanceWeight    float64
	SingletonPenalty float64
}

func DefaultConfig() Config {
	return Config{
		KMin:             2,
		KMax:             7,
		Restarts:         10,
		MaxIterations:    300,
		Seed:             42,
		SilhouetteWeight: 0.6,
		BalanceWeight:    0.4,
		SingletonPenalty: 0.1,
	}
}

func (c Config) validate() error {
	switch {
	case c.KMin < 2:
		return fmt.Errorf("%w: k_min must be at least 2, got %d", ErrInvalidConfig, c.KMin)
	case c.KMax < c.KMin:
		return fmt.Errorf("%w: k_max %d below k_min %d", ErrInvalidConfig, c.KMax, c.KMin)
	case c.Restarts < 1:
		return fmt.Errorf("%w: restarts must be positive", ErrInvalidConfig)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max_iterations must be positive", ErrInvalidConfig)
	}
	return nil
}

// Result is the selected partition. Labels align with the input rows.
type Result struct {
	K          int
	Labels     []int
	Centroids  [][]float64 // in the original feature units
	Silhouette float64
	Balance    float64
	Combined   float64
	Candidates []models.CandidateScore
}

type Engine struct {
	cfg    Config
	logger *zap.Logger
}

func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

type candidate struct {
	score  models.CandidateScore
	labels []int
}

// Cluster standardizes data, evaluates every candidate k and returns the
// best scoring partition.
func (e *Engine) Cluster(data [][]float64) (*Result, error) {
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}
	if len(data) < e.cfg.KMin {
		return nil, fmt.Errorf("%w: have %d, need at least %d", ErrInsufficientData, len(data), e.cfg.KMin)
	}

	raw, err := toDense(data)
	if err != nil {
		return nil, err
	}
	x := Standardize(raw)
	n := len(data)

	var candidates []candidate
	for k := e.cfg.KMin; k <= e.cfg.KMax && k <= n; k++ {
		best := e.bestOfRestarts(x, k)
		labels := canonicalize(best.labels)
		sil := Silhouette(x, labels, k)
		bal := Balance(labels, k, e.cfg.SingletonPenalty)
		score := models.CandidateScore{
			K:          k,
			Silhouette: sil,
			Balance:    bal,
			Combined:   e.cfg.SilhouetteWeight*sil + e.cfg.BalanceWeight*bal,
			Inertia:    best.inertia,
		}
		candidates = append(candidates, candidate{score: score, labels: labels})

		e.logger.Debug("Evaluated cluster count",
			zap.Int("k", k),
			zap.Float64("silhouette", sil),
			zap.Float64("balance", bal),
			zap.Float64("combined", score.Combined))
	}

	scores := make([]models.CandidateScore, len(candidates))
	for i, c := range candidates {
		scores[i] = c.score
	}
	chosen := candidates[Select(scores, e.cfg.SilhouetteWeight, e.cfg.BalanceWeight)]

	result := &Result{
		K:          chosen.score.K,
		Labels:     chosen.labels,
		Centroids:  centroids(raw, chosen.labels, chosen.score.K),
		Silhouette: chosen.score.Silhouette,
		Balance:    chosen.score.Balance,
		Combined:   chosen.score.Combined,
		Candidates: scores,
	}

	e.logger.Info("Selected cluster count",
		zap.Int("k", result.K),
		zap.Int("vectors", n),
		zap.Float64("silhouette", result.Silhouette),
		zap.Float64("combined", result.Combined))

	return result, nil
}

// bestOfRestarts keeps the lowest-inertia run. Every (k, restart) pair has
// its own seed so candidates never share random state.
func (e *Engine) bestOfRestarts(x *mat.Dense, k int) kmeansRun {
	var best kmeansRun
	for r := 0; r < e.cfg.Restarts; r++ {
		rng := rand.New(rand.NewSource(e.cfg.Seed + int64(k)*1000 + int64(r)))
		run := kmeans(x, k, e.cfg.MaxIterations, rng)
		if r == 0 || run.inertia < best.inertia {
			best = run
		}
	}
	return best
}

// Select returns the index of the candidate with the highest weighted score.
// Ties go to the earlier (smaller k) candidate.
func Select(candidates []models.CandidateScore, silhouetteWeight, balanceWeight float64) int {
	best, bestScore := 0, 0.0
	for i, c := range candidates {
		score := silhouetteWeight*c.Silhouette + balanceWeight*c.Balance
		if i == 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// WeightChoice is the cluster count one weighting would select
type WeightChoice struct {
	SilhouetteWeight float64 `json:"silhouette_weight"`
	BalanceWeight    float64 `json:"balance_weight"`
	K                int     `json:"k"`
}

// Sensitivity re-runs selection over already scored candidates under
// alternative weightings.
func Sensitivity(candidates []models.CandidateScore, weights [][2]float64) []WeightChoice {
	if len(candidates) == 0 {
		return nil
	}
	out := make([]WeightChoice, 0, len(weights))
	for _, w := range weights {
		out = append(out, WeightChoice{
			SilhouetteWeight: w[0],
			BalanceWeight:    w[1],
			K:                candidates[Select(candidates, w[0], w[1])].K,
		})
	}
	return out
}

func toDense(data [][]float64) (*mat.Dense, error) {
	cols := len(data[0])
	if cols == 0 {
		return nil, fmt.Errorf("%w: empty vectors", ErrDimensionMismatch)
	}
	flat := make([]float64, 0, len(data)*cols)
	for i, row := range data {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(len(data), cols, flat), nil
}

// centroids averages the unstandardized rows of each cluster.
func centroids(raw *mat.Dense, labels []int, k int) [][]float64 {
	_, cols := raw.Dims()
	out := make([][]float64, k)
	counts := make([]int, k)
	for c := range out {
		out[c] = make([]float64, cols)
	}
	for i, label := range labels {
		floats.Add(out[label], raw.RawRowView(i))
		counts[label]++
	}
	for c := range out {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), out[c])
		}
	}
	return out
}
