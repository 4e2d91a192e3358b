// Package pipeline runs conversations through simulation, feature
// extraction, clustering and naming.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"github.com/xaenox/trajectory-bot/internal/classifier"
	"github.com/xaenox/trajectory-bot/internal/clustering"
	"github.com/xaenox/trajectory-bot/internal/features"
	"github.com/xaenox/trajectory-bot/internal/models"
	"github.com/xaenox/trajectory-bot/internal/naming"
	"github.com/xaenox/trajectory-bot/internal/trajectory"
	"go.uber.org/zap"
)

var ErrEmptyInput = errors.New("no conversations to process")

// sensitivityWeights are the alternative silhouette/balance weightings
// reported alongside every run.
var sensitivityWeights = [][2]float64{{0.5, 0.5}, {0.6, 0.4}, {0.7, 0.3}}

// Result holds everything one run produced. Trajectories and Features stay
// valid when clustering fails.
type Result struct {
	Trajectories map[string][]models.TrajectoryPoint
	Features     []features.Vector // input order, skipped conversations removed
	Annotated    []models.Conversation
	Clusters     []models.Cluster
	Assignments  map[string]int
	Candidates   []models.CandidateScore
	Sensitivity  []clustering.WeightChoice
	K            int
	Score        float64
	Skipped      []models.Skip
	Issues       []models.Issue
}

// ToRun converts the result into its persisted form.
func (r *Result) ToRun() *models.ClusterRun {
	return &models.ClusterRun{
		K:            r.K,
		Score:        r.Score,
		FeatureNames: append([]string(nil), features.Names[:]...),
		Clusters:     r.Clusters,
		Assignments:  r.Assignments,
		Candidates:   r.Candidates,
		Skipped:      r.Skipped,
	}
}

// Cluster returns the cluster with the given id.
func (r *Result) Cluster(id int) (models.Cluster, bool) {
	for _, c := range r.Clusters {
		if c.ID == id {
			return c, true
		}
	}
	return models.Cluster{}, false
}

type Pipeline struct {
	simulator *trajectory.Simulator
	extractor *features.Extractor
	engine    *clustering.Engine
	namer     *naming.Namer
	annotator *classifier.Annotator
	workers   int
	logger    *zap.Logger
}

// New wires the stages together. annotator may be nil, in which case
// conversations must arrive fully classified and scored.
func New(
	simulator *trajectory.Simulator,
	extractor *features.Extractor,
	engine *clustering.Engine,
	namer *naming.Namer,
	annotator *classifier.Annotator,
	workers int,
	logger *zap.Logger,
) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		simulator: simulator,
		extractor: extractor,
		engine:    engine,
		namer:     namer,
		annotator: annotator,
		workers:   workers,
		logger:    logger,
	}
}

type outcome struct {
	points []models.TrajectoryPoint
	vector features.Vector
	err    error
}

// Run processes a batch. Per-conversation failures are recorded in
// Result.Skipped; a clustering failure returns the partial result together
// with the error.
func (p *Pipeline) Run(ctx context.Context, convs []models.Conversation) (*Result, error) {
	if len(convs) == 0 {
		return nil, ErrEmptyInput
	}

	result := &Result{
		Trajectories: make(map[string][]models.TrajectoryPoint),
		Assignments:  make(map[string]int),
	}

	batch := make([]*models.Conversation, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		if p.annotator != nil && classifier.NeedsAnnotation(conv) {
			annotated, changed, err := p.annotator.Annotate(ctx, conv)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				p.skip(result, conv.ID, fmt.Sprintf("annotation failed: %v", err))
				continue
			}
			if changed {
				result.Annotated = append(result.Annotated, *annotated)
			}
			conv = annotated
		}
		result.Issues = append(result.Issues, models.CheckQuality(conv)...)
		batch = append(batch, conv)
	}

	outcomes := p.process(batch)
	for i, conv := range batch {
		out := outcomes[i]
		if out.err != nil {
			p.skip(result, conv.ID, out.err.Error())
			continue
		}
		result.Trajectories[conv.ID] = out.points
		result.Features = append(result.Features, out.vector)
	}

	if len(result.Issues) > 0 {
		p.logger.Warn("Input has data-quality issues",
			zap.Int("issues", len(result.Issues)),
			zap.String("first", result.Issues[0].String()))
	}

	if err := p.cluster(result); err != nil {
		return result, err
	}

	p.logger.Info("Pipeline finished",
		zap.Int("conversations", len(convs)),
		zap.Int("clustered", len(result.Features)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("k", result.K),
		zap.Float64("score", result.Score))

	return result, nil
}

// process simulates and extracts every conversation on the worker pool.
// outcomes[i] always belongs to batch[i].
func (p *Pipeline) process(batch []*models.Conversation) []outcome {
	outcomes := make([]outcome, len(batch))
	wp := pool.New().WithMaxGoroutines(p.workers)
	for i, conv := range batch {
		i, conv := i, conv
		wp.Go(func() {
			outcomes[i] = p.analyze(conv)
		})
	}
	wp.Wait()
	return outcomes
}

func (p *Pipeline) analyze(conv *models.Conversation) outcome {
	points, err := p.simulator.Simulate(conv)
	if err != nil {
		return outcome{err: err}
	}
	vector, err := p.extractor.Extract(conv.ID, points, conv.Classification)
	if err != nil {
		return outcome{err: err}
	}
	return outcome{points: points, vector: vector}
}

// Trace computes the trajectory and features of a single conversation,
// annotating it first when an annotator is configured.
func (p *Pipeline) Trace(ctx context.Context, conv *models.Conversation) ([]models.TrajectoryPoint, features.Vector, error) {
	if p.annotator != nil && classifier.NeedsAnnotation(conv) {
		annotated, _, err := p.annotator.Annotate(ctx, conv)
		if err != nil {
			return nil, features.Vector{}, err
		}
		conv = annotated
	}
	out := p.analyze(conv)
	return out.points, out.vector, out.err
}

func (p *Pipeline) cluster(result *Result) error {
	data := make([][]float64, len(result.Features))
	for i, v := range result.Features {
		data[i] = v.Values
	}

	clusters, err := p.engine.Cluster(data)
	if err != nil {
		p.logger.Error("Clustering failed",
			zap.Error(err),
			zap.Int("vectors", len(data)))
		return fmt.Errorf("cluster features: %w", err)
	}

	cfg := p.engine.Config()
	result.K = clusters.K
	result.Score = clusters.Combined
	result.Candidates = clusters.Candidates
	result.Sensitivity = clustering.Sensitivity(clusters.Candidates, sensitivityWeights)
	for _, choice := range result.Sensitivity {
		p.logger.Debug("Weight sensitivity",
			zap.Float64("silhouette_weight", choice.SilhouetteWeight),
			zap.Float64("balance_weight", choice.BalanceWeight),
			zap.Int("k", choice.K),
			zap.Bool("matches_selected", choice.K == clusters.K))
	}
	p.logger.Debug("Cluster selection weights",
		zap.Float64("silhouette_weight", cfg.SilhouetteWeight),
		zap.Float64("balance_weight", cfg.BalanceWeight))

	members := make([][]features.Vector, clusters.K)
	for i, label := range clusters.Labels {
		v := result.Features[i]
		members[label] = append(members[label], v)
		result.Assignments[v.ConversationID] = label
	}

	var profiles []naming.Profile
	for id, group := range members {
		if len(group) == 0 {
			continue
		}
		profiles = append(profiles, naming.BuildProfile(id, group))
	}
	names := p.namer.NameAll(profiles)

	for _, profile := range profiles {
		id := profile.ClusterID
		ids := make([]string, len(members[id]))
		for i, v := range members[id] {
			ids[i] = v.ConversationID
		}
		result.Clusters = append(result.Clusters, models.Cluster{
			ID:        id,
			Name:      names[id],
			MemberIDs: ids,
			Centroid:  clusters.Centroids[id],
		})
	}

	return nil
}

func (p *Pipeline) skip(result *Result, id, reason string) {
	p.logger.Warn("Skipping conversation",
		zap.String("conversation_id", id),
		zap.String("reason", reason))
	result.Skipped = append(result.Skipped, models.Skip{ConversationID: id, Reason: reason})
}
