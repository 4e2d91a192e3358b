// Package trajectory turns a classified conversation into a path through
// relational space, one point per message.
package trajectory

import (
	"errors"
	"math"
	"sort"

	"github.com/xaenox/trajectory-bot/internal/models"
	"go.uber.org/zap"
)

var (
	ErrEmptyConversation     = errors.New("conversation has no messages")
	ErrMissingClassification = errors.New("conversation has no classification")
	ErrNoPAD                 = errors.New("no message carries a PAD score")
)

// Config holds the drift parameters of the simulation
type Config struct {
	BaseRate             float64
	ExpressivenessWeight float64
	AlignmentWeight      float64
	RoleBias             float64
	// LowConfidence is the confidence below which a categorical dimension
	// is ignored in favour of the role distributions.
	LowConfidence float64
}

// DefaultConfig returns the reference drift parameters.
func DefaultConfig() Config {
	return Config{
		BaseRate:             0.15,
		ExpressivenessWeight: 0.05,
		AlignmentWeight:      0.04,
		RoleBias:             0.01,
		LowConfidence:        0.5,
	}
}

// Simulator is stateless; one instance may serve concurrent callers.
type Simulator struct {
	cfg    Config
	logger *zap.Logger
}

func NewSimulator(cfg Config, logger *zap.Logger) *Simulator {
	return &Simulator{cfg: cfg, logger: logger}
}

// Target computes the conversation-level position the trajectory drifts toward.
func (s *Simulator) Target(c *models.Classification) (float64, float64) {
	roleX, roleY, haveRoles := roleTarget(c)

	x := 0.5
	purpose := c.ConversationPurpose
	px, knownPurpose := purposeX[normalizeCategory(purpose.Category)]
	switch {
	case knownPurpose && purpose.Confidence >= s.cfg.LowConfidence && haveRoles:
		x = 0.75*px + 0.25*roleX
	case knownPurpose && purpose.Confidence >= s.cfg.LowConfidence:
		x = px
	case haveRoles:
		x = roleX
	}

	y := 0.5
	pattern := c.InteractionPattern
	py, knownPattern := patternY[normalizeCategory(pattern.Category)]
	switch {
	case knownPattern && pattern.Confidence >= s.cfg.LowConfidence:
		y = py
	case haveRoles:
		y = roleY
	}

	return clamp(x), clamp(y)
}

// roleTarget is the mean of the distribution-weighted human and AI role
// positions. Roles missing from the lookup tables count as the centre.
func roleTarget(c *models.Classification) (float64, float64, bool) {
	var xs, ys []float64
	for _, dim := range []struct {
		dist  map[string]float64
		table map[string]rolePosition
	}{
		{c.HumanRole.Distribution, humanRoles},
		{c.AIRole.Distribution, aiRoles},
	} {
		roles := make([]string, 0, len(dim.dist))
		for role := range dim.dist {
			roles = append(roles, role)
		}
		// fixed summation order keeps repeated runs bit-identical
		sort.Strings(roles)

		var x, y, total float64
		for _, role := range roles {
			w := dim.dist[role]
			if w <= 0 {
				continue
			}
			pos, ok := dim.table[normalizeCategory(role)]
			if !ok {
				pos = rolePosition{0.5, 0.5}
			}
			x += w * pos.x
			y += w * pos.y
			total += w
		}
		if total > 0 {
			xs = append(xs, x/total)
			ys = append(ys, y/total)
		}
	}
	if len(xs) == 0 {
		return 0.5, 0.5, false
	}
	return mean(xs), mean(ys), true
}

// Simulate produces exactly len(conv.Messages) points.
func (s *Simulator) Simulate(conv *models.Conversation) ([]models.TrajectoryPoint, error) {
	if len(conv.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	if conv.Classification == nil {
		return nil, ErrMissingClassification
	}
	if !conv.HasPAD() {
		return nil, ErrNoPAD
	}

	tx, ty := s.Target(conv.Classification)
	n := float64(len(conv.Messages))
	x, y := 0.5, 0.5

	points := make([]models.TrajectoryPoint, 0, len(conv.Messages))
	defaulted := 0
	for i, msg := range conv.Messages {
		pad := models.NeutralPAD
		if msg.PAD != nil {
			pad = *msg.PAD
		} else {
			defaulted++
		}

		drift := s.cfg.BaseRate * float64(i+1) / n
		dx := (tx - x) * drift
		dy := (ty - y) * drift

		dx += s.cfg.ExpressivenessWeight * expressiveness(pad)
		dy += s.cfg.AlignmentWeight * (pad.Dominance - 0.5)
		switch msg.Role {
		case models.RoleUser:
			dx += s.cfg.RoleBias
		case models.RoleAssistant:
			dx -= s.cfg.RoleBias
		}

		x = clamp(x + dx)
		y = clamp(y + dy)
		points = append(points, models.TrajectoryPoint{X: x, Y: y, Z: clamp(pad.EmotionalIntensity)})
	}

	if defaulted > 0 {
		s.logger.Debug("Defaulted missing PAD scores to neutral",
			zap.String("conversation_id", conv.ID),
			zap.Int("messages", defaulted))
	}

	return points, nil
}

// Endpoint returns the last point of a trajectory.
func Endpoint(points []models.TrajectoryPoint) (models.TrajectoryPoint, bool) {
	if len(points) == 0 {
		return models.TrajectoryPoint{}, false
	}
	return points[len(points)-1], true
}

// expressiveness is the distance of pleasure and arousal from neutral, capped at 1.
func expressiveness(p models.PAD) float64 {
	return math.Min(1, math.Abs(p.Pleasure-0.5)+math.Abs(p.Arousal-0.5))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	return math.Max(0, math.Min(1, v))
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
