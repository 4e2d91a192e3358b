package trajectory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/trajectory-bot/internal/models"
	"go.uber.org/zap"
)

func infoSeeking() *models.Classification {
	return &models.Classification{
		InteractionPattern:  models.CategoricalDimension{Category: "question-answer", Confidence: 0.9},
		ConversationPurpose: models.CategoricalDimension{Category: "information-seeking", Confidence: 0.9},
		HumanRole:           models.RoleDimension{Distribution: map[string]float64{"seeker": 1.0}, Confidence: 0.8},
		AIRole:              models.RoleDimension{Distribution: map[string]float64{"expert": 1.0}, Confidence: 0.8},
	}
}

func conversation(n int, pad func(i int) *models.PAD) *models.Conversation {
	msgs := make([]models.Message, n)
	for i := range msgs {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs[i] = models.Message{Role: role, Content: "msg", PAD: pad(i)}
	}
	return &models.Conversation{ID: "conv", Messages: msgs, Classification: infoSeeking()}
}

func neutral(int) *models.PAD {
	p := models.NeutralPAD
	return &p
}

func TestSimulateInformationSeekingScenario(t *testing.T) {
	sim := NewSimulator(DefaultConfig(), zap.NewNop())

	points, err := sim.Simulate(conversation(10, neutral))
	require.NoError(t, err)
	require.Len(t, points, 10)

	end, ok := Endpoint(points)
	require.True(t, ok)
	assert.GreaterOrEqual(t, end.X, 0.2)
	assert.LessOrEqual(t, end.X, 0.35)
	assert.GreaterOrEqual(t, end.Y, 0.7)
	assert.LessOrEqual(t, end.Y, 0.9)
	for _, p := range points {
		assert.Equal(t, 0.5, p.Z)
	}
}

func TestSimulateSingleMessageDriftsBaseRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RoleBias = 0
	sim := NewSimulator(cfg, zap.NewNop())

	conv := conversation(1, neutral)
	tx, ty := sim.Target(conv.Classification)

	points, err := sim.Simulate(conv)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 0.5+cfg.BaseRate*(tx-0.5), points[0].X, 1e-12)
	assert.InDelta(t, 0.5+cfg.BaseRate*(ty-0.5), points[0].Y, 1e-12)
	assert.NotEqual(t, tx, points[0].X)
}

func TestSimulateIsDeterministic(t *testing.T) {
	sim := NewSimulator(DefaultConfig(), zap.NewNop())
	conv := conversation(25, func(i int) *models.PAD {
		p := models.NewPAD(float64(i%5)/5, float64(i%3)/3, float64(i%7)/7)
		return &p
	})
	conv.Classification.HumanRole.Distribution = map[string]float64{"seeker": 0.3, "sharer": 0.3, "learner": 0.4}

	first, err := sim.Simulate(conv)
	require.NoError(t, err)
	second, err := sim.Simulate(conv)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSimulateStaysInUnitCube(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpressivenessWeight = 0.6
	cfg.AlignmentWeight = 0.8
	sim := NewSimulator(cfg, zap.NewNop())

	conv := conversation(40, func(i int) *models.PAD {
		p := models.NewPAD(float64(i%2), 1, float64((i+1)%2))
		return &p
	})
	conv.Classification.ConversationPurpose.Category = "emotional-support"

	points, err := sim.Simulate(conv)
	require.NoError(t, err)
	for _, p := range points {
		for _, v := range []float64{p.X, p.Y, p.Z} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestSimulateDefaultsMissingPAD(t *testing.T) {
	sim := NewSimulator(DefaultConfig(), zap.NewNop())
	conv := conversation(4, func(i int) *models.PAD {
		if i == 2 {
			return nil
		}
		p := models.NewPAD(0.1, 0.9, 0.5)
		return &p
	})

	points, err := sim.Simulate(conv)
	require.NoError(t, err)
	require.Len(t, points, 4)
	assert.Equal(t, 0.5, points[2].Z)
	assert.InDelta(t, models.Intensity(0.1, 0.9), points[0].Z, 1e-12)
}

func TestSimulateErrors(t *testing.T) {
	sim := NewSimulator(DefaultConfig(), zap.NewNop())

	_, err := sim.Simulate(&models.Conversation{ID: "empty", Classification: infoSeeking()})
	assert.ErrorIs(t, err, ErrEmptyConversation)

	noClass := conversation(3, neutral)
	noClass.Classification = nil
	_, err = sim.Simulate(noClass)
	assert.ErrorIs(t, err, ErrMissingClassification)

	_, err = sim.Simulate(conversation(3, func(int) *models.PAD { return nil }))
	assert.ErrorIs(t, err, ErrNoPAD)
}

func TestTarget(t *testing.T) {
	sim := NewSimulator(DefaultConfig(), zap.NewNop())

	tests := []struct {
		name  string
		class *models.Classification
		wantX float64
		wantY float64
	}{
		{
			name:  "purpose and pattern with roles",
			class: infoSeeking(),
			wantX: 0.75*0.2 + 0.25*(0.2+0.25)/2,
			wantY: 0.9,
		},
		{
			name: "low pattern confidence falls back to roles",
			class: &models.Classification{
				InteractionPattern:  models.CategoricalDimension{Category: "question-answer", Confidence: 0.2},
				ConversationPurpose: models.CategoricalDimension{Category: "entertainment", Confidence: 0.9},
				HumanRole:           models.RoleDimension{Distribution: map[string]float64{"sharer": 1}},
				AIRole:              models.RoleDimension{Distribution: map[string]float64{"peer": 1}},
			},
			wantX: 0.75*0.75 + 0.25*(0.75+0.65)/2,
			wantY: (0.3 + 0.2) / 2,
		},
		{
			name: "category spelling is normalised",
			class: &models.Classification{
				InteractionPattern:  models.CategoricalDimension{Category: "Casual_Chat", Confidence: 0.8},
				ConversationPurpose: models.CategoricalDimension{Category: "Relationship Building", Confidence: 0.8},
			},
			wantX: 0.8,
			wantY: 0.25,
		},
		{
			name:  "nothing usable stays centred",
			class: &models.Classification{},
			wantX: 0.5,
			wantY: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := sim.Target(tt.class)
			assert.InDelta(t, tt.wantX, x, 1e-9)
			assert.InDelta(t, tt.wantY, y, 1e-9)
		})
	}
}
