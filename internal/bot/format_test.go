package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xaenox/trajectory-bot/internal/features"
	"github.com/xaenox/trajectory-bot/internal/models"
)

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"StraightPath_Stable", `StraightPath\_Stable`},
		{"k = 2.", `k \= 2\.`},
		{`a\b`, `a\\b`},
		{"(x)!", `\(x\)\!`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeMarkdown(tt.in))
	}
}

func sampleRun() *models.ClusterRun {
	return &models.ClusterRun{
		ID:           "run-1",
		K:            2,
		Score:        0.625,
		FeatureNames: []string{"avg_intensity", "path_straightness"},
		Clusters: []models.Cluster{
			{ID: 0, Name: "StraightPath_Stable_QA", MemberIDs: []string{"a", "b"}, Centroid: []float64{0.5, 0.95}},
			{ID: 1, Name: "Volatile_ES", MemberIDs: []string{"c"}, Centroid: []float64{0.8, 0.4}},
		},
		Assignments: map[string]int{"a": 0, "b": 0, "c": 1},
		Skipped:     []models.Skip{{ConversationID: "empty-1", Reason: "conversation has no messages"}},
	}
}

func TestFormatRun(t *testing.T) {
	text := formatRun(sampleRun(), 3)

	assert.Contains(t, text, `run\-1`)
	assert.Contains(t, text, `k \= 2, score 0\.625, 3 conversations`)
	assert.Contains(t, text, `1 skipped \(see /skips\)`)
	assert.Contains(t, text, `3 data\-quality issues`)
	assert.Contains(t, text, `*0\. StraightPath\_Stable\_QA* \(2 conversations\)`)
	assert.Contains(t, text, `*1\. Volatile\_ES* \(1 conversations\)`)

	assert.NotContains(t, formatRun(sampleRun(), -1), "data")
}

func TestFormatCluster(t *testing.T) {
	run := sampleRun()
	text := formatCluster(run.Clusters[0], run.FeatureNames)

	assert.Contains(t, text, `path\_straightness: 0\.9500`)
	assert.Contains(t, text, "*Members* \\(2\\)\na\nb\n")

	many := models.Cluster{ID: 3, Name: "Cluster3", Centroid: []float64{1, 2, 3}}
	for i := 0; i < maxListed+5; i++ {
		many.MemberIDs = append(many.MemberIDs, "m")
	}
	text = formatCluster(many, run.FeatureNames)
	assert.Contains(t, text, `feature\_2: 3\.0000`)
	assert.Contains(t, text, `\.\.\. and 5 more`)
}

func TestFormatTrajectory(t *testing.T) {
	points := []models.TrajectoryPoint{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.3, Y: 0.8, Z: 0.4}}
	values := make([]float64, features.Dimensions)
	values[features.DriftMagnitude] = 0.36
	values[features.PathStraightness] = 1
	v := features.Vector{ConversationID: "conv-1", Values: values}

	text := formatTrajectory("conv-1", points, v)
	assert.Contains(t, text, `conv\-1`)
	assert.Contains(t, text, `drift 0\.360, straightness 1\.000`)
	assert.Contains(t, text, ` 2  x\=0\.300 y\=0\.800 z\=0\.400`)
	assert.Contains(t, text, `functional/divergent`)
}

func TestFormatSkips(t *testing.T) {
	text := formatSkips(sampleRun().Skipped)
	assert.Contains(t, text, `\(1\)`)
	assert.Contains(t, text, "empty\\-1: conversation has no messages\n")
}

func TestQuadrantLabel(t *testing.T) {
	assert.Equal(t, "social/aligned", quadrantLabel(models.TrajectoryPoint{X: 0.9, Y: 0.1}))
	assert.Equal(t, "functional/divergent", quadrantLabel(models.TrajectoryPoint{X: 0.1, Y: 0.9}))
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("a", maxMessageLen-1) + `\.` + strings.Repeat("b", 100)
	out := truncate(long)
	assert.LessOrEqual(t, len(out), maxMessageLen+len("\n…"))
	assert.True(t, strings.HasSuffix(out, strings.Repeat("a", 10)+"\n…"), "dangling escape is dropped")

	runes := strings.Repeat("é", maxMessageLen)
	assert.True(t, strings.HasSuffix(truncate(runes), "é\n…"))
}
