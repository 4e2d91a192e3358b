package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/trajectory-bot/internal/models"
	"go.uber.org/zap"
)

func sampleConversation(id string) *models.Conversation {
	pad := models.NewPAD(0.3, 0.7, 0.5)
	return &models.Conversation{
		ID: id,
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "How do I sort a slice?", PAD: &pad},
			{Role: models.RoleAssistant, Content: "Use sort.Slice."},
		},
		Classification: &models.Classification{
			InteractionPattern: models.CategoricalDimension{Category: "question-answer", Confidence: 0.9},
			HumanRole:          models.RoleDimension{Distribution: map[string]float64{"seeker": 1}},
			AIRole:             models.RoleDimension{Distribution: map[string]float64{"expert": 1}},
		},
	}
}

// exerciseStorage runs the behaviour every Storage implementation shares.
func exerciseStorage(t *testing.T, store Storage) {
	ctx := context.Background()

	_, err := store.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetLatestRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveConversation(ctx, sampleConversation("a")))
	require.NoError(t, store.SaveConversation(ctx, sampleConversation("b")))

	updated := sampleConversation("a")
	updated.Messages = updated.Messages[:1]
	require.NoError(t, store.SaveConversation(ctx, updated))

	got, err := store.GetConversation(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
	require.NotNil(t, got.Classification)
	assert.Equal(t, "question-answer", got.Classification.InteractionPattern.Category)
	require.NotNil(t, got.Messages[0].PAD)
	assert.InDelta(t, models.Intensity(0.3, 0.7), got.Messages[0].PAD.EmotionalIntensity, 1e-12)

	all, err := store.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	older := &models.ClusterRun{K: 2, Score: 0.5, CreatedAt: time.Now().Add(-time.Hour), Assignments: map[string]int{"a": 0}}
	newer := &models.ClusterRun{K: 3, Score: 0.7, Assignments: map[string]int{"a": 1, "b": 0}}
	require.NoError(t, store.SaveRun(ctx, newer))
	require.NoError(t, store.SaveRun(ctx, older))
	assert.NotEmpty(t, newer.ID)
	assert.False(t, newer.CreatedAt.IsZero())

	latest, err := store.GetLatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, 3, latest.K)
	assert.Equal(t, map[string]int{"a": 1, "b": 0}, latest.Assignments)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestMemoryStorageReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	conv := sampleConversation("a")
	require.NoError(t, store.SaveConversation(ctx, conv))

	conv.Classification.HumanRole.Distribution["seeker"] = 0.1
	got, err := store.GetConversation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Classification.HumanRole.Distribution["seeker"])

	got.Messages[0].PAD.Pleasure = 0.99
	again, err := store.GetConversation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0.3, again.Messages[0].PAD.Pleasure)
}

func TestMemoryStorageRejectsMissingID(t *testing.T) {
	err := NewMemoryStorage().SaveConversation(context.Background(), &models.Conversation{})
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.json")
	data := `[
		{"id": "c1", "messages": [{"role": "user", "content": "hi", "pad": {"pleasure": 0.8, "arousal": 0.4, "dominance": 0.5, "emotionalIntensity": 0.28}}]},
		{"id": "c2", "messages": [{"role": "assistant", "content": "hello"}],
		 "classification": {"humanRole": {"distribution": {"sharer": 1}}, "aiRole": {"distribution": {"peer": 1}}}}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	store := NewMemoryStorage()
	n, err := Seed(context.Background(), store, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c1, err := store.GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, c1.Messages[0].PAD)
	assert.Nil(t, c1.Classification)

	c2, err := store.GetConversation(context.Background(), "c2")
	require.NoError(t, err)
	assert.Nil(t, c2.Messages[0].PAD)
	assert.Equal(t, 1.0, c2.Classification.AIRole.Distribution["peer"])
}

func TestSeedErrors(t *testing.T) {
	_, err := Seed(context.Background(), NewMemoryStorage(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err = Seed(context.Background(), NewMemoryStorage(), path)
	assert.Error(t, err)
}

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := OpenPostgres(dsn, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`TRUNCATE conversations, cluster_runs`)
	require.NoError(t, err)

	exerciseStorage(t, store)
}
