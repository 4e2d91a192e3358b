package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/trajectory-bot/internal/models"
	"go.uber.org/zap"
)

func chat(msgs ...string) *models.Conversation {
	conv := &models.Conversation{ID: "c"}
	for i, content := range msgs {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		conv.Messages = append(conv.Messages, models.Message{Role: role, Content: content})
	}
	return conv
}

func TestHeuristicClassify(t *testing.T) {
	h := NewHeuristicClassifier(0.6)

	tests := []struct {
		name    string
		conv    *models.Conversation
		purpose string
		pattern string
	}{
		{"questions", chat("What is the capital of France?", "Paris.", "Why is it the capital?", "History."), "information-seeking", "question-answer"},
		{"bug report", chat("My build has an error in main.go", "Show me the log."), "problem-solving", "advisory"},
		{"feelings", chat("I feel lonely lately", "I'm sorry to hear that."), "emotional-support", "emotional-sharing"},
		{"story", chat("Let's write a story about a dragon", "Once upon a time..."), "creative-collaboration", "storytelling"},
		{"small talk", chat("hello there", "hi!"), "information-seeking", "casual-chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, err := h.Classify(context.Background(), tt.conv)
			require.NoError(t, err)
			assert.Equal(t, tt.purpose, class.ConversationPurpose.Category)
			assert.Equal(t, tt.pattern, class.InteractionPattern.Category)
			assert.InDelta(t, 1.0, class.HumanRole.Sum(), models.DistributionTolerance)
			assert.InDelta(t, 1.0, class.AIRole.Sum(), models.DistributionTolerance)
		})
	}
}

func TestHeuristicScorePAD(t *testing.T) {
	h := NewHeuristicClassifier(0.6)
	ctx := context.Background()

	happy, err := h.ScorePAD(ctx, models.Message{Role: models.RoleUser, Content: "Thanks, this is great!"})
	require.NoError(t, err)
	angry, err := h.ScorePAD(ctx, models.Message{Role: models.RoleUser, Content: "This is TERRIBLE and WRONG!!!"})
	require.NoError(t, err)
	plain, err := h.ScorePAD(ctx, models.Message{Role: models.RoleUser, Content: "where is the file?"})
	require.NoError(t, err)

	assert.Greater(t, happy.Pleasure, 0.5)
	assert.Less(t, angry.Pleasure, 0.5)
	assert.Greater(t, angry.Arousal, happy.Arousal)
	assert.Greater(t, angry.EmotionalIntensity, happy.EmotionalIntensity)
	assert.Less(t, plain.Dominance, 0.5)

	for _, pad := range []*models.PAD{happy, angry, plain} {
		assert.InDelta(t, models.Intensity(pad.Pleasure, pad.Arousal), pad.EmotionalIntensity, models.IntensityTolerance)
	}
}

// fakeOpenAI serves chat completions whose content is chosen by respond.
func fakeOpenAI(t *testing.T, respond func(prompt string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: respond(req.Messages[0].Content)},
				FinishReason: openai.FinishReasonStop,
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGPT(srv *httptest.Server) *GPTClassifier {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewGPTClassifierWithConfig(cfg, "gpt-test", 300, 0, NewHeuristicClassifier(0.5), zap.NewNop())
}

func TestGPTClassifyNormalizesDistributions(t *testing.T) {
	srv := fakeOpenAI(t, func(string) string {
		return "```json\n" + `{
			"interactionPattern": {"category": "advisory", "confidence": 0.8, "evidence": ["asks for advice"]},
			"conversationPurpose": {"category": "problem-solving", "confidence": 0.7},
			"humanRole": {"distribution": {"seeker": 2, "director": 2, "learner": -1}, "confidence": 0.6},
			"aiRole": {"distribution": {"advisor": 0.5, "expert": 0.5}, "confidence": 0.9}
		}` + "\n```"
	})

	class, err := newTestGPT(srv).Classify(context.Background(), chat("my code crashes", "try this"))
	require.NoError(t, err)
	assert.Equal(t, "advisory", class.InteractionPattern.Category)
	assert.Equal(t, "problem-solving", class.ConversationPurpose.Category)
	assert.InDelta(t, 1.0, class.HumanRole.Sum(), 1e-12)
	assert.Equal(t, map[string]float64{"seeker": 0.5, "director": 0.5}, class.HumanRole.Distribution)
}

func TestGPTFallsBackOnUnparseableResponse(t *testing.T) {
	srv := fakeOpenAI(t, func(string) string { return "I cannot answer that" })
	gpt := newTestGPT(srv)

	class, err := gpt.Classify(context.Background(), chat("What is Go?", "A language."))
	require.NoError(t, err)
	assert.Equal(t, "information-seeking", class.ConversationPurpose.Category)

	pad, err := gpt.ScorePAD(context.Background(), models.Message{Role: models.RoleUser, Content: "ok"})
	require.NoError(t, err)
	assert.InDelta(t, models.Intensity(pad.Pleasure, pad.Arousal), pad.EmotionalIntensity, 1e-12)
}

func TestGPTScorePAD(t *testing.T) {
	srv := fakeOpenAI(t, func(string) string {
		return `{"pleasure": 0.2, "arousal": 1.3, "dominance": 0.4}`
	})

	pad, err := newTestGPT(srv).ScorePAD(context.Background(), models.Message{Role: models.RoleUser, Content: "ugh"})
	require.NoError(t, err)
	assert.Equal(t, 0.2, pad.Pleasure)
	assert.Equal(t, 1.0, pad.Arousal)
	assert.InDelta(t, 0.6*0.8+0.4*1.0, pad.EmotionalIntensity, 1e-12)
}

func TestAnnotatorFillsGaps(t *testing.T) {
	existing := models.NewPAD(0.9, 0.1, 0.5)
	conv := chat("What is Go?", "A programming language.")
	conv.Messages[0].PAD = &existing
	require.True(t, NeedsAnnotation(conv))

	a := NewAnnotator(NewHeuristicClassifier(0.6), zap.NewNop())
	out, changed, err := a.Annotate(context.Background(), conv)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, out.Classification)
	require.NotNil(t, out.Messages[1].PAD)
	assert.Equal(t, existing, *out.Messages[0].PAD)
	assert.False(t, NeedsAnnotation(out))

	assert.Nil(t, conv.Classification, "input is not modified")
	assert.Nil(t, conv.Messages[1].PAD)

	_, changed, err = a.Annotate(context.Background(), out)
	require.NoError(t, err)
	assert.False(t, changed)
}
