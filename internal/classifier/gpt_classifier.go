package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/trajectory-bot/internal/models"
	"go.uber.org/zap"
)

const maxTranscriptChars = 12000

type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	fallback    Provider
	logger      *zap.Logger
}

func NewGPTClassifier(apiKey string, model string, maxTokens int, temperature float64, fallback Provider, logger *zap.Logger) *GPTClassifier {
	return NewGPTClassifierWithConfig(openai.DefaultConfig(apiKey), model, maxTokens, temperature, fallback, logger)
}

// NewGPTClassifierWithConfig allows a custom base URL or HTTP client.
func NewGPTClassifierWithConfig(cfg openai.ClientConfig, model string, maxTokens int, temperature float64, fallback Provider, logger *zap.Logger) *GPTClassifier {
	return &GPTClassifier{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		fallback:    fallback,
		logger:      logger,
	}
}

const classificationPrompt = `Classify the following human-AI conversation.

Return a JSON object with these keys:
  interactionPattern, powerDynamics, emotionalTone, engagementStyle,
  knowledgeExchange, conversationPurpose, turnTaking
each as {"category": string, "confidence": number 0-1, "evidence": [string], "alternative": string},
and humanRole, aiRole
each as {"distribution": {role: weight}, "confidence": number 0-1, "evidence": [string]}.

interactionPattern is one of: question-answer, advisory, instructional, debate, collaborative, casual-chat, storytelling, emotional-sharing.
conversationPurpose is one of: information-seeking, task-completion, problem-solving, learning, creative-collaboration, self-expression, entertainment, relationship-building, emotional-support.
humanRole roles: director, seeker, learner, challenger, collaborator, sharer, social-expressor.
aiRole roles: expert, advisor, facilitator, peer, reflector, companion, affiliative.
Role weights must be non-negative and sum to 1.

Conversation:
%s`

const padPrompt = `Rate the emotional content of this %s message on the Pleasure-Arousal-Dominance scale.
Return a JSON object {"pleasure": number, "arousal": number, "dominance": number}, each between 0 and 1.

Message: %s`

func (c *GPTClassifier) Classify(ctx context.Context, conv *models.Conversation) (*models.Classification, error) {
	content, err := c.complete(ctx, fmt.Sprintf(classificationPrompt, transcript(conv)))
	if err != nil {
		c.logger.Error("Failed to get GPT classification",
			zap.Error(err),
			zap.String("conversation_id", conv.ID))
		return c.fallback.Classify(ctx, conv)
	}

	var class models.Classification
	if err := json.Unmarshal([]byte(content), &class); err != nil {
		c.logger.Error("Failed to parse GPT classification",
			zap.Error(err),
			zap.String("conversation_id", conv.ID),
			zap.String("response", content))
		return c.fallback.Classify(ctx, conv)
	}

	normalizeDistribution(class.HumanRole.Distribution)
	normalizeDistribution(class.AIRole.Distribution)
	return &class, nil
}

func (c *GPTClassifier) ScorePAD(ctx context.Context, msg models.Message) (*models.PAD, error) {
	content, err := c.complete(ctx, fmt.Sprintf(padPrompt, msg.Role, msg.Content))
	if err != nil {
		c.logger.Error("Failed to get GPT PAD score", zap.Error(err))
		return c.fallback.ScorePAD(ctx, msg)
	}

	var raw struct {
		Pleasure  *float64 `json:"pleasure"`
		Arousal   *float64 `json:"arousal"`
		Dominance *float64 `json:"dominance"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil || raw.Pleasure == nil || raw.Arousal == nil || raw.Dominance == nil {
		c.logger.Error("Failed to parse GPT PAD score",
			zap.Error(err),
			zap.String("response", content))
		return c.fallback.ScorePAD(ctx, msg)
	}

	pad := models.NewPAD(bound(*raw.Pleasure), bound(*raw.Arousal), bound(*raw.Dominance))
	return &pad, nil
}

func (c *GPTClassifier) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return stripFences(resp.Choices[0].Message.Content), nil
}

func transcript(conv *models.Conversation) string {
	var b strings.Builder
	for _, m := range conv.Messages {
		line := fmt.Sprintf("%s: %s\n", m.Role, m.Content)
		if b.Len()+len(line) > maxTranscriptChars {
			b.WriteString("[truncated]\n")
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

// stripFences removes a ```json ... ``` wrapper some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// normalizeDistribution drops negative weights and rescales to sum 1.
func normalizeDistribution(d map[string]float64) {
	var total float64
	for role, w := range d {
		if w < 0 || math.IsNaN(w) {
			delete(d, role)
			continue
		}
		total += w
	}
	if total <= 0 {
		return
	}
	for role := range d {
		d[role] /= total
	}
}
