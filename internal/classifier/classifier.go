package classifier

import (
	"context"
	"strings"

	"github.com/xaenox/trajectory-bot/internal/models"
)

// Provider produces the classification and PAD scores the trajectory core
// consumes. Implementations own the correction of their own output.
type Provider interface {
	Classify(ctx context.Context, conv *models.Conversation) (*models.Classification, error)
	ScorePAD(ctx context.Context, msg models.Message) (*models.PAD, error)
}

// HeuristicClassifier is the offline provider: keyword lookups for the
// categorical dimensions and a small lexicon for PAD.
type HeuristicClassifier struct {
	confidence float64
}

func NewHeuristicClassifier(confidence float64) *HeuristicClassifier {
	return &HeuristicClassifier{confidence: confidence}
}

var purposeKeywords = []struct {
	purpose  string
	keywords []string
}{
	{"emotional-support", []string{"feel", "sad", "lonely", "anxious", "stressed", "upset"}},
	{"problem-solving", []string{"error", "bug", "fix", "broken", "crash", "doesn't work"}},
	{"creative-collaboration", []string{"story", "poem", "write", "lyrics", "character"}},
	{"entertainment", []string{"joke", "fun", "game", "play", "riddle"}},
	{"learning", []string{"explain", "learn", "teach", "understand", "study"}},
	{"information-seeking", []string{"what", "how", "why", "where", "when", "which"}},
}

var purposePattern = map[string]string{
	"emotional-support":      "emotional-sharing",
	"creative-collaboration": "storytelling",
	"entertainment":          "casual-chat",
	"learning":               "instructional",
	"problem-solving":        "advisory",
}

var purposeRoles = map[string][2]map[string]float64{
	"information-seeking":    {{"seeker": 0.7, "learner": 0.3}, {"expert": 0.7, "advisor": 0.3}},
	"problem-solving":        {{"seeker": 0.6, "director": 0.4}, {"advisor": 0.6, "expert": 0.4}},
	"learning":               {{"learner": 0.8, "seeker": 0.2}, {"expert": 0.5, "facilitator": 0.5}},
	"creative-collaboration": {{"collaborator": 0.7, "director": 0.3}, {"peer": 0.6, "facilitator": 0.4}},
	"entertainment":          {{"sharer": 0.6, "collaborator": 0.4}, {"peer": 0.7, "companion": 0.3}},
	"emotional-support":      {{"sharer": 0.8, "seeker": 0.2}, {"reflector": 0.6, "companion": 0.4}},
}

// Classify derives purpose from keywords in user messages and the
// interaction pattern from how often the user asks questions.
func (c *HeuristicClassifier) Classify(ctx context.Context, conv *models.Conversation) (*models.Classification, error) {
	var userText strings.Builder
	questions, userTurns := 0, 0
	for _, m := range conv.Messages {
		if m.Role != models.RoleUser {
			continue
		}
		userTurns++
		if strings.HasSuffix(strings.TrimSpace(m.Content), "?") {
			questions++
		}
		userText.WriteString(strings.ToLower(m.Content))
		userText.WriteByte(' ')
	}
	content := userText.String()

	purpose := "information-seeking"
	var evidence []string
	for _, p := range purposeKeywords {
		if kw, ok := containsAny(content, p.keywords); ok {
			purpose = p.purpose
			evidence = []string{kw}
			break
		}
	}

	pattern, ok := purposePattern[purpose]
	if !ok || (userTurns > 0 && float64(questions)/float64(userTurns) >= 0.5) {
		pattern = "question-answer"
	}
	if purpose == "information-seeking" && questions == 0 {
		pattern = "casual-chat"
	}

	roles := purposeRoles[purpose]
	return &models.Classification{
		InteractionPattern:  models.CategoricalDimension{Category: pattern, Confidence: c.confidence},
		ConversationPurpose: models.CategoricalDimension{Category: purpose, Confidence: c.confidence, Evidence: evidence},
		HumanRole:           models.RoleDimension{Distribution: copyDistribution(roles[0]), Confidence: c.confidence},
		AIRole:              models.RoleDimension{Distribution: copyDistribution(roles[1]), Confidence: c.confidence},
	}, nil
}

var (
	positiveWords = []string{"thanks", "thank", "great", "love", "awesome", "happy", "perfect", "nice", "glad"}
	negativeWords = []string{"sad", "angry", "hate", "terrible", "awful", "frustrated", "upset", "worried", "wrong"}
)

// ScorePAD scores one message from word polarity, exclamation marks,
// capitalised words and whether the message asks or tells.
func (c *HeuristicClassifier) ScorePAD(ctx context.Context, msg models.Message) (*models.PAD, error) {
	lower := strings.ToLower(msg.Content)
	words := strings.Fields(lower)

	pos, neg := 0, 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if contains(positiveWords, w) {
			pos++
		}
		if contains(negativeWords, w) {
			neg++
		}
	}

	shouting := 0
	for _, w := range strings.Fields(msg.Content) {
		if len(w) > 2 && w == strings.ToUpper(w) && w != strings.ToLower(w) {
			shouting++
		}
	}

	pleasure := bound(0.5 + 0.12*float64(pos-neg))
	arousal := bound(0.4 + 0.1*float64(strings.Count(msg.Content, "!")) + 0.1*float64(shouting) + 0.05*float64(pos+neg))
	dominance := 0.55
	if strings.HasSuffix(strings.TrimSpace(msg.Content), "?") {
		dominance = 0.4
	}

	pad := models.NewPAD(pleasure, arousal, dominance)
	return &pad, nil
}

func containsAny(s string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return kw, true
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func copyDistribution(d map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func bound(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
