package models

import "time"

// Role identifies the speaker of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PAD is a Pleasure-Arousal-Dominance score with its derived intensity
type PAD struct {
	Pleasure           float64 `json:"pleasure"`
	Arousal            float64 `json:"arousal"`
	Dominance          float64 `json:"dominance"`
	EmotionalIntensity float64 `json:"emotionalIntensity"`
}

// NeutralPAD is used wherever a message carries no score.
var NeutralPAD = PAD{Pleasure: 0.5, Arousal: 0.5, Dominance: 0.5, EmotionalIntensity: 0.5}

// Intensity returns 0.6*(1-pleasure) + 0.4*arousal.
func Intensity(pleasure, arousal float64) float64 {
	return 0.6*(1-pleasure) + 0.4*arousal
}

// NewPAD builds a score whose intensity satisfies the derivation formula
func NewPAD(pleasure, arousal, dominance float64) PAD {
	return PAD{
		Pleasure:           pleasure,
		Arousal:            arousal,
		Dominance:          dominance,
		EmotionalIntensity: Intensity(pleasure, arousal),
	}
}

// Message is a single conversation turn. PAD is nil when the score is missing.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	PAD     *PAD   `json:"pad,omitempty"`
}

// Conversation is a classified, PAD-annotated exchange between a human and an AI
type Conversation struct {
	ID             string          `json:"id"`
	Messages       []Message       `json:"messages"`
	Classification *Classification `json:"classification,omitempty"`
}

// HasPAD reports whether at least one message carries a PAD score.
func (c *Conversation) HasPAD() bool {
	for _, m := range c.Messages {
		if m.PAD != nil {
			return true
		}
	}
	return false
}

// TrajectoryPoint is a position in relational space plus local intensity.
// X runs Functional (0) to Social (1), Y runs Aligned (0) to Divergent (1).
type TrajectoryPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Cluster is a named group of conversations from one clustering run
type Cluster struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	MemberIDs []string  `json:"member_ids"`
	Centroid  []float64 `json:"centroid"`
}

// CandidateScore records how one cluster count scored during selection
type CandidateScore struct {
	K          int     `json:"k"`
	Silhouette float64 `json:"silhouette"`
	Balance    float64 `json:"balance"`
	Combined   float64 `json:"combined"`
	Inertia    float64 `json:"inertia"`
}

// ClusterRun is the persisted result of one clustering pass
type ClusterRun struct {
	ID           string           `json:"id"`
	CreatedAt    time.Time        `json:"created_at"`
	K            int              `json:"k"`
	Score        float64          `json:"score"`
	FeatureNames []string         `json:"feature_names"`
	Clusters     []Cluster        `json:"clusters"`
	Assignments  map[string]int   `json:"assignments"`
	Candidates   []CandidateScore `json:"candidates"`
	Skipped      []Skip           `json:"skipped,omitempty"`
}

// Skip records why a conversation was left out of a run
type Skip struct {
	ConversationID string `json:"conversation_id"`
	Reason         string `json:"reason"`
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{ID: c.ID, Messages: make([]Message, len(c.Messages))}
	for i, m := range c.Messages {
		out.Messages[i] = m
		if m.PAD != nil {
			pad := *m.PAD
			out.Messages[i].PAD = &pad
		}
	}
	if c.Classification != nil {
		out.Classification = c.Classification.Clone()
	}
	return out
}
