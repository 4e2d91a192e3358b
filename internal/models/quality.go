package models

import (
	"fmt"
	"math"
	"sort"
)

const (
	// IntensityTolerance bounds |intensity - 0.6*(1-P) - 0.4*A|.
	IntensityTolerance = 0.01
	// DistributionTolerance bounds |sum(weights) - 1|.
	DistributionTolerance = 0.01
)

// Issue is a data-quality defect found in an input conversation. Issues are
// reported, never corrected.
type Issue struct {
	ConversationID string `json:"conversation_id"`
	MessageIndex   int    `json:"message_index"` // -1 for conversation level
	Field          string `json:"field"`
	Detail         string `json:"detail"`
}

func (i Issue) String() string {
	if i.MessageIndex >= 0 {
		return fmt.Sprintf("%s[%d] %s: %s", i.ConversationID, i.MessageIndex, i.Field, i.Detail)
	}
	return fmt.Sprintf("%s %s: %s", i.ConversationID, i.Field, i.Detail)
}

// CheckQuality reports PAD range, intensity formula and role distribution
// violations for one conversation.
func CheckQuality(c *Conversation) []Issue {
	var issues []Issue

	for i, m := range c.Messages {
		if m.PAD == nil {
			continue
		}
		p := m.PAD
		for _, v := range []struct {
			name  string
			value float64
		}{
			{"pleasure", p.Pleasure},
			{"arousal", p.Arousal},
			{"dominance", p.Dominance},
			{"emotionalIntensity", p.EmotionalIntensity},
		} {
			if v.value < 0 || v.value > 1 || math.IsNaN(v.value) {
				issues = append(issues, Issue{
					ConversationID: c.ID,
					MessageIndex:   i,
					Field:          "pad." + v.name,
					Detail:         fmt.Sprintf("value %.4f outside [0,1]", v.value),
				})
			}
		}

		expected := Intensity(p.Pleasure, p.Arousal)
		if diff := math.Abs(p.EmotionalIntensity - expected); diff > IntensityTolerance {
			issues = append(issues, Issue{
				ConversationID: c.ID,
				MessageIndex:   i,
				Field:          "pad.emotionalIntensity",
				Detail:         fmt.Sprintf("got %.4f, formula gives %.4f", p.EmotionalIntensity, expected),
			})
		}
	}

	if c.Classification == nil {
		return issues
	}

	roles := c.Classification.Roles()
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dim := roles[name]
		for role, w := range dim.Distribution {
			if w < 0 {
				issues = append(issues, Issue{
					ConversationID: c.ID,
					MessageIndex:   -1,
					Field:          name + ".distribution",
					Detail:         fmt.Sprintf("negative weight %.4f for %q", w, role),
				})
			}
		}
		if sum := dim.Sum(); math.Abs(sum-1) > DistributionTolerance {
			issues = append(issues, Issue{
				ConversationID: c.ID,
				MessageIndex:   -1,
				Field:          name + ".distribution",
				Detail:         fmt.Sprintf("weights sum to %.4f", sum),
			})
		}
	}

	return issues
}
