package models

import "sort"

// CategoricalDimension holds one categorical classification of a conversation
type CategoricalDimension struct {
	Category    string   `json:"category"`
	Confidence  float64  `json:"confidence"`
	Evidence    []string `json:"evidence,omitempty"`
	Alternative string   `json:"alternative,omitempty"`
}

// Known reports whether the dimension carries a category.
func (d CategoricalDimension) Known() bool {
	return d.Category != ""
}

// RoleDimension is a probability distribution over roles
type RoleDimension struct {
	Distribution map[string]float64 `json:"distribution"`
	Confidence   float64            `json:"confidence"`
	Evidence     []string           `json:"evidence,omitempty"`
}

// Sum returns the total weight of the distribution.
func (d RoleDimension) Sum() float64 {
	var total float64
	for _, w := range d.Distribution {
		total += w
	}
	return total
}

// Dominant returns the highest weighted role. Ties resolve alphabetically
// so the result does not depend on map iteration order.
func (d RoleDimension) Dominant() (string, float64) {
	roles := make([]string, 0, len(d.Distribution))
	for role := range d.Distribution {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	best, bestWeight := "", -1.0
	for _, role := range roles {
		if w := d.Distribution[role]; w > bestWeight {
			best, bestWeight = role, w
		}
	}
	if best == "" {
		return "", 0
	}
	return best, bestWeight
}

// Classification is the conversation-level output of the classification collaborator
type Classification struct {
	InteractionPattern  CategoricalDimension `json:"interactionPattern"`
	PowerDynamics       CategoricalDimension `json:"powerDynamics"`
	EmotionalTone       CategoricalDimension `json:"emotionalTone"`
	EngagementStyle     CategoricalDimension `json:"engagementStyle"`
	KnowledgeExchange   CategoricalDimension `json:"knowledgeExchange"`
	ConversationPurpose CategoricalDimension `json:"conversationPurpose"`
	TurnTaking          CategoricalDimension `json:"turnTaking"`

	HumanRole RoleDimension `json:"humanRole"`
	AIRole    RoleDimension `json:"aiRole"`
}

// Categorical returns the categorical dimensions keyed by name.
func (c *Classification) Categorical() map[string]CategoricalDimension {
	return map[string]CategoricalDimension{
		"interactionPattern":  c.InteractionPattern,
		"powerDynamics":       c.PowerDynamics,
		"emotionalTone":       c.EmotionalTone,
		"engagementStyle":     c.EngagementStyle,
		"knowledgeExchange":   c.KnowledgeExchange,
		"conversationPurpose": c.ConversationPurpose,
		"turnTaking":          c.TurnTaking,
	}
}

// Roles returns the role dimensions keyed by name.
func (c *Classification) Roles() map[string]RoleDimension {
	return map[string]RoleDimension{
		"humanRole": c.HumanRole,
		"aiRole":    c.AIRole,
	}
}

// Clone returns a deep copy of the classification.
func (c *Classification) Clone() *Classification {
	out := *c
	for _, d := range []*CategoricalDimension{
		&out.InteractionPattern, &out.PowerDynamics, &out.EmotionalTone, &out.EngagementStyle,
		&out.KnowledgeExchange, &out.ConversationPurpose, &out.TurnTaking,
	} {
		d.Evidence = append([]string(nil), d.Evidence...)
	}
	for _, d := range []*RoleDimension{&out.HumanRole, &out.AIRole} {
		d.Evidence = append([]string(nil), d.Evidence...)
		if d.Distribution != nil {
			dist := make(map[string]float64, len(d.Distribution))
			for k, v := range d.Distribution {
				dist[k] = v
			}
			d.Distribution = dist
		}
	}
	return &out
}
