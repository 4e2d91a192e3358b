// Package naming labels clusters from their aggregate feature statistics.
package naming

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xaenox/trajectory-bot/internal/features"
)

// Profile is the aggregate view of one cluster's members
type Profile struct {
	ClusterID         int
	Size              int
	PathStraightness  float64
	IntensityVariance float64
	DriftMagnitude    float64
	FinalX            float64
	FinalY            float64
	DominantPattern   string
	DominantPurpose   string
}

// BuildProfile averages the members' features and picks the most frequent
// pattern and purpose.
func BuildProfile(id int, members []features.Vector) Profile {
	p := Profile{ClusterID: id, Size: len(members)}
	if len(members) == 0 {
		return p
	}

	patterns := make(map[string]int)
	purposes := make(map[string]int)
	for _, m := range members {
		p.PathStraightness += m.Get(features.PathStraightness)
		p.IntensityVariance += m.Get(features.IntensityVariance)
		p.DriftMagnitude += m.Get(features.DriftMagnitude)
		p.FinalX += m.Get(features.FinalX)
		p.FinalY += m.Get(features.FinalY)
		if m.Pattern != "" {
			patterns[m.Pattern]++
		}
		if m.Purpose != "" {
			purposes[m.Purpose]++
		}
	}

	n := float64(len(members))
	p.PathStraightness /= n
	p.IntensityVariance /= n
	p.DriftMagnitude /= n
	p.FinalX /= n
	p.FinalY /= n
	p.DominantPattern = mostFrequent(patterns)
	p.DominantPurpose = mostFrequent(purposes)
	return p
}

// mostFrequent breaks ties alphabetically.
func mostFrequent(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestCount := "", 0
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

var shortCodes = map[string]string{
	"question-answer":        "QA",
	"advisory":               "Advisory",
	"instructional":          "Tutorial",
	"debate":                 "Debate",
	"collaborative":          "Collab",
	"casual-chat":            "Chat",
	"storytelling":           "Story",
	"emotional-sharing":      "Sharing",
	"information-seeking":    "InfoSeeking",
	"problem-solving":        "ProblemSolving",
	"task-completion":        "Task",
	"learning":               "Learning",
	"creative-collaboration": "Creative",
	"entertainment":          "Entertainment",
	"relationship-building":  "Rapport",
	"emotional-support":      "Support",
	"self-expression":        "Expression",
}

// shortCode maps a category to its suffix, CamelCasing unknown categories.
func shortCode(category string) string {
	key := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(category)))
	if key == "" {
		return ""
	}
	if code, ok := shortCodes[key]; ok {
		return code
	}
	var b strings.Builder
	for _, part := range strings.Split(key, "-") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// Namer applies a rule table to cluster profiles
type Namer struct {
	rules RuleSet
}

func NewNamer(rules RuleSet) *Namer {
	return &Namer{rules: rules}
}

// Name returns the label for one profile, Cluster{id} when no rule fires.
func (n *Namer) Name(p Profile) string {
	tags := n.rules.Evaluate(p)
	if len(tags) == 0 {
		return fmt.Sprintf("Cluster%d", p.ClusterID)
	}
	return strings.Join(tags, "_")
}

// NameAll names every profile and suffixes _C{id} to names shared by more
// than one cluster. The result is keyed by cluster id.
func (n *Namer) NameAll(profiles []Profile) map[int]string {
	names := make(map[int]string, len(profiles))
	uses := make(map[string]int)
	for _, p := range profiles {
		name := n.Name(p)
		names[p.ClusterID] = name
		uses[name]++
	}
	for _, p := range profiles {
		if name := names[p.ClusterID]; uses[name] > 1 {
			names[p.ClusterID] = fmt.Sprintf("%s_C%d", name, p.ClusterID)
		}
	}
	return names
}
