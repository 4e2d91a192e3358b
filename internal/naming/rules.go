package naming

import "math"

// Rule contributes at most one tag for a profile. Within a group only the
// first rule that fires is used.
type Rule struct {
	Group string
	Apply func(Profile) (string, bool)
}

// RuleSet is an ordered rule table. Group order in the table is tag order in the name.
type RuleSet []Rule

// Evaluate returns the tags that fire for p, in table order.
func (rs RuleSet) Evaluate(p Profile) []string {
	var tags []string
	done := make(map[string]bool)
	for _, rule := range rs {
		if done[rule.Group] {
			continue
		}
		if tag, ok := rule.Apply(p); ok && tag != "" {
			tags = append(tags, tag)
			done[rule.Group] = true
		}
	}
	return tags
}

// Thresholds parameterise the default rule table
type Thresholds struct {
	StraightPath   float64
	MeanderingPath float64
	Stable         float64
	Volatile       float64
	QuadrantMargin float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		StraightPath:   0.9,
		MeanderingPath: 0.6,
		Stable:         0.001,
		Volatile:       0.005,
		QuadrantMargin: 0.05,
	}
}

func above(group, tag string, value func(Profile) float64, threshold float64) Rule {
	return Rule{Group: group, Apply: func(p Profile) (string, bool) {
		return tag, value(p) > threshold
	}}
}

func below(group, tag string, value func(Profile) float64, threshold float64) Rule {
	return Rule{Group: group, Apply: func(p Profile) (string, bool) {
		return tag, value(p) < threshold
	}}
}

// DefaultRules builds the path, volatility, quadrant and behaviour rules.
func DefaultRules(t Thresholds) RuleSet {
	straightness := func(p Profile) float64 { return p.PathStraightness }
	variance := func(p Profile) float64 { return p.IntensityVariance }

	return RuleSet{
		above("path", "StraightPath", straightness, t.StraightPath),
		below("path", "MeanderingPath", straightness, t.MeanderingPath),
		below("volatility", "Stable", variance, t.Stable),
		above("volatility", "Volatile", variance, t.Volatile),
		{Group: "quadrant", Apply: quadrant(t.QuadrantMargin)},
		{Group: "behaviour", Apply: func(p Profile) (string, bool) {
			if code := shortCode(p.DominantPattern); code != "" {
				return code, true
			}
			code := shortCode(p.DominantPurpose)
			return code, code != ""
		}},
	}
}

// quadrant tags the endpoint's quadrant of relational space once it sits at
// least margin away from the centre on one axis.
func quadrant(margin float64) func(Profile) (string, bool) {
	return func(p Profile) (string, bool) {
		if math.Abs(p.FinalX-0.5) < margin && math.Abs(p.FinalY-0.5) < margin {
			return "", false
		}
		horizontal := "Functional"
		if p.FinalX >= 0.5 {
			horizontal = "Social"
		}
		vertical := "Aligned"
		if p.FinalY >= 0.5 {
			vertical = "Divergent"
		}
		return horizontal + vertical, true
	}
}
