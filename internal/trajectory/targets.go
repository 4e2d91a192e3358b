package trajectory

import "strings"

// Position of each purpose on the Functional (0) to Social (1) axis.
var purposeX = map[string]float64{
	"information-seeking":    0.2,
	"task-completion":        0.25,
	"problem-solving":        0.3,
	"learning":               0.35,
	"creative-collaboration": 0.55,
	"self-expression":        0.7,
	"entertainment":          0.75,
	"relationship-building":  0.8,
	"emotional-support":      0.8,
}

// Position of each interaction pattern on the Aligned (0) to Divergent (1) axis.
var patternY = map[string]float64{
	"question-answer":   0.9,
	"debate":            0.85,
	"advisory":          0.8,
	"instructional":     0.75,
	"emotional-sharing": 0.3,
	"casual-chat":       0.25,
	"collaborative":     0.2,
	"storytelling":      0.15,
}

type rolePosition struct{ x, y float64 }

var humanRoles = map[string]rolePosition{
	"director":         {0.2, 0.75},
	"seeker":           {0.2, 0.8},
	"learner":          {0.35, 0.7},
	"challenger":       {0.45, 0.85},
	"collaborator":     {0.55, 0.25},
	"sharer":           {0.75, 0.3},
	"social-expressor": {0.8, 0.25},
}

var aiRoles = map[string]rolePosition{
	"expert":      {0.25, 0.8},
	"advisor":     {0.35, 0.75},
	"facilitator": {0.5, 0.4},
	"peer":        {0.65, 0.2},
	"reflector":   {0.7, 0.3},
	"companion":   {0.8, 0.2},
	"affiliative": {0.8, 0.2},
}

// normalizeCategory folds "Question_Answer" and "question answer" into "question-answer".
func normalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "-", " ", "-").Replace(s)
}
