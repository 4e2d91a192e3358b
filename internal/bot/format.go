package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/trajectory-bot/internal/features"
	"github.com/xaenox/trajectory-bot/internal/models"
)

const (
	// Telegram rejects messages longer than 4096 characters.
	maxMessageLen = 4000
	maxListed     = 20
)

func formatRun(run *models.ClusterRun, issues int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Clustering run* %s\n", escapeMarkdown(run.ID))
	fmt.Fprintf(&b, "%s\n", escapeMarkdown(fmt.Sprintf("k = %d, score %.3f, %d conversations",
		run.K, run.Score, len(run.Assignments))))
	if len(run.Skipped) > 0 {
		fmt.Fprintf(&b, "%s\n", escapeMarkdown(fmt.Sprintf("%d skipped (see /skips)", len(run.Skipped))))
	}
	if issues > 0 {
		fmt.Fprintf(&b, "%s\n", escapeMarkdown(fmt.Sprintf("%d data-quality issues reported", issues)))
	}
	b.WriteString("\n")

	for _, c := range run.Clusters {
		fmt.Fprintf(&b, "*%s* %s\n",
			escapeMarkdown(fmt.Sprintf("%d. %s", c.ID, c.Name)),
			escapeMarkdown(fmt.Sprintf("(%d conversations)", len(c.MemberIDs))))
	}
	return b.String()
}

func formatCluster(c models.Cluster, featureNames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", escapeMarkdown(fmt.Sprintf("%d. %s", c.ID, c.Name)))

	b.WriteString("\n*Centroid*\n")
	for i, v := range c.Centroid {
		name := fmt.Sprintf("feature_%d", i)
		if i < len(featureNames) {
			name = featureNames[i]
		}
		b.WriteString(escapeMarkdown(fmt.Sprintf("%s: %.4f", name, v)))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n*Members* %s\n", escapeMarkdown(fmt.Sprintf("(%d)", len(c.MemberIDs))))
	for i, id := range c.MemberIDs {
		if i == maxListed {
			b.WriteString(escapeMarkdown(fmt.Sprintf("... and %d more", len(c.MemberIDs)-maxListed)))
			b.WriteString("\n")
			break
		}
		b.WriteString(escapeMarkdown(id))
		b.WriteString("\n")
	}
	return b.String()
}

func formatTrajectory(id string, points []models.TrajectoryPoint, v features.Vector) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Trajectory of* %s\n", escapeMarkdown(id))
	b.WriteString(escapeMarkdown(fmt.Sprintf("drift %.3f, straightness %.3f, intensity variance %.5f",
		v.Get(features.DriftMagnitude), v.Get(features.PathStraightness), v.Get(features.IntensityVariance))))
	b.WriteString("\n\n")

	for i, p := range points {
		if i == maxListed {
			b.WriteString(escapeMarkdown(fmt.Sprintf("... %d more points", len(points)-maxListed)))
			b.WriteString("\n")
			break
		}
		b.WriteString(escapeMarkdown(fmt.Sprintf("%2d  x=%.3f y=%.3f z=%.3f", i+1, p.X, p.Y, p.Z)))
		b.WriteString("\n")
	}

	if len(points) > 0 {
		end := points[len(points)-1]
		fmt.Fprintf(&b, "\n*Ends* %s\n", escapeMarkdown(quadrantLabel(end)))
	}
	return b.String()
}

func formatSkips(skips []models.Skip) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Skipped conversations* %s\n", escapeMarkdown(fmt.Sprintf("(%d)", len(skips))))
	for i, s := range skips {
		if i == maxListed {
			b.WriteString(escapeMarkdown(fmt.Sprintf("... and %d more", len(skips)-maxListed)))
			b.WriteString("\n")
			break
		}
		fmt.Fprintf(&b, "%s: %s\n", escapeMarkdown(s.ConversationID), escapeMarkdown(s.Reason))
	}
	return b.String()
}

// quadrantLabel names the region of relational space a point falls in.
func quadrantLabel(p models.TrajectoryPoint) string {
	horizontal := "functional"
	if p.X >= 0.5 {
		horizontal = "social"
	}
	vertical := "aligned"
	if p.Y >= 0.5 {
		vertical = "divergent"
	}
	return horizontal + "/" + vertical
}

// truncate cuts text to the Telegram limit without splitting a rune or
// leaving a dangling escape.
func truncate(text string) string {
	if len(text) <= maxMessageLen {
		return text
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	head := text[:cut]
	trailing := len(head) - len(strings.TrimRight(head, "\\"))
	if trailing%2 == 1 {
		head = head[:len(head)-1]
	}
	return head + "\n…"
}
