package classifier

import (
	"context"
	"fmt"

	"github.com/xaenox/trajectory-bot/internal/models"
	"go.uber.org/zap"
)

// Annotator fills in missing classifications and PAD scores using a Provider.
type Annotator struct {
	provider Provider
	logger   *zap.Logger
}

func NewAnnotator(provider Provider, logger *zap.Logger) *Annotator {
	return &Annotator{provider: provider, logger: logger}
}

// Annotate returns a copy of conv with every gap filled and reports whether
// anything was added. Existing classifications and scores are kept as they are.
func (a *Annotator) Annotate(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	out := conv.Clone()
	changed := false

	if out.Classification == nil {
		class, err := a.provider.Classify(ctx, out)
		if err != nil {
			return nil, false, fmt.Errorf("classify %s: %w", conv.ID, err)
		}
		out.Classification = class
		changed = true
	}

	scored := 0
	for i := range out.Messages {
		if out.Messages[i].PAD != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		pad, err := a.provider.ScorePAD(ctx, out.Messages[i])
		if err != nil {
			return nil, false, fmt.Errorf("score message %d of %s: %w", i, conv.ID, err)
		}
		out.Messages[i].PAD = pad
		scored++
	}

	if changed || scored > 0 {
		a.logger.Debug("Annotated conversation",
			zap.String("conversation_id", conv.ID),
			zap.Bool("classified", changed),
			zap.Int("scored_messages", scored))
	}

	return out, changed || scored > 0, nil
}

// NeedsAnnotation reports whether conv lacks a classification or any PAD score.
func NeedsAnnotation(conv *models.Conversation) bool {
	if conv.Classification == nil {
		return true
	}
	for _, m := range conv.Messages {
		if m.PAD == nil {
			return true
		}
	}
	return false
}
