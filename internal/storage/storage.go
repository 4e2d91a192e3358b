package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/trajectory-bot/internal/models"
)

var ErrNotFound = errors.New("not found")

type Storage interface {
	ConversationStorage
	RunStorage
	Close() error
}

// ConversationStorage supplies already classified conversations to the pipeline
type ConversationStorage interface {
	SaveConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}

// RunStorage keeps the results of clustering runs
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.ClusterRun) error
	GetLatestRun(ctx context.Context) (*models.ClusterRun, error)
}

// stampRun fills in the id and creation time of a new run.
func stampRun(run *models.ClusterRun) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
}
