package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/xaenox/trajectory-bot/internal/models"
)

type MemoryStorage struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	order         []string
	runs          []*models.ClusterRun
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		conversations: make(map[string]*models.Conversation),
	}
}

// Conversation methods
func (s *MemoryStorage) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("conversation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; !exists {
		s.order = append(s.order, conv.ID)
	}
	s.conversations[conv.ID] = conv.Clone()
	return nil
}

func (s *MemoryStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if conv, exists := s.conversations[id]; exists {
		return conv.Clone(), nil
	}
	return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
}

// ListConversations returns conversations in insertion order.
func (s *MemoryStorage) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.conversations[id].Clone())
	}
	return out, nil
}

// Run methods
func (s *MemoryStorage) SaveRun(ctx context.Context, run *models.ClusterRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stampRun(run)
	stored := *run
	s.runs = append(s.runs, &stored)
	sort.SliceStable(s.runs, func(i, j int) bool {
		return s.runs[i].CreatedAt.Before(s.runs[j].CreatedAt)
	})
	return nil
}

func (s *MemoryStorage) GetLatestRun(ctx context.Context) (*models.ClusterRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return nil, fmt.Errorf("cluster run: %w", ErrNotFound)
	}
	latest := *s.runs[len(s.runs)-1]
	return &latest, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// LoadConversationsFile reads a JSON array of conversations.
func LoadConversationsFile(path string) ([]models.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading conversations file: %w", err)
	}

	var convs []models.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, fmt.Errorf("error parsing conversations file %s: %w", path, err)
	}
	return convs, nil
}

// Seed saves every conversation from a JSON file into the store.
func Seed(ctx context.Context, store ConversationStorage, path string) (int, error) {
	convs, err := LoadConversationsFile(path)
	if err != nil {
		return 0, err
	}
	for i := range convs {
		if err := store.SaveConversation(ctx, &convs[i]); err != nil {
			return i, fmt.Errorf("error seeding conversation %s: %w", convs[i].ID, err)
		}
	}
	return len(convs), nil
}
