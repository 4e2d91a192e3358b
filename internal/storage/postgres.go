package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/xaenox/trajectory-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	return OpenPostgres(config.DSN(), logger)
}

// OpenPostgres connects with a raw DSN or URL and applies the schema.
func OpenPostgres(dsn string, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err = s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	s.logger.Debug("Database schema initialized")
	return nil
}

func (s *PostgresStorage) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("conversation id is required")
	}

	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("error encoding messages: %w", err)
	}
	var classification []byte
	if conv.Classification != nil {
		if classification, err = json.Marshal(conv.Classification); err != nil {
			return fmt.Errorf("error encoding classification: %w", err)
		}
	}

	query := `
		INSERT INTO conversations (id, messages, classification)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET messages = EXCLUDED.messages,
		    classification = EXCLUDED.classification,
		    updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, conv.ID, string(messages), nullableJSON(classification)); err != nil {
		return fmt.Errorf("error saving conversation %s: %w", conv.ID, err)
	}
	return nil
}

func (s *PostgresStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := `
		SELECT id, messages, classification
		FROM conversations
		WHERE id = $1`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *PostgresStorage) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	query := `
		SELECT id, messages, classification
		FROM conversations
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		convs = append(convs, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return convs, nil
}

func (s *PostgresStorage) SaveRun(ctx context.Context, run *models.ClusterRun) error {
	stampRun(run)

	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("error encoding cluster run: %w", err)
	}

	query := `
		INSERT INTO cluster_runs (id, k, score, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.ExecContext(ctx, query, run.ID, run.K, run.Score, string(payload), run.CreatedAt); err != nil {
		return fmt.Errorf("error saving cluster run %s: %w", run.ID, err)
	}
	return nil
}

func (s *PostgresStorage) GetLatestRun(ctx context.Context) (*models.ClusterRun, error) {
	query := `
		SELECT payload
		FROM cluster_runs
		ORDER BY created_at DESC
		LIMIT 1`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying latest cluster run: %w", err)
	}

	var run models.ClusterRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("error decoding cluster run: %w", err)
	}
	return &run, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		conv           models.Conversation
		messages       []byte
		classification []byte
	)
	if err := row.Scan(&conv.ID, &messages, &classification); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(messages, &conv.Messages); err != nil {
		return nil, fmt.Errorf("error decoding messages of %s: %w", conv.ID, err)
	}
	if len(classification) > 0 {
		conv.Classification = &models.Classification{}
		if err := json.Unmarshal(classification, conv.Classification); err != nil {
			return nil, fmt.Errorf("error decoding classification of %s: %w", conv.ID, err)
		}
	}
	return &conv, nil
}

// lib/pq sends []byte as bytea, so JSON parameters go over the wire as text.
func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
