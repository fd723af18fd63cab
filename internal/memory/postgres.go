// File: internal/memory/postgres.go
package memory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
)

// DBPool abstracts the pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists conversation logs in a conversation_messages table.
// Writes serialize through the pool; ordering within a conversation follows
// the insertion sequence.
type PostgresStore struct {
	pool   DBPool
	logger *zap.Logger
}

var _ schemas.ConversationStore = (*PostgresStore)(nil)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id BIGSERIAL PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    metadata JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv
    ON conversation_messages (conversation_id, id);`

// NewPostgresStore verifies the connection and ensures the schema exists.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createMessagesTable); err != nil {
		return nil, fmt.Errorf("failed to ensure conversation schema: %w", err)
	}
	return &PostgresStore{
		pool:   pool,
		logger: logger.Named("memory.postgres"),
	}, nil
}

// Append inserts one message at the end of a conversation.
func (s *PostgresStore) Append(ctx context.Context, conversationID string, msg schemas.Message) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id must not be empty")
	}

	metadata := msg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode message metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversation_messages (conversation_id, role, content, metadata, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		conversationID, msg.Role, msg.Content, metadataJSON, msg.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// History returns the most recent messages of a conversation, oldest first.
// limit <= 0 returns the whole log.
func (s *PostgresStore) History(ctx context.Context, conversationID string, limit int) ([]schemas.Message, error) {
	query := `
        SELECT role, content, metadata, created_at
        FROM (
            SELECT id, role, content, metadata, created_at
            FROM conversation_messages
            WHERE conversation_id = $1
            ORDER BY id DESC
            LIMIT $2
        ) recent
        ORDER BY id ASC`

	// NULL limit means no cap.
	var capArg any
	if limit > 0 {
		capArg = limit
	}

	rows, err := s.pool.Query(ctx, query, conversationID, capArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation history: %w", err)
	}
	defer rows.Close()

	var msgs []schemas.Message
	for rows.Next() {
		var msg schemas.Message
		var metadataJSON []byte
		if err := rows.Scan(&msg.Role, &msg.Content, &metadataJSON, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &msg.Metadata); err != nil {
				s.logger.Warn("Skipping unreadable message metadata", zap.Error(err))
			}
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return msgs, nil
}

// Clear removes all messages of a conversation.
func (s *PostgresStore) Clear(ctx context.Context, conversationID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	s.logger.Info("Conversation cleared",
		zap.String("conversation_id", conversationID),
		zap.Int64("deleted", tag.RowsAffected()),
	)
	return nil
}
