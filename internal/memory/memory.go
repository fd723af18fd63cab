// File: internal/memory/memory.go

// Package memory provides conversation stores: a mutex-guarded in-process
// store for dev and tests, and a Postgres-backed store for persistence.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
)

const defaultMaxMessages = 100

// InMemoryStore keeps conversation logs in process memory. Each conversation
// is capped at maxMessages with the oldest entries trimmed first; a global
// view of recent messages across all conversations is kept alongside, under
// the same cap.
type InMemoryStore struct {
	mu            sync.Mutex
	maxMessages   int
	conversations map[string][]schemas.Message
	global        []schemas.Message
	logger        *zap.Logger
}

var _ schemas.ConversationStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates the store. maxMessages <= 0 uses the default cap.
func NewInMemoryStore(maxMessages int, logger *zap.Logger) *InMemoryStore {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	s := &InMemoryStore{
		maxMessages:   maxMessages,
		conversations: make(map[string][]schemas.Message),
		logger:        logger.Named("memory"),
	}
	s.logger.Info("Conversation memory initialized", zap.Int("max_messages", maxMessages))
	return s
}

// Append adds a message to a conversation, trimming the oldest entries when
// the cap is exceeded.
func (s *InMemoryStore) Append(ctx context.Context, conversationID string, msg schemas.Message) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conversationID] = trimOldest(
		append(s.conversations[conversationID], msg), s.maxMessages)
	s.global = trimOldest(append(s.global, msg), s.maxMessages)

	s.logger.Debug("Memory updated",
		zap.String("conversation_id", conversationID),
		zap.Int("conversation_messages", len(s.conversations[conversationID])),
		zap.Int("total_messages", len(s.global)),
	)
	return nil
}

// History returns the most recent messages of a conversation, oldest first.
// limit <= 0 returns the whole log. An unknown conversation is empty, not an
// error.
func (s *InMemoryStore) History(ctx context.Context, conversationID string, limit int) ([]schemas.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.conversations[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]schemas.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear removes a conversation. Its messages stay in the global view.
func (s *InMemoryStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, conversationID)
	s.logger.Info("Conversation cleared", zap.String("conversation_id", conversationID))
	return nil
}

// Recent returns the most recent messages across all conversations, oldest
// first.
func (s *InMemoryStore) Recent(limit int) []schemas.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.global
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]schemas.Message, len(msgs))
	copy(out, msgs)
	return out
}

// ContextString formats the most recent messages for inclusion in a prompt.
// Each message body is truncated to 500 characters.
func (s *InMemoryStore) ContextString(limit int) string {
	msgs := s.Recent(limit)

	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		content := msg.Content
		if len(content) > 500 {
			content = content[:500]
		}
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(msg.Role), content))
	}
	return strings.Join(lines, "\n\n")
}

func trimOldest(msgs []schemas.Message, max int) []schemas.Message {
	if len(msgs) <= max {
		return msgs
	}
	return msgs[len(msgs)-max:]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
