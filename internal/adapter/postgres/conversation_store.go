package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MikhalGarbuz/analyze-your-life/internal/conversation"
)

// ConversationStore persists conversation sessions as JSONB, one row per
// user.
type ConversationStore struct {
	db *DB
}

// NewConversationStore wraps a DB as a conversation.SessionStore.
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Load returns the user's session, or nil when there is none.
func (c *ConversationStore) Load(ctx context.Context, userID int64) (*conversation.Session, error) {
	var payload []byte
	err := c.db.sql.GetContext(ctx, &payload, "SELECT payload FROM conversation_sessions WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s conversation.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode session of user %d: %w", userID, err)
	}
	return &s, nil
}

// Save inserts or replaces the user's session.
func (c *ConversationStore) Save(ctx context.Context, s *conversation.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = c.db.sql.ExecContext(ctx, `
		INSERT INTO conversation_sessions (user_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		s.UserID, payload, s.UpdatedAt,
	)
	return err
}

// Delete removes the user's session, if any.
func (c *ConversationStore) Delete(ctx context.Context, userID int64) error {
	_, err := c.db.sql.ExecContext(ctx, "DELETE FROM conversation_sessions WHERE user_id = $1", userID)
	return err
}
