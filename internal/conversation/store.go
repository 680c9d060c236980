package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Conversation status values.
const (
	StatusActive  = "active"
	StatusHandoff = "handoff"
	StatusClosed  = "closed"
)

// MessageCipher seals customer message text at rest. *merchants.Sealer
// satisfies it; a nil cipher stores plaintext (tests, local dev).
type MessageCipher interface {
	Seal(plain string) ([]byte, error)
	Open(sealed []byte) (string, error)
}

// Store persists conversations and messages to Postgres. One conversation
// row exists per (merchant, sender); every exchange appends two messages to
// it inside a transaction.
type Store struct {
	db     *sql.DB
	cipher MessageCipher
}

func NewStore(db *sql.DB, cipher MessageCipher) *Store {
	return &Store{db: db, cipher: cipher}
}

// StoredMessage is one persisted message row with the customer text already
// unsealed.
type StoredMessage struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	Metadata       map[string]string
	CreatedAt      time.Time
}

// RecordExchange stores the customer message and the assistant reply as one
// transactional append, upserting the conversation row. It returns the
// conversation id; on any failure everything is rolled back and the empty id
// plus the error come back so the caller can log and move on.
func (s *Store) RecordExchange(ctx context.Context, merchantID string, convCtx *Context, userMessage string, resp *Response) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("conversation: begin tx: %w", err)
	}
	defer tx.Rollback()

	senderKey := convCtx.SenderKey()
	status := StatusActive
	var handoffReason sql.NullString
	var handoffAt sql.NullTime
	if resp.Intent == IntentHumanHandoff {
		status = StatusHandoff
		// The customer message that triggered the escalation doubles as the
		// reason shown to the merchant.
		handoffReason = sql.NullString{String: userMessage, Valid: true}
		handoffAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	var conversationID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (id, merchant_id, channel, platform_sender_id, status, handoff_reason, handoff_triggered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (merchant_id, platform_sender_id)
		DO UPDATE SET channel = EXCLUDED.channel,
		              status = EXCLUDED.status,
		              handoff_reason = COALESCE(EXCLUDED.handoff_reason, conversations.handoff_reason),
		              handoff_triggered_at = COALESCE(EXCLUDED.handoff_triggered_at, conversations.handoff_triggered_at),
		              updated_at = NOW()
		RETURNING id`,
		uuid.NewString(), merchantID, string(convCtx.Channel), senderKey, status, handoffReason, handoffAt,
	).Scan(&conversationID)
	if err != nil {
		return "", fmt.Errorf("conversation: upsert conversation: %w", err)
	}

	sealed, err := s.seal(userMessage)
	if err != nil {
		return "", fmt.Errorf("conversation: seal message: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content_sealed, created_at)
		VALUES ($1, $2, 'user', $3, NOW())`,
		uuid.NewString(), conversationID, sealed)
	if err != nil {
		return "", fmt.Errorf("conversation: insert user message: %w", err)
	}

	metadata, err := json.Marshal(responseMetadata(convCtx, resp))
	if err != nil {
		return "", fmt.Errorf("conversation: marshal metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
		VALUES ($1, $2, 'assistant', $3, $4, NOW())`,
		uuid.NewString(), conversationID, resp.Message, metadata)
	if err != nil {
		return "", fmt.Errorf("conversation: insert assistant message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("conversation: commit: %w", err)
	}
	return conversationID, nil
}

func (s *Store) seal(plain string) ([]byte, error) {
	if s.cipher == nil {
		return []byte(plain), nil
	}
	return s.cipher.Seal(plain)
}

func (s *Store) open(sealed []byte) (string, error) {
	if s.cipher == nil {
		return string(sealed), nil
	}
	return s.cipher.Open(sealed)
}

func responseMetadata(convCtx *Context, resp *Response) map[string]string {
	md := map[string]string{
		"intent":     string(resp.Intent),
		"channel":    string(convCtx.Channel),
		"confidence": strconv.FormatFloat(resp.Confidence, 'f', 2, 64),
	}
	if resp.Fallback {
		md["fallback"] = "true"
	}
	for k, v := range resp.Metadata {
		md[k] = v
	}
	return md
}

// History returns the most recent messages of a conversation in creation
// order, customer text unsealed.
func (s *Store) History(ctx context.Context, merchantID, senderKey string, limit int) ([]StoredMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.role, m.content, m.content_sealed, m.metadata, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.merchant_id = $1 AND c.platform_sender_id = $2
		ORDER BY m.created_at DESC
		LIMIT $3`,
		merchantID, senderKey, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: query history: %w", err)
	}
	defer rows.Close()

	var messages []StoredMessage
	for rows.Next() {
		var (
			msg      StoredMessage
			content  sql.NullString
			sealed   []byte
			metadata []byte
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &content, &sealed, &metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		switch {
		case content.Valid && content.String != "":
			msg.Content = content.String
		case len(sealed) > 0:
			plain, err := s.open(sealed)
			if err != nil {
				return nil, fmt.Errorf("conversation: unseal message: %w", err)
			}
			msg.Content = plain
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &msg.Metadata)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate history: %w", err)
	}

	// Newest-first from the query; flip to creation order for callers.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UpdateStatus moves a conversation between active, handoff and closed.
func (s *Store) UpdateStatus(ctx context.Context, merchantID, senderKey, status string) error {
	switch status {
	case StatusActive, StatusHandoff, StatusClosed:
	default:
		return fmt.Errorf("conversation: invalid status %q", status)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = $3, updated_at = NOW()
		WHERE merchant_id = $1 AND platform_sender_id = $2`,
		merchantID, senderKey, status)
	if err != nil {
		return fmt.Errorf("conversation: update status: %w", err)
	}
	return nil
}
