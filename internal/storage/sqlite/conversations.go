package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

// GetOrCreateUser finds the user by email, creating an employee named after
// the local part of the address when none exists.
func (c *Client) GetOrCreateUser(ctx context.Context, email string) (*models.User, error) {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (email, name, role, created_at) VALUES (?, ?, 'employee', ?)`,
		email, nameFromEmail(email), toMillis(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return c.GetUserByEmail(ctx, email)
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	var createdAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, created_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &createdAt)
	if isNoRows(err) {
		return nil, fmt.Errorf("user %q: %w", email, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

func (c *Client) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	now := time.Now().UTC()
	if conv.Title == "" {
		conv.Title = models.PlaceholderTitle
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, session_id, title, is_active, started_at) VALUES (?, ?, ?, 1, ?)`,
		conv.UserID, conv.SessionID, conv.Title, toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read conversation id: %w", err)
	}

	conv.ID = id
	conv.IsActive = true
	conv.StartedAt = now

	logger.Debug("Conversation created",
		zap.Int64("conversation_id", id),
		zap.String("session_id", conv.SessionID),
	)
	return nil
}

func scanConversation(row rowScanner, extra ...any) (*models.Conversation, error) {
	var conv models.Conversation
	var isActive int
	var startedAt int64
	var lastMessageAt sql.NullInt64

	dest := []any{&conv.ID, &conv.UserID, &conv.SessionID, &conv.Title, &isActive, &startedAt, &lastMessageAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	conv.IsActive = isActive == 1
	conv.StartedAt = fromMillis(startedAt)
	if lastMessageAt.Valid {
		t := fromMillis(lastMessageAt.Int64)
		conv.LastMessageAt = &t
	}
	return &conv, nil
}

const conversationColumns = `id, user_id, session_id, title, is_active, started_at, last_message_at`

// GetConversation returns the user's conversation for sessionID. When
// activeOnly is set, a deactivated conversation is reported as not found.
func (c *Client) GetConversation(ctx context.Context, userID int64, sessionID string, activeOnly bool) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE session_id = ? AND user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}

	conv, err := scanConversation(c.db.QueryRowContext(ctx, query, sessionID, userID))
	if isNoRows(err) {
		return nil, fmt.Errorf("conversation %q: %w", sessionID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the user's active conversations, most recently
// used first, with their message counts.
func (c *Client) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	query := `
		SELECT c.id, c.user_id, c.session_id, c.title, c.is_active, c.started_at, c.last_message_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.user_id = ? AND c.is_active = 1
		ORDER BY COALESCE(c.last_message_at, c.started_at) DESC, c.id DESC
	`

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var count int64
		conv, err := scanConversation(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		summaries = append(summaries, models.ConversationSummary{Conversation: *conv, MessageCount: count})
	}

	return summaries, rows.Err()
}

func (c *Client) DeactivateConversation(ctx context.Context, conversationID int64) error {
	_, err := c.db.ExecContext(ctx, `UPDATE conversations SET is_active = 0 WHERE id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to deactivate conversation: %w", err)
	}
	return nil
}

func (c *Client) UpdateConversationTitle(ctx context.Context, conversationID int64, title string) error {
	_, err := c.db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, conversationID)
	if err != nil {
		return fmt.Errorf("failed to update conversation title: %w", err)
	}
	return nil
}

// SetTitleIfPlaceholder names the conversation only while it still carries
// the placeholder title. It reports whether the title was changed.
func (c *Client) SetTitleIfPlaceholder(ctx context.Context, conversationID int64, title string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE id = ? AND title = ?`,
		title, conversationID, models.PlaceholderTitle,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set conversation title: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to set conversation title: %w", err)
	}
	return n == 1, nil
}

// InsertMessage stores msg and bumps the conversation's last activity.
func (c *Client) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	var sources any
	if msg.Sources != nil {
		data, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}
		sources = string(data)
	}

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, content, is_user_message, timestamp, source_documents, confidence_score)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		msg.ConversationID,
		msg.Content,
		boolToInt(msg.IsUserMessage),
		toMillis(msg.Timestamp),
		sources,
		msg.ConfidenceScore,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message id: %w", err)
	}
	msg.ID = id

	_, err = c.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
		toMillis(msg.Timestamp), msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	return nil
}

const messageColumns = `id, conversation_id, content, is_user_message, timestamp, source_documents, confidence_score, user_feedback`

func scanMessage(row rowScanner) (*models.Message, error) {
	var msg models.Message
	var isUser int
	var ts int64
	var sources sql.NullString
	var confidence sql.NullFloat64
	var feedback sql.NullInt64

	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Content, &isUser, &ts, &sources, &confidence, &feedback); err != nil {
		return nil, err
	}

	msg.IsUserMessage = isUser == 1
	msg.Timestamp = fromMillis(ts)
	if sources.Valid && sources.String != "" {
		if err := json.Unmarshal([]byte(sources.String), &msg.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources: %w", err)
		}
	}
	if confidence.Valid {
		v := confidence.Float64
		msg.ConfidenceScore = &v
	}
	if feedback.Valid {
		v := int(feedback.Int64)
		msg.UserFeedback = &v
	}
	return &msg, nil
}

// RecentMessages returns up to limit of the newest messages in the
// conversation, oldest first. Equal timestamps fall back to insertion order.
func (c *Client) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	defer rows.Close()

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListMessages returns the whole conversation in chronological order.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp, id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]models.Message, error) {
	msgs := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

func (c *Client) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	msg, err := scanMessage(c.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, fmt.Errorf("message %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// SetFeedback records feedback on an assistant message. User messages are
// not eligible and are reported as not found.
func (c *Client) SetFeedback(ctx context.Context, messageID int64, value int) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE messages SET user_feedback = ? WHERE id = ? AND is_user_message = 0`,
		value, messageID,
	)
	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %d not found or not eligible for feedback: %w", messageID, apperr.ErrNotFound)
	}

	logger.Info("Feedback stored", zap.Int64("message_id", messageID), zap.Int("feedback", value))
	return nil
}

func (c *Client) ChatAnalytics(ctx context.Context) (*models.ChatAnalytics, error) {
	var a models.ChatAnalytics

	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE is_active = 1`).Scan(&a.ActiveConversations); err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&a.TotalMessages); err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	var avg sql.NullFloat64
	err := c.db.QueryRowContext(ctx,
		`SELECT AVG(confidence_score) FROM messages WHERE is_user_message = 0 AND confidence_score IS NOT NULL`,
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to average confidence: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		a.AverageConfidence = &v
	}

	return &a, nil
}
