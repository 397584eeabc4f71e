package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/metrics"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

const maxTitleLength = 255

func (o *Orchestrator) StartConversation(ctx context.Context, email string) (*models.Conversation, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("user email is required: %w", apperr.ErrValidation)
	}

	user, err := o.store.GetOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}

	conv := &models.Conversation{UserID: user.ID, SessionID: uuid.New().String()}
	if err := o.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	logger.Info("Conversation started", zap.String("session_id", conv.SessionID))
	return conv, nil
}

// History returns the active conversation and all of its messages in
// chronological order.
func (o *Orchestrator) History(ctx context.Context, email, sessionID string) (*models.Conversation, []models.Message, error) {
	conv, err := o.ownedConversation(ctx, email, sessionID)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := o.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// ListConversations returns the user's active conversations. An unknown
// user simply has none.
func (o *Orchestrator) ListConversations(ctx context.Context, email string) ([]models.ConversationSummary, error) {
	user, err := o.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return []models.ConversationSummary{}, nil
	}
	if err != nil {
		return nil, err
	}

	convs, err := o.store.ListConversations(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []models.ConversationSummary{}
	}
	return convs, nil
}

// SubmitFeedback records -1, 0 or 1 on an assistant message.
func (o *Orchestrator) SubmitFeedback(ctx context.Context, messageID int64, value int) error {
	if value < -1 || value > 1 {
		return fmt.Errorf("feedback must be -1, 0 or 1, got %d: %w", value, apperr.ErrValidation)
	}

	if err := o.store.SetFeedback(ctx, messageID, value); err != nil {
		return err
	}

	metrics.FeedbackSubmitted.WithLabelValues(strconv.Itoa(value)).Inc()
	return nil
}

func (o *Orchestrator) DeactivateConversation(ctx context.Context, email, sessionID string) error {
	conv, err := o.ownedConversation(ctx, email, sessionID)
	if err != nil {
		return err
	}

	if err := o.store.DeactivateConversation(ctx, conv.ID); err != nil {
		return err
	}

	logger.Info("Conversation deactivated", zap.String("session_id", conv.SessionID))
	return nil
}

func (o *Orchestrator) RenameConversation(ctx context.Context, email, sessionID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", apperr.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("title longer than %d characters: %w", maxTitleLength, apperr.ErrValidation)
	}

	conv, err := o.ownedConversation(ctx, email, sessionID)
	if err != nil {
		return nil, err
	}

	if err := o.store.UpdateConversationTitle(ctx, conv.ID, title); err != nil {
		return nil, err
	}

	conv.Title = title
	return conv, nil
}

func (o *Orchestrator) Analytics(ctx context.Context) (*models.ChatAnalytics, error) {
	return o.store.ChatAnalytics(ctx)
}

func (o *Orchestrator) ownedConversation(ctx context.Context, email, sessionID string) (*models.Conversation, error) {
	email = strings.TrimSpace(email)
	sessionID = strings.TrimSpace(sessionID)
	if email == "" || sessionID == "" {
		return nil, fmt.Errorf("user email and session id are required: %w", apperr.ErrValidation)
	}

	user, err := o.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return o.store.GetConversation(ctx, user.ID, sessionID, true)
}
