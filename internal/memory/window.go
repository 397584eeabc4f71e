// Package memory rebuilds the recent transcript of a conversation from
// stored messages. It keeps no state between calls.
package memory

import (
	"context"
	"fmt"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role
	Content string
}

type MessageSource interface {
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error)
}

// Window loads the last Pairs question/answer exchanges of a conversation.
type Window struct {
	source MessageSource
	pairs  int
}

func NewWindow(source MessageSource, pairs int) *Window {
	if pairs <= 0 {
		pairs = 5
	}
	return &Window{source: source, pairs: pairs}
}

func (w *Window) Size() int {
	return w.pairs * 2
}

// Load returns at most Size turns, oldest first.
func (w *Window) Load(ctx context.Context, conversationID int64) ([]Turn, error) {
	msgs, err := w.source.RecentMessages(ctx, conversationID, w.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation memory: %w", err)
	}

	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		role := RoleAssistant
		if m.IsUserMessage {
			role = RoleUser
		}
		turns = append(turns, Turn{Role: role, Content: m.Content})
	}
	return turns, nil
}
