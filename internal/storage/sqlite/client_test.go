package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema(context.Background()))
	return c
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	doc := &models.Document{Title: "Remote Work Policy", Department: "HR", ContentType: "policy", FileSize: 42}
	require.NoError(t, c.CreateDocument(ctx, doc))
	require.NotZero(t, doc.ID)

	require.NoError(t, c.InsertChunk(ctx, &models.Chunk{DocumentID: doc.ID, ChunkIndex: 0, EndChar: 10, Content: "remote", VectorID: "v-0"}))
	require.NoError(t, c.InsertChunk(ctx, &models.Chunk{DocumentID: doc.ID, ChunkIndex: 1, StartChar: 8, EndChar: 20, Content: "work", VectorID: "v-1"}))

	other := &models.Document{Title: "Expense Guide", Department: "Finance", ContentType: "manual"}
	require.NoError(t, c.CreateDocument(ctx, other))

	got, err := c.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "HR", got.Department)
	assert.True(t, got.IsActive)

	listed, err := c.ListDocuments(ctx, models.DocumentFilter{Department: "HR"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, doc.ID, listed[0].ID)

	chunks, err := c.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "v-1", chunks[1].VectorID)

	stats, err := c.DocumentStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalDocuments)
	assert.Equal(t, int64(2), stats.TotalChunks)
	assert.Equal(t, map[string]int64{"HR": 1, "Finance": 1}, stats.Departments)

	require.NoError(t, c.DeactivateDocument(ctx, doc.ID))
	got, err = c.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	stats, err = c.DocumentStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalDocuments)
	assert.Zero(t, stats.TotalChunks)

	_, err = c.GetDocument(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, c.DeactivateDocument(ctx, 9999), apperr.ErrNotFound)
}

func TestGetOrCreateUser(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	u1, err := c.GetOrCreateUser(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", u1.Name)
	assert.Equal(t, "employee", u1.Role)

	u2, err := c.GetOrCreateUser(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
}

func TestConversationMessages(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	user, err := c.GetOrCreateUser(ctx, "sam@example.com")
	require.NoError(t, err)

	conv := &models.Conversation{UserID: user.ID, SessionID: "s-1"}
	require.NoError(t, c.CreateConversation(ctx, conv))
	assert.Equal(t, models.PlaceholderTitle, conv.Title)

	ts := time.Now().UTC()
	for i := 0; i < 6; i++ {
		msg := &models.Message{ConversationID: conv.ID, Content: string(rune('a' + i)), IsUserMessage: i%2 == 0, Timestamp: ts}
		if i%2 == 1 {
			score := 0.8
			msg.ConfidenceScore = &score
			msg.Sources = []models.Source{{Title: "Doc", DocumentID: 1, RelevanceScore: 0.8}}
		}
		require.NoError(t, c.InsertMessage(ctx, msg))
	}

	recent, err := c.RecentMessages(ctx, conv.ID, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, []string{"c", "d", "e", "f"}, []string{recent[0].Content, recent[1].Content, recent[2].Content, recent[3].Content})

	all, err := c.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, all, 6)
	require.Len(t, all[1].Sources, 1)
	assert.Equal(t, "Doc", all[1].Sources[0].Title)
	assert.Nil(t, all[0].ConfidenceScore)

	assert.ErrorIs(t, c.SetFeedback(ctx, all[0].ID, 1), apperr.ErrNotFound)
	require.NoError(t, c.SetFeedback(ctx, all[1].ID, -1))
	msg, err := c.GetMessage(ctx, all[1].ID)
	require.NoError(t, err)
	require.NotNil(t, msg.UserFeedback)
	assert.Equal(t, -1, *msg.UserFeedback)

	summaries, err := c.ListConversations(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(6), summaries[0].MessageCount)
	assert.NotNil(t, summaries[0].LastMessageAt)

	a, err := c.ChatAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ActiveConversations)
	assert.Equal(t, int64(6), a.TotalMessages)
	require.NotNil(t, a.AverageConfidence)
	assert.InDelta(t, 0.8, *a.AverageConfidence, 1e-9)
}

func TestSetTitleIfPlaceholderOnlyOnce(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	user, err := c.GetOrCreateUser(ctx, "kim@example.com")
	require.NoError(t, err)
	conv := &models.Conversation{UserID: user.ID, SessionID: "s-2"}
	require.NoError(t, c.CreateConversation(ctx, conv))

	changed, err := c.SetTitleIfPlaceholder(ctx, conv.ID, "First title")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.SetTitleIfPlaceholder(ctx, conv.ID, "Second title")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := c.GetConversation(ctx, user.ID, "s-2", true)
	require.NoError(t, err)
	assert.Equal(t, "First title", got.Title)

	require.NoError(t, c.DeactivateConversation(ctx, conv.ID))
	_, err = c.GetConversation(ctx, user.ID, "s-2", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = c.GetConversation(ctx, user.ID, "s-2", false)
	assert.NoError(t, err)
}
