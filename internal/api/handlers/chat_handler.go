package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chat"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

type ChatHandler struct {
	orchestrator *chat.Orchestrator
}

func NewChatHandler(orchestrator *chat.Orchestrator) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
	}
}

type conversationView struct {
	SessionID     string  `json:"session_id"`
	Title         string  `json:"title"`
	StartedAt     string  `json:"started_at"`
	LastMessageAt *string `json:"last_message_at"`
	MessageCount  *int64  `json:"message_count,omitempty"`
}

type messageView struct {
	ID              int64           `json:"id"`
	Content         string          `json:"content"`
	IsUserMessage   bool            `json:"is_user_message"`
	Timestamp       string          `json:"timestamp"`
	Sources         []models.Source `json:"sources"`
	ConfidenceScore *float64        `json:"confidence_score"`
	UserFeedback    *int            `json:"user_feedback"`
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func toConversationView(conv *models.Conversation) conversationView {
	v := conversationView{
		SessionID: conv.SessionID,
		Title:     conv.Title,
		StartedAt: conv.StartedAt.Format(timeLayout),
	}
	if conv.LastMessageAt != nil {
		s := conv.LastMessageAt.Format(timeLayout)
		v.LastMessageAt = &s
	}
	return v
}

func toMessageView(m models.Message) messageView {
	sources := m.Sources
	if sources == nil {
		sources = []models.Source{}
	}
	return messageView{
		ID:              m.ID,
		Content:         m.Content,
		IsUserMessage:   m.IsUserMessage,
		Timestamp:       m.Timestamp.Format(timeLayout),
		Sources:         sources,
		ConfidenceScore: m.ConfidenceScore,
		UserFeedback:    m.UserFeedback,
	}
}

// SendMessage answers a question. It always replies 200 with the chat
// response; failures are carried in its error field.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Message   string `json:"message"`
		UserEmail string `json:"user_email"`
		SessionID string `json:"session_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	resp := h.orchestrator.Respond(c.UserContext(), chat.Request{
		UserEmail: req.UserEmail,
		Message:   req.Message,
		SessionID: req.SessionID,
	})

	return c.JSON(resp)
}

func (h *ChatHandler) StartConversation(c *fiber.Ctx) error {
	var req struct {
		UserEmail string `json:"user_email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	conv, err := h.orchestrator.StartConversation(c.UserContext(), req.UserEmail)
	if err != nil {
		return fail(c, err, "Failed to start conversation")
	}

	return c.Status(fiber.StatusCreated).JSON(toConversationView(conv))
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	email := c.Query("user_email")
	if strings.TrimSpace(email) == "" {
		return badRequest(c, "user_email is required")
	}

	convs, err := h.orchestrator.ListConversations(c.UserContext(), email)
	if err != nil {
		return fail(c, err, "Failed to list conversations")
	}

	views := make([]conversationView, 0, len(convs))
	for i := range convs {
		v := toConversationView(&convs[i].Conversation)
		count := convs[i].MessageCount
		v.MessageCount = &count
		views = append(views, v)
	}

	return c.JSON(fiber.Map{
		"conversations": views,
	})
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	conv, msgs, err := h.orchestrator.History(c.UserContext(), c.Query("user_email"), c.Params("session_id"))
	if err != nil {
		return fail(c, err, "Failed to load conversation")
	}

	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toMessageView(m))
	}

	return c.JSON(fiber.Map{
		"conversation": toConversationView(conv),
		"messages":     views,
	})
}

func (h *ChatHandler) DeleteConversation(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if err := h.orchestrator.DeactivateConversation(c.UserContext(), c.Query("user_email"), sessionID); err != nil {
		return fail(c, err, "Failed to delete conversation")
	}

	return c.JSON(fiber.Map{
		"message":    "Conversation deleted",
		"session_id": sessionID,
	})
}

func (h *ChatHandler) RenameConversation(c *fiber.Ctx) error {
	var req struct {
		UserEmail string `json:"user_email"`
		Title     string `json:"title"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	conv, err := h.orchestrator.RenameConversation(c.UserContext(), req.UserEmail, c.Params("session_id"), req.Title)
	if err != nil {
		return fail(c, err, "Failed to rename conversation")
	}

	return c.JSON(toConversationView(conv))
}

func (h *ChatHandler) SubmitFeedback(c *fiber.Ctx) error {
	messageID, err := c.ParamsInt("message_id")
	if err != nil || messageID <= 0 {
		return badRequest(c, "Invalid message id")
	}

	var req struct {
		Feedback *int `json:"feedback"`
	}
	if err := c.BodyParser(&req); err != nil || req.Feedback == nil {
		return badRequest(c, "feedback is required")
	}

	if err := h.orchestrator.SubmitFeedback(c.UserContext(), int64(messageID), *req.Feedback); err != nil {
		return fail(c, err, "Failed to submit feedback")
	}

	return c.JSON(fiber.Map{
		"message":    "Feedback recorded",
		"message_id": messageID,
		"feedback":   *req.Feedback,
	})
}

func (h *ChatHandler) Analytics(c *fiber.Ctx) error {
	analytics, err := h.orchestrator.Analytics(c.UserContext())
	if err != nil {
		return fail(c, err, "Failed to load analytics")
	}

	return c.JSON(analytics)
}
