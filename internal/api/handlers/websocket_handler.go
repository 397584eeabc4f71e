package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chat"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

type WebSocketHandler struct {
	orchestrator *chat.Orchestrator
	originOK     func(origin string) bool
}

func NewWebSocketHandler(orchestrator *chat.Orchestrator, originOK func(origin string) bool) *WebSocketHandler {
	if originOK == nil {
		originOK = func(string) bool { return true }
	}
	return &WebSocketHandler{
		orchestrator: orchestrator,
		originOK:     originOK,
	}
}

// Upgrade admits websocket upgrades from allowed origins only.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if !h.originOK(c.Get(fiber.HeaderOrigin)) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Origin not allowed"})
	}
	return c.Next()
}

type wsInbound struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	UserEmail string `json:"user_email"`
	SessionID string `json:"session_id"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsInbound
		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "message" {
			continue
		}

		if err := h.streamResponse(ctx, c, msg); err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			break
		}
	}
}

// streamResponse sends the answer word by word, then a completion frame with
// the attribution. A failed answer is sent as an error frame.
func (h *WebSocketHandler) streamResponse(ctx context.Context, c *websocket.Conn, msg wsInbound) error {
	if err := h.sendChunk(c, "status", "Processing message..."); err != nil {
		return err
	}

	resp := h.orchestrator.Respond(ctx, chat.Request{
		UserEmail: msg.UserEmail,
		Message:   msg.Content,
		SessionID: msg.SessionID,
	})

	if resp.Error != "" {
		return c.WriteJSON(fiber.Map{
			"type":       "error",
			"error":      resp.Error,
			"content":    resp.Response,
			"session_id": resp.SessionID,
		})
	}

	words := splitIntoWords(resp.Response)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(fiber.Map{
		"type":               "complete",
		"session_id":         resp.SessionID,
		"message_id":         resp.MessageID,
		"sources":            resp.Sources,
		"confidence_score":   resp.ConfidenceScore,
		"conversation_title": resp.ConversationTitle,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(fiber.Map{
		"type":    msgType,
		"content": content,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	var current []rune

	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}

	for _, char := range text {
		switch char {
		case ' ':
			flush()
		case '\n':
			flush()
			words = append(words, "\n")
		default:
			current = append(current, char)
		}
	}
	flush()

	return words
}
