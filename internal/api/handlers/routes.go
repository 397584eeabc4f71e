package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type Router struct {
	Chat      *ChatHandler
	Documents *DocumentHandler
	WebSocket *WebSocketHandler
	Health    *HealthHandler
}

// Register mounts every route under /api/v1. The middleware runs on the API
// group only, so health checks are never rate limited.
func (r Router) Register(app *fiber.App, middleware ...fiber.Handler) {
	app.Get("/health", r.Health.Health)
	app.Get("/ready", r.Health.Ready)

	api := app.Group("/api/v1")
	for _, m := range middleware {
		api.Use(m)
	}

	chat := api.Group("/chat")
	chat.Post("/message", r.Chat.SendMessage)
	chat.Post("/conversations", r.Chat.StartConversation)
	chat.Get("/conversations", r.Chat.ListConversations)
	chat.Get("/conversations/:session_id", r.Chat.GetHistory)
	chat.Delete("/conversations/:session_id", r.Chat.DeleteConversation)
	chat.Put("/conversations/:session_id/title", r.Chat.RenameConversation)
	chat.Post("/messages/:message_id/feedback", r.Chat.SubmitFeedback)
	chat.Get("/analytics", r.Chat.Analytics)

	if r.WebSocket != nil {
		chat.Use("/ws", r.WebSocket.Upgrade)
		chat.Get("/ws", websocket.New(r.WebSocket.HandleConnection))
	}

	docs := api.Group("/documents")
	docs.Post("/upload", r.Documents.UploadDocument)
	docs.Get("/", r.Documents.ListDocuments)
	docs.Get("/stats", r.Documents.Stats)
	docs.Get("/search", r.Documents.SearchDocuments)
	docs.Get("/:id", r.Documents.GetDocument)
	docs.Delete("/:id", r.Documents.DeleteDocument)
}
