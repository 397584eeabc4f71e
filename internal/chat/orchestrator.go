// Package chat answers employee questions inside persistent conversations.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/llm"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/memory"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/metrics"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/retrieval"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

const apologyFormat = "I apologize, but I encountered an error while processing your request: %s"

type Store interface {
	GetOrCreateUser(ctx context.Context, email string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, userID int64, sessionID string, activeOnly bool) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
	DeactivateConversation(ctx context.Context, conversationID int64) error
	UpdateConversationTitle(ctx context.Context, conversationID int64, title string) error
	SetTitleIfPlaceholder(ctx context.Context, conversationID int64, title string) (bool, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
	SetFeedback(ctx context.Context, messageID int64, value int) error
	ChatAnalytics(ctx context.Context) (*models.ChatAnalytics, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filters retrieval.Filters) ([]retrieval.Result, error)
}

type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Completion, error)
}

type Memory interface {
	Load(ctx context.Context, conversationID int64) ([]memory.Turn, error)
}

type Config struct {
	TopK           int
	ExcerptLength  int
	TitleLength    int
	TitleMinLength int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 4
	}
	if c.ExcerptLength <= 0 {
		c.ExcerptLength = 200
	}
	if c.TitleLength <= 0 {
		c.TitleLength = 50
	}
	if c.TitleMinLength <= 0 {
		c.TitleMinLength = 10
	}
	return c
}

type Request struct {
	UserEmail string
	Message   string
	SessionID string
}

type Response struct {
	Response          string          `json:"response"`
	SessionID         string          `json:"session_id"`
	MessageID         *int64          `json:"message_id"`
	Sources           []models.Source `json:"sources"`
	ConfidenceScore   *float64        `json:"confidence_score"`
	ConversationTitle string          `json:"conversation_title"`
	Error             string          `json:"error,omitempty"`
}

type Orchestrator struct {
	store     Store
	retriever Retriever
	generator Generator
	memory    Memory
	cfg       Config
	locks     *sessionLocks
}

func NewOrchestrator(store Store, retriever Retriever, generator Generator, mem Memory, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     store,
		retriever: retriever,
		generator: generator,
		memory:    mem,
		cfg:       cfg.withDefaults(),
		locks:     newSessionLocks(),
	}
}

// Respond always returns a response. Failures, including panics in a
// collaborator, are reported through the apology text and the Error field;
// the question stays persisted whenever it got that far.
func (o *Orchestrator) Respond(ctx context.Context, req Request) (resp *Response) {
	start := time.Now()
	resp = &Response{SessionID: req.SessionID, Sources: []models.Source{}}

	defer func() {
		if r := recover(); r != nil {
			metrics.ChatDuration.Observe(time.Since(start).Seconds())
			o.fail(resp, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	err := o.respond(ctx, req, resp)
	metrics.ChatDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		o.fail(resp, err)
		return resp
	}

	metrics.ChatRequests.WithLabelValues("success").Inc()
	if resp.ConfidenceScore != nil {
		metrics.ConfidenceScore.Observe(*resp.ConfidenceScore)
	}

	logger.Info("Chat response generated",
		zap.String("session_id", resp.SessionID),
		zap.Int("sources", len(resp.Sources)),
		zap.Duration("latency", time.Since(start)),
	)
	return resp
}

func (o *Orchestrator) fail(resp *Response, err error) {
	logger.Error("Failed to respond",
		zap.String("session_id", resp.SessionID),
		zap.String("error_kind", apperr.KindOf(err)),
		zap.Error(err),
	)
	metrics.ChatRequests.WithLabelValues("error").Inc()

	resp.Response = fmt.Sprintf(apologyFormat, err)
	resp.Error = err.Error()
	resp.MessageID = nil
	resp.Sources = []models.Source{}
	resp.ConfidenceScore = nil
}

func (o *Orchestrator) respond(ctx context.Context, req Request, resp *Response) error {
	email := strings.TrimSpace(req.UserEmail)
	if email == "" {
		return fmt.Errorf("user email is required: %w", apperr.ErrValidation)
	}
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return fmt.Errorf("message is required: %w", apperr.ErrEmptyText)
	}

	user, err := o.store.GetOrCreateUser(ctx, email)
	if err != nil {
		return err
	}

	conv, err := o.resolveConversation(ctx, user.ID, strings.TrimSpace(req.SessionID))
	if err != nil {
		return err
	}
	resp.SessionID = conv.SessionID
	resp.ConversationTitle = conv.Title

	unlock := o.locks.lock(conv.SessionID)
	defer unlock()

	history, err := o.memory.Load(ctx, conv.ID)
	if err != nil {
		return err
	}

	if err := o.store.InsertMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Content:        question,
		IsUserMessage:  true,
	}); err != nil {
		return err
	}

	results, err := o.retriever.Retrieve(ctx, question, o.cfg.TopK, retrieval.Filters{})
	if err != nil {
		return err
	}

	snippets := make([]llm.Snippet, len(results))
	for i, r := range results {
		snippets[i] = llm.Snippet{Title: r.Metadata.Title, Department: r.Metadata.Department, Text: r.Content}
	}

	completion, err := o.generator.Generate(ctx, llm.Request{
		Snippets: snippets,
		History:  history,
		Question: question,
	})
	if err != nil {
		return err
	}
	if completion == nil {
		return fmt.Errorf("language model returned no completion: %w", apperr.ErrMalformedResponse)
	}

	sources := o.attribute(results, completion.UsedSources)
	confidence := Confidence(sources)

	answer := &models.Message{
		ConversationID:  conv.ID,
		Content:         completion.Text,
		IsUserMessage:   false,
		Sources:         sources,
		ConfidenceScore: confidence,
	}
	if err := o.store.InsertMessage(ctx, answer); err != nil {
		return err
	}

	resp.Response = completion.Text
	resp.MessageID = &answer.ID
	resp.Sources = sources
	resp.ConfidenceScore = confidence

	if conv.Title == models.PlaceholderTitle && utf8.RuneCountInString(question) > o.cfg.TitleMinLength {
		title := truncate(question, o.cfg.TitleLength)
		set, err := o.store.SetTitleIfPlaceholder(ctx, conv.ID, title)
		switch {
		case err != nil:
			logger.Warn("Failed to set conversation title", zap.String("session_id", conv.SessionID), zap.Error(err))
		case set:
			resp.ConversationTitle = title
		}
	}

	return nil
}

// resolveConversation returns the user's active conversation for sessionID
// or starts a new one under a fresh session id.
func (o *Orchestrator) resolveConversation(ctx context.Context, userID int64, sessionID string) (*models.Conversation, error) {
	if sessionID != "" {
		conv, err := o.store.GetConversation(ctx, userID, sessionID, true)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		logger.Debug("Session not found, starting a new conversation", zap.String("session_id", sessionID))
	}

	conv := &models.Conversation{UserID: userID, SessionID: uuid.New().String()}
	if err := o.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// attribute maps the cited results to sources, or every result when the
// model cited none.
func (o *Orchestrator) attribute(results []retrieval.Result, used []int) []models.Source {
	picked := results
	if len(used) > 0 {
		picked = make([]retrieval.Result, 0, len(used))
		for _, idx := range used {
			if idx >= 0 && idx < len(results) {
				picked = append(picked, results[idx])
			}
		}
	}

	sources := make([]models.Source, 0, len(picked))
	for _, r := range picked {
		sources = append(sources, models.Source{
			Title:          r.Metadata.Title,
			Department:     r.Metadata.Department,
			ContentType:    r.Metadata.ContentType,
			DocumentID:     r.Metadata.DocumentID,
			ChunkIndex:     r.Metadata.ChunkIndex,
			RelevanceScore: r.RelevanceScore,
			Excerpt:        truncate(r.Content, o.cfg.ExcerptLength),
		})
	}
	return sources
}

// Confidence is the mean relevance of sources, capped at 1. It is nil when
// there are no sources.
func Confidence(sources []models.Source) *float64 {
	if len(sources) == 0 {
		return nil
	}

	var sum float64
	for _, s := range sources {
		sum += s.RelevanceScore
	}

	mean := sum / float64(len(sources))
	if mean > 1 {
		mean = 1
	}
	return &mean
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
