package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chunker"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/embedding"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/ingestion"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/llm"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/memory"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/retrieval"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/sqlite"
	vmemory "github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector/memory"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
)

const (
	dim   = 128
	email = "jane.doe@example.com"
)

type fakeGenerator struct {
	mu       sync.Mutex
	text     string
	used     []int
	err      error
	requests []llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	text := f.text
	if text == "" {
		text = "Answer to: " + req.Question
	}
	return &llm.Completion{Text: text, UsedSources: f.used}, nil
}

func (f *fakeGenerator) last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type harness struct {
	store    *sqlite.Client
	pipeline *ingestion.Pipeline
	gen      *fakeGenerator
	orch     *Orchestrator
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema(ctx))

	emb := embedding.NewClient(embedding.NewHashing(dim), dim)
	idx := vmemory.New(dim)
	ch, err := chunker.New(1000, 200)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	h := &harness{
		store:    store,
		pipeline: ingestion.NewPipeline(store, emb, idx, ch),
		gen:      gen,
	}
	h.orch = NewOrchestrator(store, retrieval.NewRetriever(emb, idx, cfg.TopK), gen, memory.NewWindow(store, 5), cfg)
	return h
}

func (h *harness) upload(t *testing.T, title, department, text string) int64 {
	t.Helper()
	res, err := h.pipeline.Upload(context.Background(), ingestion.UploadRequest{
		Filename:    strings.ToLower(strings.ReplaceAll(title, " ", "_")) + ".txt",
		Title:       title,
		Department:  department,
		ContentType: "policy",
		UploadedBy:  "admin@example.com",
		Content:     []byte(text),
	})
	require.NoError(t, err)
	return res.Document.ID
}

func TestRespondAttributesAllRetrievedChunksWhenUncited(t *testing.T) {
	h := newHarness(t, Config{TopK: 4})
	docID := h.upload(t, "Remote Work Policy", "HR", "Employees may work from home two days per week.")

	resp := h.orch.Respond(context.Background(), Request{UserEmail: email, Message: "remote work days"})

	assert.Empty(t, resp.Error)
	assert.NotEmpty(t, resp.SessionID)
	require.NotNil(t, resp.MessageID)
	require.Len(t, resp.Sources, 1)

	src := resp.Sources[0]
	assert.Equal(t, docID, src.DocumentID)
	assert.Equal(t, "Remote Work Policy", src.Title)
	assert.Equal(t, "Employees may work from home two days per week.", src.Excerpt)
	require.NotNil(t, resp.ConfidenceScore)
	assert.InDelta(t, src.RelevanceScore, *resp.ConfidenceScore, 1e-9)
	assert.Greater(t, *resp.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, *resp.ConfidenceScore, 1.0)

	req := h.gen.last()
	require.Len(t, req.Snippets, 1)
	assert.Equal(t, "remote work days", req.Question)
	assert.Empty(t, req.History)
}

func TestRespondAttributesOnlyCitedChunks(t *testing.T) {
	h := newHarness(t, Config{TopK: 2})
	h.upload(t, "Remote Work Policy", "HR", "Remote work is allowed two days per week.")
	h.upload(t, "Remote Equipment", "IT", "Remote work equipment is provided by IT.")
	h.gen.used = []int{1}

	resp := h.orch.Respond(context.Background(), Request{UserEmail: email, Message: "remote work"})
	require.Empty(t, resp.Error)

	snippets := h.gen.last().Snippets
	require.Len(t, snippets, 2)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, snippets[1].Title, resp.Sources[0].Title)
	require.NotNil(t, resp.ConfidenceScore)
	assert.InDelta(t, resp.Sources[0].RelevanceScore, *resp.ConfidenceScore, 1e-9)
}

func TestRespondWithoutDocumentsHasNoConfidence(t *testing.T) {
	h := newHarness(t, Config{})

	resp := h.orch.Respond(context.Background(), Request{UserEmail: email, Message: "anything at all?"})

	assert.Empty(t, resp.Error)
	assert.Empty(t, resp.Sources)
	assert.Nil(t, resp.ConfidenceScore)
	assert.NotNil(t, resp.MessageID)
}

func TestRespondAlwaysResponds(t *testing.T) {
	h := newHarness(t, Config{})
	h.upload(t, "Remote Work Policy", "HR", "Employees may work from home two days per week.")
	h.gen.err = errors.New("model exploded")

	resp := h.orch.Respond(context.Background(), Request{UserEmail: email, Message: "How many remote days?"})
	require.NotNil(t, resp)

	assert.Equal(t, "I apologize, but I encountered an error while processing your request: model exploded", resp.Response)
	assert.Equal(t, "model exploded", resp.Error)
	assert.Empty(t, resp.Sources)
	assert.NotNil(t, resp.Sources)
	assert.Nil(t, resp.ConfidenceScore)
	assert.Nil(t, resp.MessageID)
	require.NotEmpty(t, resp.SessionID)

	_, msgs, err := h.orch.History(context.Background(), email, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "How many remote days?", msgs[0].Content)
	assert.True(t, msgs[0].IsUserMessage)
}

type failingRetriever struct{ err error }

func (f failingRetriever) Retrieve(context.Context, string, int, retrieval.Filters) ([]retrieval.Result, error) {
	return nil, f.err
}

type generatorFunc func(ctx context.Context, req llm.Request) (*llm.Completion, error)

func (f generatorFunc) Generate(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	return f(ctx, req)
}

func assertFailedResponse(t *testing.T, h *harness, resp *Response, question string) {
	t.Helper()
	require.NotNil(t, resp)
	assert.True(t, strings.HasPrefix(resp.Response, "I apologize"))
	assert.NotEmpty(t, resp.Error)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Nil(t, resp.ConfidenceScore)
	assert.Nil(t, resp.MessageID)
	require.NotEmpty(t, resp.SessionID)

	_, msgs, err := h.orch.History(context.Background(), email, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, question, msgs[0].Content)
	assert.True(t, msgs[0].IsUserMessage)
}

func TestRespondSurvivesRetrievalFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.orch.retriever = failingRetriever{err: fmt.Errorf("vector search: %w", apperr.ErrProviderUnavailable)}

	resp := h.orch.Respond(context.Background(), Request{UserEmail: email, Message: "How many remote days?"})

	assertFailedResponse(t, h, resp, "How many remote days?")
	assert.Contains(t, resp.Error, "vector search")
	assert.Empty(t, h.gen.requests)
}

func TestRespondSurvivesMisbehavingGenerator(t *testing.T) {
	tests := []struct {
		name      string
		generator Generator
		wantError string
	}{
		{
			name: "nil completion",
			generator: generatorFunc(func(context.Context, llm.Request) (*llm.Completion, error) {
				return nil, nil
			}),
			wantError: "no completion",
		},
		{
			name: "panic",
			generator: generatorFunc(func(context.Context, llm.Request) (*llm.Completion, error) {
				panic("index out of range")
			}),
			wantError: "index out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			h.upload(t, "Remote Work Policy", "HR", "Employees may work from home two days per week.")
			h.orch.generator = tt.generator

			var resp *Response
			require.NotPanics(t, func() {
				resp = h.orch.Respond(context.Background(), Request{UserEmail: email, Message: "How many remote days?"})
			})

			assertFailedResponse(t, h, resp, "How many remote days?")
			assert.Contains(t, resp.Error, tt.wantError)
			assert.Zero(t, h.orch.locks.size())
		})
	}
}

func TestRespondRejectsInvalidInputWithoutPanicking(t *testing.T) {
	h := newHarness(t, Config{})

	tests := []struct {
		name string
		req  Request
	}{
		{"blank message", Request{UserEmail: email, Message: "   "}},
		{"missing email", Request{Message: "hello there"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.orch.Respond(context.Background(), tt.req)
			require.NotNil(t, resp)
			assert.NotEmpty(t, resp.Error)
			assert.True(t, strings.HasPrefix(resp.Response, "I apologize"))
			assert.Nil(t, resp.ConfidenceScore)
		})
	}
	assert.Empty(t, h.gen.requests)
}

func TestConversationContinuity(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	first := h.orch.Respond(ctx, Request{UserEmail: email, Message: "first question"})
	require.Empty(t, first.Error)

	second := h.orch.Respond(ctx, Request{UserEmail: email, Message: "second question", SessionID: first.SessionID})
	require.Empty(t, second.Error)
	assert.Equal(t, first.SessionID, second.SessionID)

	third := h.orch.Respond(ctx, Request{UserEmail: email, Message: "third question", SessionID: first.SessionID})
	require.Empty(t, third.Error)

	history := h.gen.last().History
	require.Len(t, history, 4)
	assert.Equal(t, memory.Turn{Role: memory.RoleUser, Content: "first question"}, history[0])
	assert.Equal(t, memory.Turn{Role: memory.RoleAssistant, Content: "Answer to: first question"}, history[1])
	assert.Equal(t, memory.Turn{Role: memory.RoleUser, Content: "second question"}, history[2])
	assert.Equal(t, memory.Turn{Role: memory.RoleAssistant, Content: "Answer to: second question"}, history[3])
}

func TestRespondStartsFreshSessionForUnknownOrForeignSession(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	unknown := h.orch.Respond(ctx, Request{UserEmail: email, Message: "hello", SessionID: "does-not-exist"})
	require.Empty(t, unknown.Error)
	assert.NotEqual(t, "does-not-exist", unknown.SessionID)

	foreign := h.orch.Respond(ctx, Request{UserEmail: "someone.else@example.com", Message: "hello", SessionID: unknown.SessionID})
	require.Empty(t, foreign.Error)
	assert.NotEqual(t, unknown.SessionID, foreign.SessionID)
	assert.Empty(t, h.gen.last().History)

	require.NoError(t, h.orch.DeactivateConversation(ctx, email, unknown.SessionID))
	revived := h.orch.Respond(ctx, Request{UserEmail: email, Message: "hello again", SessionID: unknown.SessionID})
	assert.NotEqual(t, unknown.SessionID, revived.SessionID)
}

func TestTitleAssignment(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	first := h.orch.Respond(ctx, Request{UserEmail: email, Message: "What is our remote work policy and how many days are allowed?"})
	require.Empty(t, first.Error)
	want := "What is our remote work policy and how many days a..."
	assert.Equal(t, want, first.ConversationTitle)

	second := h.orch.Respond(ctx, Request{UserEmail: email, Message: "And what about contractors working abroad?", SessionID: first.SessionID})
	require.Empty(t, second.Error)
	assert.Equal(t, want, second.ConversationTitle)

	conv, _, err := h.orch.History(ctx, email, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, want, conv.Title)
}

func TestShortQuestionKeepsPlaceholderTitle(t *testing.T) {
	h := newHarness(t, Config{})

	resp := h.orch.Respond(context.Background(), Request{UserEmail: email, Message: "hi there"})
	require.Empty(t, resp.Error)
	assert.Equal(t, models.PlaceholderTitle, resp.ConversationTitle)

	resp = h.orch.Respond(context.Background(), Request{UserEmail: email, Message: "Who approves travel?", SessionID: resp.SessionID})
	assert.Equal(t, "Who approves travel?", resp.ConversationTitle)
}

func TestExcerptIsTruncated(t *testing.T) {
	h := newHarness(t, Config{ExcerptLength: 20})
	h.upload(t, "Handbook", "HR", "Employees may work from home two days per week after probation.")

	resp := h.orch.Respond(context.Background(), Request{UserEmail: email, Message: "work from home"})
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "Employees may work f...", resp.Sources[0].Excerpt)
}

func TestConfidence(t *testing.T) {
	assert.Nil(t, Confidence(nil))

	got := Confidence([]models.Source{{RelevanceScore: 0.5}, {RelevanceScore: 0.7}})
	require.NotNil(t, got)
	assert.InDelta(t, 0.6, *got, 1e-9)

	got = Confidence([]models.Source{{RelevanceScore: 1.2}, {RelevanceScore: 1.0}})
	require.NotNil(t, got)
	assert.Equal(t, 1.0, *got)

	got = Confidence([]models.Source{{RelevanceScore: -0.2}})
	require.NotNil(t, got)
	assert.InDelta(t, -0.2, *got, 1e-9)
}

func TestConversationManagement(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	convs, err := h.orch.ListConversations(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, convs)

	started, err := h.orch.StartConversation(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, models.PlaceholderTitle, started.Title)

	resp := h.orch.Respond(ctx, Request{UserEmail: email, Message: "hi there", SessionID: started.SessionID})
	require.Empty(t, resp.Error)
	assert.Equal(t, started.SessionID, resp.SessionID)

	convs, err = h.orch.ListConversations(ctx, email)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, int64(2), convs[0].MessageCount)

	_, err = h.orch.RenameConversation(ctx, email, started.SessionID, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = h.orch.RenameConversation(ctx, email, started.SessionID, strings.Repeat("x", 256))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	renamed, err := h.orch.RenameConversation(ctx, email, started.SessionID, "  Leave questions ")
	require.NoError(t, err)
	assert.Equal(t, "Leave questions", renamed.Title)

	assert.ErrorIs(t, h.orch.SubmitFeedback(ctx, *resp.MessageID, 2), apperr.ErrValidation)
	require.NoError(t, h.orch.SubmitFeedback(ctx, *resp.MessageID, -1))

	_, msgs, err := h.orch.History(ctx, email, started.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.ErrorIs(t, h.orch.SubmitFeedback(ctx, msgs[0].ID, 1), apperr.ErrNotFound)
	require.NotNil(t, msgs[1].UserFeedback)
	assert.Equal(t, -1, *msgs[1].UserFeedback)

	analytics, err := h.orch.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), analytics.ActiveConversations)
	assert.Equal(t, int64(2), analytics.TotalMessages)

	require.NoError(t, h.orch.DeactivateConversation(ctx, email, started.SessionID))
	_, _, err = h.orch.History(ctx, email, started.SessionID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, h.orch.DeactivateConversation(ctx, email, started.SessionID), apperr.ErrNotFound)

	convs, err = h.orch.ListConversations(ctx, email)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestSessionLocksSerializeAndRelease(t *testing.T) {
	locks := newSessionLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("session")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Zero(t, locks.size())
}
