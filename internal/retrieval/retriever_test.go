package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chunker"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/embedding"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/ingestion"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/sqlite"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector/memory"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
)

const dim = 128

func seededIndex(t *testing.T) (*embedding.Client, *memory.Index) {
	t.Helper()
	ctx := context.Background()
	emb := embedding.NewClient(embedding.NewHashing(dim), dim)
	idx := memory.New(dim)

	docs := []struct {
		text string
		meta vector.Metadata
	}{
		{"remote work policy allows three days per week", vector.Metadata{DocumentID: 1, Department: "HR", ContentType: "policy"}},
		{"remote work equipment stipend for home office", vector.Metadata{DocumentID: 2, Department: "IT", ContentType: "manual"}},
		{"remote work security requirements vpn", vector.Metadata{DocumentID: 3, Department: "IT", ContentType: "policy"}},
		{"quarterly revenue report", vector.Metadata{DocumentID: 4, Department: "Finance", ContentType: "report"}},
		{"parental leave policy", vector.Metadata{DocumentID: 5}},
	}
	for _, d := range docs {
		vec, err := emb.Embed(ctx, d.text)
		require.NoError(t, err)
		_, err = idx.Upsert(ctx, "", vec, d.text, d.meta)
		require.NoError(t, err)
	}
	return emb, idx
}

func TestRetrieveRanksByRelevance(t *testing.T) {
	emb, idx := seededIndex(t)
	r := NewRetriever(emb, idx, 4)

	results, err := r.Retrieve(context.Background(), "remote work policy", 3, Filters{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int64(1), results[0].Metadata.DocumentID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].RelevanceScore, results[i].RelevanceScore)
	}
}

func TestRetrieveAppliesFilters(t *testing.T) {
	emb, idx := seededIndex(t)
	r := NewRetriever(emb, idx, 4)
	ctx := context.Background()

	results, err := r.Retrieve(ctx, "remote work", 2, Filters{Department: "IT"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		assert.Equal(t, "IT", res.Metadata.Department)
	}

	results, err = r.Retrieve(ctx, "remote work", 4, Filters{Department: "IT", ContentType: "policy"})
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, int64(3), res.Metadata.DocumentID)
	}

	results, err = r.Retrieve(ctx, "parental leave", 4, Filters{Department: "Legal"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveDefaultsAndValidation(t *testing.T) {
	emb, idx := seededIndex(t)
	r := NewRetriever(emb, idx, 2)
	ctx := context.Background()

	results, err := r.Retrieve(ctx, "policy", 0, Filters{})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = r.Retrieve(ctx, "   ", 2, Filters{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	empty, err := NewRetriever(emb, memory.New(dim), 4).Retrieve(ctx, "anything", 4, Filters{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// A question about an ingested document finds that document's text.
func TestIngestThenRetrieve(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "rag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema(ctx))

	emb := embedding.NewClient(embedding.NewHashing(dim), dim)
	idx := memory.New(dim)
	c, err := chunker.New(1000, 200)
	require.NoError(t, err)
	pipeline := ingestion.NewPipeline(store, emb, idx, c)

	policy := &models.Document{Title: "Remote Work Policy", Department: "HR", ContentType: "policy"}
	require.NoError(t, store.CreateDocument(ctx, policy))
	_, err = pipeline.Ingest(ctx, ingestion.IngestRequest{
		DocumentID:  policy.ID,
		Text:        "Employees may work remotely up to 3 days per week.",
		Title:       policy.Title,
		Department:  "HR",
		ContentType: "policy",
	})
	require.NoError(t, err)

	other := &models.Document{Title: "Expenses", Department: "Finance", ContentType: "manual"}
	require.NoError(t, store.CreateDocument(ctx, other))
	_, err = pipeline.Ingest(ctx, ingestion.IngestRequest{
		DocumentID:  other.ID,
		Text:        "Submit receipts for travel expenses within thirty days.",
		Title:       other.Title,
		Department:  "Finance",
		ContentType: "manual",
	})
	require.NoError(t, err)

	results, err := NewRetriever(emb, idx, 4).Retrieve(ctx, "How many days can I work remotely?", 1, Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Contains(t, results[0].Content, "3 days per week")
	assert.Equal(t, policy.ID, results[0].Metadata.DocumentID)
	assert.Equal(t, "Remote Work Policy", results[0].Metadata.Title)
	assert.Positive(t, results[0].RelevanceScore)
}
