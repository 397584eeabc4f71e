package milvus

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
)

var _ vector.Index = (*Client)(nil)

// fakeMilvus overrides the calls the index makes; anything else panics
// through the nil embedded interface.
type fakeMilvus struct {
	client.Client

	inserted   []entity.Column
	deleteExpr string
	results    []client.SearchResult
	stats      map[string]string
}

func (f *fakeMilvus) Insert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error) {
	f.inserted = columns
	return columns[0], nil
}

func (f *fakeMilvus) Delete(ctx context.Context, collName string, partitionName string, expr string) error {
	f.deleteExpr = expr
	return nil
}

func (f *fakeMilvus) GetCollectionStatistics(ctx context.Context, collName string) (map[string]string, error) {
	return f.stats, nil
}

func newTestIndex(f *fakeMilvus) *Client {
	return newWithClient(f, Config{CollectionName: "company_documents", Dimension: 3})
}

func TestUpsertGeneratesIDAndWritesMetadata(t *testing.T) {
	f := &fakeMilvus{}
	idx := newTestIndex(f)

	id, err := idx.Upsert(context.Background(), "", []float32{1, 0, 0}, "chunk text", vector.Metadata{
		DocumentID:  12,
		ChunkIndex:  3,
		Title:       "Handbook",
		Department:  "HR",
		ContentType: "policy",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	names := make([]string, len(f.inserted))
	for i, col := range f.inserted {
		names[i] = col.Name()
	}
	assert.Equal(t, []string{fieldID, fieldEmbedding, fieldText, fieldDocumentID, fieldChunkIndex, fieldTitle, fieldDepartment, fieldContentType}, names)

	docID, err := f.inserted[3].GetAsInt64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), docID)

	_, err = idx.Upsert(context.Background(), "", []float32{1, 0}, "short", vector.Metadata{})
	assert.ErrorIs(t, err, apperr.ErrDimensionMismatch)
}

func TestToMatchesConvertsScoresToDistances(t *testing.T) {
	results := []client.SearchResult{{
		ResultCount: 2,
		Scores:      []float32{0.9, 0.25},
		Fields: client.ResultSet{
			entity.NewColumnVarChar(fieldID, []string{"a", "b"}),
			entity.NewColumnVarChar(fieldText, []string{"first", "second"}),
			entity.NewColumnInt64(fieldDocumentID, []int64{1, 2}),
			entity.NewColumnInt64(fieldChunkIndex, []int64{0, 4}),
			entity.NewColumnVarChar(fieldTitle, []string{"T1", "T2"}),
			entity.NewColumnVarChar(fieldDepartment, []string{"HR", "IT"}),
			entity.NewColumnVarChar(fieldContentType, []string{"policy", "manual"}),
		},
	}}

	matches, err := toMatches(results)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 0.1, matches[0].Distance, 1e-6)
	assert.InDelta(t, 0.9, matches[0].Relevance(), 1e-6)
	assert.Equal(t, vector.Metadata{DocumentID: 2, ChunkIndex: 4, Title: "T2", Department: "IT", ContentType: "manual"}, matches[1].Metadata)
	assert.Less(t, matches[0].Distance, matches[1].Distance)
}

func TestToMatchesRequiresID(t *testing.T) {
	_, err := toMatches([]client.SearchResult{{ResultCount: 1, Scores: []float32{1}}})
	assert.ErrorIs(t, err, apperr.ErrMalformedResponse)
}

func TestToMatchesRejectsMissingScores(t *testing.T) {
	results := []client.SearchResult{{
		ResultCount: 2,
		Scores:      []float32{0.9},
		Fields: client.ResultSet{
			entity.NewColumnVarChar(fieldID, []string{"a", "b"}),
		},
	}}

	var err error
	require.NotPanics(t, func() { _, err = toMatches(results) })
	assert.ErrorIs(t, err, apperr.ErrMalformedResponse)
}

func TestDeleteByDocumentExpression(t *testing.T) {
	f := &fakeMilvus{}
	require.NoError(t, newTestIndex(f).DeleteByDocument(context.Background(), 42))
	assert.Equal(t, "document_id == 42", f.deleteExpr)
}

func TestStats(t *testing.T) {
	f := &fakeMilvus{stats: map[string]string{"row_count": "17"}}
	n, err := newTestIndex(f).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	f.stats = map[string]string{}
	_, err = newTestIndex(f).Stats(context.Background())
	assert.ErrorIs(t, err, apperr.ErrMalformedResponse)
}
