// Package milvus stores chunk embeddings in a Milvus (or Zilliz Cloud)
// collection.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

const (
	fieldID          = "chunk_id"
	fieldEmbedding   = "embedding"
	fieldText        = "text"
	fieldDocumentID  = "document_id"
	fieldChunkIndex  = "chunk_index"
	fieldTitle       = "title"
	fieldDepartment  = "department"
	fieldContentType = "content_type"
)

var outputFields = []string{fieldID, fieldText, fieldDocumentID, fieldChunkIndex, fieldTitle, fieldDepartment, fieldContentType}

type Config struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	Dimension      int
	NList          int
	NProbe         int
}

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
	nlist          int
	nprobe         int
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Endpoint,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("collection", cfg.CollectionName),
	)

	return newWithClient(c, cfg), nil
}

func newWithClient(c client.Client, cfg Config) *Client {
	nlist, nprobe := cfg.NList, cfg.NProbe
	if nlist <= 0 {
		nlist = 1024
	}
	if nprobe <= 0 {
		nprobe = 16
	}
	return &Client{
		client:         c,
		collectionName: cfg.CollectionName,
		vectorDim:      cfg.Dimension,
		nlist:          nlist,
		nprobe:         nprobe,
	}
}

func (m *Client) Close() error {
	return m.client.Close()
}

// EnsureCollection creates, indexes and loads the collection when it does
// not exist yet.
func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return m.load(ctx)
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Company document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(m.vectorDim)},
			},
			{
				Name:       fieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:     fieldDocumentID,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldChunkIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       fieldTitle,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       fieldDepartment,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       fieldContentType,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber, client.WithConsistencyLevel(entity.ClStrong))
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, m.nlist)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	logger.Info("Collection created", zap.String("collection", m.collectionName))
	return m.load(ctx)
}

func (m *Client) load(ctx context.Context) error {
	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

func (m *Client) Upsert(ctx context.Context, id string, vec []float32, text string, meta vector.Metadata) (string, error) {
	if len(vec) != m.vectorDim {
		return "", fmt.Errorf("vector has %d dimensions, collection has %d: %w", len(vec), m.vectorDim, apperr.ErrDimensionMismatch)
	}
	if id == "" {
		id = uuid.NewString()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar(fieldID, []string{id}),
		entity.NewColumnFloatVector(fieldEmbedding, m.vectorDim, [][]float32{vec}),
		entity.NewColumnVarChar(fieldText, []string{text}),
		entity.NewColumnInt64(fieldDocumentID, []int64{meta.DocumentID}),
		entity.NewColumnInt64(fieldChunkIndex, []int64{int64(meta.ChunkIndex)}),
		entity.NewColumnVarChar(fieldTitle, []string{meta.Title}),
		entity.NewColumnVarChar(fieldDepartment, []string{meta.Department}),
		entity.NewColumnVarChar(fieldContentType, []string{meta.ContentType}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert chunk: %w", err)
	}

	logger.Debug("Chunk inserted into vector DB",
		zap.String("chunk_id", id),
		zap.Int64("document_id", meta.DocumentID),
	)
	return id, nil
}

func (m *Client) Query(ctx context.Context, vec []float32, k int) ([]vector.Match, error) {
	if len(vec) != m.vectorDim {
		return nil, fmt.Errorf("query has %d dimensions, collection has %d: %w", len(vec), m.vectorDim, apperr.ErrDimensionMismatch)
	}
	if k <= 0 {
		return []vector.Match{}, nil
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(m.nprobe)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(vec)},
		fieldEmbedding,
		entity.COSINE,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches, err := toMatches(results)
	if err != nil {
		return nil, err
	}

	logger.Debug("Vector search completed", zap.Int("topK", k), zap.Int("results", len(matches)))
	return matches, nil
}

// toMatches flattens search results, turning COSINE scores (higher is
// closer) into distances.
func toMatches(results []client.SearchResult) ([]vector.Match, error) {
	matches := make([]vector.Match, 0)
	for _, sr := range results {
		if sr.Err != nil {
			return nil, fmt.Errorf("failed to search: %w", sr.Err)
		}
		if len(sr.Scores) < sr.ResultCount {
			return nil, fmt.Errorf("search returned %d scores for %d results: %w", len(sr.Scores), sr.ResultCount, apperr.ErrMalformedResponse)
		}

		for i := 0; i < sr.ResultCount; i++ {
			id, err := stringAt(sr.Fields, fieldID, i)
			if err != nil {
				return nil, err
			}
			text, _ := stringAt(sr.Fields, fieldText, i)
			title, _ := stringAt(sr.Fields, fieldTitle, i)
			department, _ := stringAt(sr.Fields, fieldDepartment, i)
			contentType, _ := stringAt(sr.Fields, fieldContentType, i)
			documentID, _ := int64At(sr.Fields, fieldDocumentID, i)
			chunkIndex, _ := int64At(sr.Fields, fieldChunkIndex, i)

			matches = append(matches, vector.Match{
				ID:       id,
				Text:     text,
				Distance: 1 - float64(sr.Scores[i]),
				Metadata: vector.Metadata{
					DocumentID:  documentID,
					ChunkIndex:  int(chunkIndex),
					Title:       title,
					Department:  department,
					ContentType: contentType,
				},
			})
		}
	}
	return matches, nil
}

func stringAt(fields client.ResultSet, name string, i int) (string, error) {
	col := fields.GetColumn(name)
	if col == nil {
		return "", fmt.Errorf("search result lacks field %q: %w", name, apperr.ErrMalformedResponse)
	}
	v, err := col.GetAsString(i)
	if err != nil {
		return "", fmt.Errorf("failed to read field %q: %w", name, err)
	}
	return v, nil
}

func int64At(fields client.ResultSet, name string, i int) (int64, error) {
	col := fields.GetColumn(name)
	if col == nil {
		return 0, fmt.Errorf("search result lacks field %q: %w", name, apperr.ErrMalformedResponse)
	}
	v, err := col.GetAsInt64(i)
	if err != nil {
		return 0, fmt.Errorf("failed to read field %q: %w", name, err)
	}
	return v, nil
}

func (m *Client) DeleteByDocument(ctx context.Context, documentID int64) error {
	expr := fmt.Sprintf("%s == %d", fieldDocumentID, documentID)
	if err := m.client.Delete(ctx, m.collectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}

	logger.Info("Document vectors deleted", zap.Int64("document_id", documentID))
	return nil
}

// Stats reports the collection row count. Milvus counts deleted rows until
// their segments are compacted.
func (m *Client) Stats(ctx context.Context) (int64, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}

	n, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse row count %q: %w", stats["row_count"], apperr.ErrMalformedResponse)
	}
	return n, nil
}
