// Package ingestion chunks, embeds and indexes document text.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chunker"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/extract"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/metrics"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	DeactivateDocument(ctx context.Context, id int64) error
	InsertChunk(ctx context.Context, chunk *models.Chunk) error
	ListDocuments(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	ListChunks(ctx context.Context, documentID int64) ([]models.Chunk, error)
	DocumentStats(ctx context.Context) (*models.DocumentStats, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Pipeline struct {
	store    Store
	embedder Embedder
	index    vector.Index
	chunker  *chunker.Chunker
}

func NewPipeline(store Store, embedder Embedder, index vector.Index, c *chunker.Chunker) *Pipeline {
	return &Pipeline{
		store:    store,
		embedder: embedder,
		index:    index,
		chunker:  c,
	}
}

type IngestRequest struct {
	DocumentID  int64
	Text        string
	Title       string
	Department  string
	ContentType string
}

// Ingest splits the text of an existing, active document and stores every
// piece in the vector index and as a chunk row, in order. When a step fails
// the chunks already written stay in place and their count is returned with
// the error.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	doc, err := p.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return 0, err
	}
	if !doc.IsActive {
		return 0, fmt.Errorf("document %d is inactive: %w", req.DocumentID, apperr.ErrNotFound)
	}
	if strings.TrimSpace(req.Text) == "" {
		return 0, fmt.Errorf("document %d: %w", req.DocumentID, apperr.ErrEmptyText)
	}

	pieces := p.chunker.Split(req.Text)
	logger.Info("Document chunked",
		zap.Int64("document_id", req.DocumentID),
		zap.Int("chunks", len(pieces)),
	)

	written := 0
	for _, piece := range pieces {
		if err := p.ingestPiece(ctx, req, piece); err != nil {
			status := "failed"
			if written > 0 {
				status = "partial"
			}
			metrics.DocumentsIngested.WithLabelValues(status).Inc()
			logger.Error("Ingestion stopped",
				zap.Int64("document_id", req.DocumentID),
				zap.Int("chunk_index", piece.Index),
				zap.Int("written", written),
				zap.Error(err),
			)
			return written, fmt.Errorf("failed to ingest chunk %d of document %d: %w", piece.Index, req.DocumentID, err)
		}
		written++
		metrics.ChunksIngested.Inc()
	}

	metrics.DocumentsIngested.WithLabelValues("success").Inc()
	logger.Info("Document ingested",
		zap.Int64("document_id", req.DocumentID),
		zap.Int("chunks", written),
	)

	return written, nil
}

func (p *Pipeline) ingestPiece(ctx context.Context, req IngestRequest, piece chunker.Piece) error {
	vec, err := p.embedder.Embed(ctx, piece.Text)
	if err != nil {
		return err
	}

	vectorID, err := p.index.Upsert(ctx, "", vec, piece.Text, vector.Metadata{
		DocumentID:  req.DocumentID,
		ChunkIndex:  piece.Index,
		Title:       req.Title,
		Department:  req.Department,
		ContentType: req.ContentType,
	})
	if err != nil {
		return err
	}

	return p.store.InsertChunk(ctx, &models.Chunk{
		DocumentID: req.DocumentID,
		ChunkIndex: piece.Index,
		StartChar:  piece.Start,
		EndChar:    piece.End,
		Content:    piece.Text,
		VectorID:   vectorID,
	})
}

type UploadRequest struct {
	Filename    string
	Title       string
	Department  string
	ContentType string
	UploadedBy  string
	Content     []byte
}

type UploadResult struct {
	Document      *models.Document
	ChunksCreated int
}

// Upload extracts the text of a file, records the document and ingests it.
// A partially ingested document keeps its row; the result still reports how
// many chunks made it.
func (p *Pipeline) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("empty file: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", apperr.ErrValidation)
	}

	text, err := extract.Text(req.Filename, req.Content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text extracted from %s: %w", req.Filename, apperr.ErrEmptyText)
	}

	doc := &models.Document{
		Title:            strings.TrimSpace(req.Title),
		Department:       req.Department,
		ContentType:      req.ContentType,
		OriginalFilename: req.Filename,
		UploadedBy:       req.UploadedBy,
		FileSize:         int64(len(req.Content)),
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	n, err := p.Ingest(ctx, IngestRequest{
		DocumentID:  doc.ID,
		Text:        text,
		Title:       doc.Title,
		Department:  doc.Department,
		ContentType: doc.ContentType,
	})
	result := &UploadResult{Document: doc, ChunksCreated: n}
	if err != nil {
		return result, err
	}
	return result, nil
}

// Remove deletes a document's vectors and then soft-deletes its row, so a
// failure leaves the document visible and the call can be repeated.
func (p *Pipeline) Remove(ctx context.Context, documentID int64) error {
	if _, err := p.store.GetDocument(ctx, documentID); err != nil {
		return err
	}

	if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete vectors of document %d: %w", documentID, err)
	}

	if err := p.store.DeactivateDocument(ctx, documentID); err != nil {
		return err
	}

	logger.Info("Document removed", zap.Int64("document_id", documentID))
	return nil
}

// Stats combines relational counts with the vector index size. An
// unreachable index is logged and reported as zero vectors.
func (p *Pipeline) Stats(ctx context.Context) (*models.DocumentStats, error) {
	stats, err := p.store.DocumentStats(ctx)
	if err != nil {
		return nil, err
	}

	n, err := p.index.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		logger.Warn("Vector index stats unavailable", zap.Error(err))
	}
	stats.VectorChunks = n

	return stats, nil
}

// Reindex loads the stored chunks of every active document into an empty
// index under their recorded vector ids. It returns the number of vectors
// written.
func (p *Pipeline) Reindex(ctx context.Context) (int, error) {
	const pageSize = 100
	written := 0

	for offset := 0; ; offset += pageSize {
		docs, err := p.store.ListDocuments(ctx, models.DocumentFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return written, err
		}

		for i := range docs {
			doc := &docs[i]
			chunks, err := p.store.ListChunks(ctx, doc.ID)
			if err != nil {
				return written, err
			}

			for _, ch := range chunks {
				vec, err := p.embedder.Embed(ctx, ch.Content)
				if err != nil {
					return written, fmt.Errorf("failed to embed chunk %d of document %d: %w", ch.ChunkIndex, doc.ID, err)
				}

				meta := vector.Metadata{
					DocumentID:  doc.ID,
					ChunkIndex:  ch.ChunkIndex,
					Title:       doc.Title,
					Department:  doc.Department,
					ContentType: doc.ContentType,
				}
				if _, err := p.index.Upsert(ctx, ch.VectorID, vec, ch.Content, meta); err != nil {
					return written, fmt.Errorf("failed to index chunk %d of document %d: %w", ch.ChunkIndex, doc.ID, err)
				}
				written++
			}
		}

		if len(docs) < pageSize {
			break
		}
	}

	logger.Info("Vector index rebuilt from stored chunks", zap.Int("vectors", written))
	return written, nil
}
