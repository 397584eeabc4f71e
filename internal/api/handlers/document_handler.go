package handlers

import (
	"context"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/ingestion"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/retrieval"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

type DocumentStore interface {
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	ListDocuments(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	CountChunks(ctx context.Context, documentID int64) (int64, error)
}

type DocumentHandler struct {
	pipeline  *ingestion.Pipeline
	store     DocumentStore
	retriever *retrieval.Retriever
}

func NewDocumentHandler(pipeline *ingestion.Pipeline, store DocumentStore, retriever *retrieval.Retriever) *DocumentHandler {
	return &DocumentHandler{
		pipeline:  pipeline,
		store:     store,
		retriever: retriever,
	}
}

type documentView struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Department       string `json:"department"`
	ContentType      string `json:"content_type"`
	OriginalFilename string `json:"original_filename"`
	UploadedBy       string `json:"uploaded_by"`
	FileSize         int64  `json:"file_size"`
	UploadedAt       string `json:"uploaded_at"`
	ChunkCount       *int64 `json:"chunk_count,omitempty"`
}

func toDocumentView(d *models.Document) documentView {
	return documentView{
		ID:               d.ID,
		Title:            d.Title,
		Department:       d.Department,
		ContentType:      d.ContentType,
		OriginalFilename: d.OriginalFilename,
		UploadedBy:       d.UploadedBy,
		FileSize:         d.FileSize,
		UploadedAt:       d.UploadedAt.Format(timeLayout),
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	f, err := file.Open()
	if err != nil {
		return fail(c, err, "Failed to read upload")
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return fail(c, err, "Failed to read upload")
	}

	title := c.FormValue("title")
	if strings.TrimSpace(title) == "" {
		title = file.Filename
	}

	result, err := h.pipeline.Upload(c.UserContext(), ingestion.UploadRequest{
		Filename:    file.Filename,
		Title:       title,
		Department:  c.FormValue("department"),
		ContentType: c.FormValue("content_type"),
		UploadedBy:  c.FormValue("uploaded_by"),
		Content:     content,
	})
	if err != nil {
		if result != nil && result.Document != nil {
			logger.Warn("Document partially ingested",
				zap.Int64("document_id", result.Document.ID),
				zap.Int("chunks_created", result.ChunksCreated),
				zap.Error(err),
			)
		}
		return fail(c, err, "Failed to process document")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":        "Document processed successfully",
		"document":       toDocumentView(result.Document),
		"chunks_created": result.ChunksCreated,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	filter := models.DocumentFilter{
		Department:  c.Query("department"),
		ContentType: c.Query("content_type"),
		Limit:       c.QueryInt("limit", 20),
		Offset:      c.QueryInt("offset", 0),
	}
	if filter.Limit < 1 || filter.Limit > 100 || filter.Offset < 0 {
		return badRequest(c, "limit must be 1-100 and offset non-negative")
	}

	docs, err := h.store.ListDocuments(c.UserContext(), filter)
	if err != nil {
		return fail(c, err, "Failed to list documents")
	}

	views := make([]documentView, 0, len(docs))
	for i := range docs {
		views = append(views, toDocumentView(&docs[i]))
	}

	return c.JSON(fiber.Map{
		"documents": views,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "Invalid document id")
	}

	doc, err := h.store.GetDocument(c.UserContext(), int64(id))
	if err != nil {
		return fail(c, err, "Failed to get document")
	}
	if !doc.IsActive {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}

	count, err := h.store.CountChunks(c.UserContext(), doc.ID)
	if err != nil {
		return fail(c, err, "Failed to get document")
	}

	view := toDocumentView(doc)
	view.ChunkCount = &count
	return c.JSON(view)
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "Invalid document id")
	}

	if err := h.pipeline.Remove(c.UserContext(), int64(id)); err != nil {
		return fail(c, err, "Failed to delete document")
	}

	return c.JSON(fiber.Map{
		"message":     "Document deleted",
		"document_id": id,
	})
}

func (h *DocumentHandler) SearchDocuments(c *fiber.Ctx) error {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		return badRequest(c, "q is required")
	}

	k := c.QueryInt("k", 0)
	if k < 0 || k > 50 {
		return badRequest(c, "k must be between 1 and 50")
	}

	results, err := h.retriever.Retrieve(c.UserContext(), query, k, retrieval.Filters{
		Department:  c.Query("department"),
		ContentType: c.Query("content_type"),
	})
	if err != nil {
		return fail(c, err, "Failed to search documents")
	}

	hits := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		hits = append(hits, fiber.Map{
			"content":         r.Content,
			"relevance_score": r.RelevanceScore,
			"document_id":     r.Metadata.DocumentID,
			"chunk_index":     r.Metadata.ChunkIndex,
			"title":           r.Metadata.Title,
			"department":      r.Metadata.Department,
			"content_type":    r.Metadata.ContentType,
		})
	}

	return c.JSON(fiber.Map{
		"query":   query,
		"results": hits,
	})
}

func (h *DocumentHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.pipeline.Stats(c.UserContext())
	if err != nil {
		return fail(c, err, "Failed to load document stats")
	}

	return c.JSON(stats)
}
