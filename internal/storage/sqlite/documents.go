package sqlite

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

const documentColumns = `id, title, department, content_type, COALESCE(original_filename, ''), COALESCE(uploaded_by, ''), file_size, is_active, uploaded_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var isActive int
	var uploadedAt, updatedAt int64

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Department,
		&doc.ContentType,
		&doc.OriginalFilename,
		&doc.UploadedBy,
		&doc.FileSize,
		&isActive,
		&uploadedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.IsActive = isActive == 1
	doc.UploadedAt = fromMillis(uploadedAt)
	doc.UpdatedAt = fromMillis(updatedAt)
	return &doc, nil
}

// CreateDocument inserts doc as active and fills in its ID and timestamps.
func (c *Client) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO documents (title, department, content_type, original_filename, uploaded_by, file_size, is_active, uploaded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	res, err := c.db.ExecContext(ctx, query,
		doc.Title,
		doc.Department,
		doc.ContentType,
		doc.OriginalFilename,
		doc.UploadedBy,
		doc.FileSize,
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read document id: %w", err)
	}

	doc.ID = id
	doc.IsActive = true
	doc.UploadedAt = now
	doc.UpdatedAt = now

	logger.Debug("Document inserted", zap.Int64("document_id", id), zap.String("title", doc.Title))
	return nil
}

// GetDocument returns the document with the given id, active or not.
func (c *Client) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("document %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (c *Client) ListDocuments(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE is_active = 1`
	var args []any

	if filter.Department != "" {
		query += ` AND department = ?`
		args = append(args, filter.Department)
	}
	if filter.ContentType != "" {
		query += ` AND content_type = ?`
		args = append(args, filter.ContentType)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query += ` ORDER BY uploaded_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		docs = append(docs, *doc)
	}

	return docs, rows.Err()
}

// DeactivateDocument soft-deletes a document. Deactivating an already
// inactive document is not an error.
func (c *Client) DeactivateDocument(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE documents SET is_active = 0, updated_at = ? WHERE id = ?`,
		toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %d: %w", id, apperr.ErrNotFound)
	}

	logger.Info("Document deactivated", zap.Int64("document_id", id))
	return nil
}

func (c *Client) InsertChunk(ctx context.Context, chunk *models.Chunk) error {
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO document_chunks (document_id, chunk_index, start_char, end_char, content, vector_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.ExecContext(ctx, query,
		chunk.DocumentID,
		chunk.ChunkIndex,
		chunk.StartChar,
		chunk.EndChar,
		chunk.Content,
		chunk.VectorID,
		toMillis(chunk.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read chunk id: %w", err)
	}
	chunk.ID = id

	return nil
}

func (c *Client) ListChunks(ctx context.Context, documentID int64) ([]models.Chunk, error) {
	query := `
		SELECT id, document_id, chunk_index, start_char, end_char, content, vector_id, created_at
		FROM document_chunks
		WHERE document_id = ?
		ORDER BY chunk_index
	`

	rows, err := c.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	chunks := []models.Chunk{}
	for rows.Next() {
		var ch models.Chunk
		var createdAt int64
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.ChunkIndex, &ch.StartChar, &ch.EndChar, &ch.Content, &ch.VectorID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ch.CreatedAt = fromMillis(createdAt)
		chunks = append(chunks, ch)
	}

	return chunks, rows.Err()
}

func (c *Client) CountChunks(ctx context.Context, documentID int64) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks WHERE document_id = ?`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// DocumentStats reports relational counts for active documents. VectorChunks
// is left for the caller, which owns the vector index.
func (c *Client) DocumentStats(ctx context.Context) (*models.DocumentStats, error) {
	stats := &models.DocumentStats{Departments: map[string]int64{}}

	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE is_active = 1`).Scan(&stats.TotalDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	err = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM document_chunks ch
		JOIN documents d ON d.id = ch.document_id
		WHERE d.is_active = 1
	`).Scan(&stats.TotalChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT department, COUNT(*) FROM documents
		WHERE is_active = 1
		GROUP BY department
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count departments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dept string
		var n int64
		if err := rows.Scan(&dept, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		stats.Departments[dept] = n
	}

	return stats, rows.Err()
}
