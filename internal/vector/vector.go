// Package vector defines the similarity index the chatbot stores chunk
// embeddings in. Backends live in the memory and milvus subpackages.
package vector

import (
	"context"
)

// Metadata is carried by every entry. Empty strings stand for missing values
// and never match a non-empty filter.
type Metadata struct {
	DocumentID  int64  `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Title       string `json:"title"`
	Department  string `json:"department"`
	ContentType string `json:"content_type"`
}

// Match is one query hit. Distance is cosine distance, lower is closer.
type Match struct {
	ID       string
	Text     string
	Distance float64
	Metadata Metadata
}

func (m Match) Relevance() float64 {
	return 1 - m.Distance
}

type Index interface {
	// Upsert stores a new entry and returns its id, generating one when id
	// is empty. Ids are write-once.
	Upsert(ctx context.Context, id string, vec []float32, text string, meta Metadata) (string, error)
	// Query returns up to k entries ordered by ascending distance.
	Query(ctx context.Context, vec []float32, k int) ([]Match, error)
	// DeleteByDocument removes every entry of the document. Removing a
	// document with no entries is not an error.
	DeleteByDocument(ctx context.Context, documentID int64) error
	Stats(ctx context.Context) (int64, error)
	Close() error
}
