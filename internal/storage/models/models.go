package models

import "time"

// PlaceholderTitle is the title a conversation carries until its first
// substantial question names it.
const PlaceholderTitle = "New Chat"

type Document struct {
	ID               int64
	Title            string
	Department       string
	ContentType      string
	OriginalFilename string
	UploadedBy       string
	FileSize         int64
	IsActive         bool
	UploadedAt       time.Time
	UpdatedAt        time.Time
}

type Chunk struct {
	ID         int64
	DocumentID int64
	ChunkIndex int
	StartChar  int
	EndChar    int
	Content    string
	VectorID   string
	CreatedAt  time.Time
}

type User struct {
	ID        int64
	Email     string
	Name      string
	Role      string
	CreatedAt time.Time
}

type Conversation struct {
	ID            int64
	UserID        int64
	SessionID     string
	Title         string
	IsActive      bool
	StartedAt     time.Time
	LastMessageAt *time.Time
}

// ConversationSummary is a conversation as listed for its owner.
type ConversationSummary struct {
	Conversation
	MessageCount int64
}

type Message struct {
	ID              int64
	ConversationID  int64
	Content         string
	IsUserMessage   bool
	Timestamp       time.Time
	Sources         []Source
	ConfidenceScore *float64
	UserFeedback    *int
}

// Source attributes part of an answer to a retrieved chunk.
type Source struct {
	Title          string  `json:"title"`
	Department     string  `json:"department"`
	ContentType    string  `json:"content_type"`
	DocumentID     int64   `json:"document_id"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
	Excerpt        string  `json:"excerpt"`
}

type DocumentFilter struct {
	Department  string
	ContentType string
	Limit       int
	Offset      int
}

type DocumentStats struct {
	TotalDocuments int64            `json:"total_documents"`
	TotalChunks    int64            `json:"total_chunks"`
	VectorChunks   int64            `json:"vector_chunks"`
	Departments    map[string]int64 `json:"departments"`
}

type ChatAnalytics struct {
	ActiveConversations int64    `json:"total_conversations"`
	TotalMessages       int64    `json:"total_messages"`
	AverageConfidence   *float64 `json:"average_confidence_score"`
}
