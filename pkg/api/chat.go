package api

import (
	"time"

	"github.com/google/uuid"
)

type Source struct {
	Title string `json:"title"`
	Uri   string `json:"uri"`
}

type FileRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Message struct {
	Id        uuid.UUID  `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Edited    bool       `json:"edited"`
	EditedAt  *time.Time `json:"edited_at"`
	File      *FileRef   `json:"file,omitempty"`
	Sources   []Source   `json:"sources,omitempty"`
}

type Conversation struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages,omitempty"`
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

// InlineFile carries attachment bytes through the JSON chat request; Data
// is base64 on the wire.
type InlineFile struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// ChatRequest is the normalized chat payload, produced from either the
// JSON or the multipart form encoding of POST /api/chat.
type ChatRequest struct {
	Message        string      `json:"message" schema:"message"`
	ConversationId string      `json:"conversation_id" schema:"conversation_id"`
	Language       string      `json:"language" schema:"language"`
	File           *InlineFile `json:"file,omitempty" schema:"-"`
}

type ChatResponse struct {
	Success        bool      `json:"success"`
	Response       string    `json:"response"`
	Sources        []Source  `json:"sources"`
	ConversationId uuid.UUID `json:"conversation_id"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type RegenerateRequest struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	Language       string    `json:"language"`
}

type ExportRequest struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	Format         string    `json:"format"`
}

type ExportResponse struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	ConversationId string `json:"conversation_id,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}
