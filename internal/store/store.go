package store

import (
	"context"
	"errors"

	"chat-backend/internal/database"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the referenced conversation or message does
// not exist.
var ErrNotFound = errors.New("record not found")

type Source struct {
	Title string
	Uri   string
}

// NewMessage is the append payload. Role and the creation timestamp are
// fixed once the message is stored; only content and edit metadata can be
// changed afterwards.
type NewMessage struct {
	Role     string
	Content  string
	FileName string
	FileType string
	Sources  []Source
}

// ConversationStore owns conversation and message records. Implementations
// must make AppendMessage atomic with the conversation updated_at refresh so
// concurrent appends to the same conversation cannot corrupt message order.
type ConversationStore interface {
	CreateConversation(ctx context.Context, title string) (database.Conversation, error)

	// GetConversation returns the conversation with its messages (and their
	// sources) in insertion order.
	GetConversation(ctx context.Context, id uuid.UUID) (database.Conversation, error)

	// ListConversations returns conversation summaries without message
	// bodies, most recently updated first.
	ListConversations(ctx context.Context) ([]database.Conversation, error)

	// DeleteConversation removes the conversation and everything it owns.
	// Deleting an unknown id is a no-op.
	DeleteConversation(ctx context.Context, id uuid.UUID) error

	AppendMessage(ctx context.Context, convId uuid.UUID, msg NewMessage) (database.Message, error)

	EditMessage(ctx context.Context, convId, msgId uuid.UUID, content string) error

	DeleteMessage(ctx context.Context, convId, msgId uuid.UUID) error

	SaveAttachment(ctx context.Context, attachment database.FileAttachment) error
}
