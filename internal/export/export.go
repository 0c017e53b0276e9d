package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat-backend/internal/database"
	"chat-backend/internal/store"

	"github.com/google/uuid"
)

const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

var ErrUnknownFormat = errors.New("unknown export format")

// Document is a rendered export with a suggested download filename.
type Document struct {
	Content  string
	Filename string
}

// Result holds exactly one of the two export shapes: a structured dump of
// the conversation or a rendered document.
type Result struct {
	Conversation *database.Conversation
	Document     *Document
}

type Exporter struct {
	store store.ConversationStore
}

func NewExporter(cs store.ConversationStore) *Exporter {
	return &Exporter{store: cs}
}

// Export renders the conversation in the requested format. An empty format
// defaults to markdown; anything other than markdown or json is an
// ErrUnknownFormat.
func (e *Exporter) Export(ctx context.Context, convId uuid.UUID, format string) (Result, error) {
	if format == "" {
		format = FormatMarkdown
	}

	conv, err := e.store.GetConversation(ctx, convId)
	if err != nil {
		return Result{}, err
	}

	switch format {
	case FormatJSON:
		return Result{Conversation: &conv}, nil
	case FormatMarkdown:
		doc := renderMarkdown(conv)
		return Result{Document: &doc}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func renderMarkdown(conv database.Conversation) Document {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	fmt.Fprintf(&b, "Created: %s\n\n", conv.CreatedAt.Format(time.RFC3339))

	for _, msg := range conv.Messages {
		role := "**Assistant**"
		if msg.Role == database.RoleUser {
			role = "**User**"
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", role, msg.Content)
	}

	return Document{
		Content:  b.String(),
		Filename: conv.Title + ".md",
	}
}
