package gateway

import (
	"context"
	"errors"

	"chat-backend/internal/prompt"
)

// ErrAttachmentsUnsupported is returned by providers that have no inline
// file upload support.
var ErrAttachmentsUnsupported = errors.New("provider does not support file attachments")

type Source struct {
	Title string
	Uri   string
}

type Response struct {
	Text    string
	Sources []Source
}

// Gateway sends an assembled prompt to a generative-AI provider. Callers
// bound the call with a context deadline; implementations do not retry.
type Gateway interface {
	Name() string

	// SupportsAttachments reports whether the provider accepts inline
	// binary payloads; checked before any message is persisted.
	SupportsAttachments() bool

	Generate(ctx context.Context, p prompt.Prompt) (Response, error)
}
