package chat

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotConfigured means no provider credential is configured; nothing
	// is persisted for such requests.
	ErrNotConfigured = errors.New("API key not configured")

	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoPriorMessage means a regenerate was requested for a conversation
	// without a completed user/assistant exchange.
	ErrNoPriorMessage = errors.New("no previous message to regenerate")

	ErrGatewayTimeout = errors.New("provider request timed out")
)

// GatewayError reports a failed provider call. The conversation id is
// carried so callers can still tell the client which conversation the user
// message landed in.
type GatewayError struct {
	ConversationId uuid.UUID
	Err            error
}

func (e *GatewayError) Error() string {
	return e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
