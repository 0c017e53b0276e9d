package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"chat-backend/internal/database"
	"chat-backend/internal/gateway"
	"chat-backend/internal/prompt"
	"chat-backend/internal/storage"
	"chat-backend/internal/store"

	"github.com/google/uuid"
)

const (
	// DefaultProviderTimeout bounds a single provider call. There is no
	// retry; a timed-out call is surfaced once as a gateway timeout.
	DefaultProviderTimeout = 30 * time.Second

	// errorPreviewRunes is how much of a provider error is persisted as the
	// visible assistant reply when a call fails.
	errorPreviewRunes = 100

	emptyResponseFallback = "I apologize, but I could not generate a response. Please try again."
)

type Service struct {
	store       store.ConversationStore
	gateway     gateway.Gateway // nil when no provider credential is configured
	assembler   *prompt.Assembler
	attachments storage.ObjectStore // optional attachment byte store
	timeout     time.Duration
}

func NewService(cs store.ConversationStore, gw gateway.Gateway, assembler *prompt.Assembler, attachments storage.ObjectStore, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Service{
		store:       cs,
		gateway:     gw,
		assembler:   assembler,
		attachments: attachments,
		timeout:     timeout,
	}
}

type SendInput struct {
	ConversationId uuid.NullUUID
	Message        string
	Language       string
	Attachment     *prompt.Attachment
}

type SendResult struct {
	ConversationId uuid.UUID
	Response       string
	Sources        []gateway.Source
}

// Send runs one chat exchange: validate, persist the user message, assemble
// the prompt, call the provider, persist the reply. A provider failure after
// the user message is stored is surfaced as a GatewayError while the user
// message is deliberately kept, so conversation history reflects what was
// attempted.
func (s *Service) Send(ctx context.Context, input SendInput) (SendResult, error) {
	if s.gateway == nil {
		return SendResult{}, ErrNotConfigured
	}

	message := strings.TrimSpace(input.Message)
	if message == "" && input.Attachment == nil {
		return SendResult{}, ErrEmptyMessage
	}

	if input.Attachment != nil {
		if err := input.Attachment.Validate(); err != nil {
			return SendResult{}, err
		}
		if !s.gateway.SupportsAttachments() {
			return SendResult{}, gateway.ErrAttachmentsUnsupported
		}
	}

	var conv database.Conversation
	var err error
	if input.ConversationId.Valid {
		conv, err = s.store.GetConversation(ctx, input.ConversationId.UUID)
	} else {
		conv, err = s.store.CreateConversation(ctx, "")
	}
	if err != nil {
		return SendResult{}, err
	}

	userMsg := store.NewMessage{Role: database.RoleUser, Content: input.Message}
	if input.Attachment != nil {
		userMsg.FileName = input.Attachment.Name
		userMsg.FileType = input.Attachment.MimeType
	}

	stored, err := s.store.AppendMessage(ctx, conv.Id, userMsg)
	if err != nil {
		return SendResult{}, fmt.Errorf("could not store user message: %w", err)
	}

	if input.Attachment != nil {
		s.saveAttachment(ctx, conv.Id, stored.Id, input.Attachment)
	}

	// conv.Messages still holds the history from before the append.
	return s.complete(ctx, conv.Id, conv.Messages, input.Language, input.Message, input.Attachment)
}

// DeleteConversation removes the conversation records and any attachment
// objects stored under its prefix.
func (s *Service) DeleteConversation(ctx context.Context, convId uuid.UUID) error {
	if err := s.store.DeleteConversation(ctx, convId); err != nil {
		return err
	}

	if s.attachments != nil {
		if err := s.attachments.DeleteObjects(ctx, convId.String()); err != nil {
			slog.Error("could not delete attachment objects", "conversation_id", convId, "error", err)
		}
	}
	return nil
}

// Regenerate pops the trailing assistant message and replays the provider
// call for the last user message in the conversation.
func (s *Service) Regenerate(ctx context.Context, convId uuid.UUID, language string) (SendResult, error) {
	if s.gateway == nil {
		return SendResult{}, ErrNotConfigured
	}

	conv, err := s.store.GetConversation(ctx, convId)
	if err != nil {
		return SendResult{}, err
	}

	messages := conv.Messages
	if len(messages) < 2 {
		return SendResult{}, ErrNoPriorMessage
	}

	if last := messages[len(messages)-1]; last.Role == database.RoleAssistant {
		if err := s.store.DeleteMessage(ctx, convId, last.Id); err != nil {
			return SendResult{}, fmt.Errorf("could not remove previous response: %w", err)
		}
		messages = messages[:len(messages)-1]
	}

	lastUser := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == database.RoleUser {
			lastUser = i
			break
		}
	}
	if lastUser < 0 {
		return SendResult{}, ErrNoPriorMessage
	}

	return s.complete(ctx, convId, messages[:lastUser], language, messages[lastUser].Content, nil)
}

// complete runs the provider call for userMessage and persists the outcome.
// history is the conversation state prior to that message.
func (s *Service) complete(ctx context.Context, convId uuid.UUID, history []database.Message, language, userMessage string, attachment *prompt.Attachment) (SendResult, error) {
	p := s.assembler.Assemble(history, language, userMessage, attachment)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.gateway.Generate(callCtx, p)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Error("provider call timed out", "provider", s.gateway.Name(), "conversation_id", convId)
			return SendResult{}, &GatewayError{ConversationId: convId, Err: ErrGatewayTimeout}
		}

		slog.Error("provider call failed", "provider", s.gateway.Name(), "conversation_id", convId, "error", err)

		// Fail visibly but keep the conversation consistent: the failure
		// becomes a short assistant-role message.
		errMsg := store.NewMessage{
			Role:    database.RoleAssistant,
			Content: "Sorry, I encountered an error: " + truncate(err.Error(), errorPreviewRunes),
		}
		if _, saveErr := s.store.AppendMessage(ctx, convId, errMsg); saveErr != nil {
			slog.Error("could not store provider error message", "conversation_id", convId, "error", saveErr)
		}

		return SendResult{}, &GatewayError{ConversationId: convId, Err: err}
	}

	text := res.Text
	if strings.TrimSpace(text) == "" {
		text = emptyResponseFallback
	}

	reply := store.NewMessage{Role: database.RoleAssistant, Content: text}
	for _, src := range res.Sources {
		reply.Sources = append(reply.Sources, store.Source{Title: src.Title, Uri: src.Uri})
	}

	if _, err := s.store.AppendMessage(ctx, convId, reply); err != nil {
		return SendResult{}, fmt.Errorf("could not store assistant message: %w", err)
	}

	return SendResult{
		ConversationId: convId,
		Response:       text,
		Sources:        res.Sources,
	}, nil
}

// saveAttachment records the attachment bytes and bookkeeping row. Failures
// here are logged rather than surfaced: the message itself is already
// stored, and the inline copy still reaches the provider.
func (s *Service) saveAttachment(ctx context.Context, convId, msgId uuid.UUID, attachment *prompt.Attachment) {
	if s.attachments == nil {
		return
	}

	key := path.Join(convId.String(), msgId.String(), attachment.Name)
	if err := s.attachments.PutObject(ctx, key, bytes.NewReader(attachment.Data)); err != nil {
		slog.Error("could not store attachment object", "key", key, "error", err)
		return
	}

	record := database.FileAttachment{
		Id:          uuid.New(),
		MessageId:   msgId,
		FileName:    attachment.Name,
		FileType:    attachment.MimeType,
		FileSize:    int64(len(attachment.Data)),
		StoragePath: s.attachments.Location() + "/" + key,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveAttachment(ctx, record); err != nil {
		slog.Error("could not store attachment record", "key", key, "error", err)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
