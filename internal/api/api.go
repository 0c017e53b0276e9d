package api

import (
	"errors"
	"net/http"
	"time"

	"chat-backend/internal/chat"
	"chat-backend/internal/export"
	"chat-backend/internal/gateway"
	"chat-backend/internal/prompt"
	"chat-backend/internal/store"
	pkgapi "chat-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	store    store.ConversationStore
	chat     *chat.Service
	exporter *export.Exporter

	// maxUploadBytes bounds in-memory buffering of multipart chat requests.
	maxUploadBytes int64
}

func NewService(db *gorm.DB, cs store.ConversationStore, chatSvc *chat.Service, exporter *export.Exporter, maxUploadBytes int64) *Service {
	return &Service{
		db:             db,
		store:          cs,
		chat:           chatSvc,
		exporter:       exporter,
		maxUploadBytes: maxUploadBytes,
	}
}

func (s *Service) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(s.Health))

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListConversations))
		r.Post("/", RestHandler(s.CreateConversation))
		r.Route("/{conversation_id}", func(r chi.Router) {
			r.Get("/", RestHandler(s.GetConversation))
			r.Delete("/", RestHandler(s.DeleteConversation))
		})
	})

	r.Post("/chat", RestHandler(s.Chat))
	r.Post("/regenerate", RestHandler(s.Regenerate))
	r.Post("/export", RestHandler(s.Export))

	r.Route("/messages/{conversation_id}/{message_id}", func(r chi.Router) {
		r.Put("/", RestHandler(s.EditMessage))
		r.Delete("/", RestHandler(s.DeleteMessage))
	})
}

func (s *Service) ListConversations(r *http.Request) (any, error) {
	conversations, err := s.store.ListConversations(r.Context())
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "unable to list conversations: %v", err)
	}
	return convertConversations(conversations), nil
}

func (s *Service) CreateConversation(r *http.Request) (any, error) {
	req, err := ParseRequest[pkgapi.CreateConversationRequest](r)
	if err != nil {
		return nil, err
	}

	conversation, err := s.store.CreateConversation(r.Context(), req.Title)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "unable to create conversation: %v", err)
	}
	return convertConversation(conversation, true), nil
}

func (s *Service) GetConversation(r *http.Request) (any, error) {
	id, err := URLParamUUID(r, "conversation_id")
	if err != nil {
		return nil, err
	}

	conversation, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "conversation not found")
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "unable to get conversation: %v", err)
	}
	return convertConversation(conversation, true), nil
}

// DeleteConversation is idempotent: deleting an unknown conversation still
// reports success.
func (s *Service) DeleteConversation(r *http.Request) (any, error) {
	id, err := URLParamUUID(r, "conversation_id")
	if err != nil {
		return nil, err
	}

	if err := s.chat.DeleteConversation(r.Context(), id); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "unable to delete conversation: %v", err)
	}
	return pkgapi.SuccessResponse{Success: true}, nil
}

func (s *Service) Chat(r *http.Request) (any, error) {
	req, err := parseChatRequest(r, s.maxUploadBytes)
	if err != nil {
		return nil, err
	}

	input := chat.SendInput{Message: req.Message, Language: req.Language}
	if req.ConversationId != "" {
		id, err := uuid.Parse(req.ConversationId)
		if err != nil {
			return nil, CodedErrorf(http.StatusBadRequest, "invalid conversation_id: %v", err)
		}
		input.ConversationId = uuid.NullUUID{UUID: id, Valid: true}
	}
	if req.File != nil {
		input.Attachment = &prompt.Attachment{
			Name:     req.File.Name,
			MimeType: req.File.MimeType,
			Data:     req.File.Data,
		}
	}

	result, err := s.chat.Send(r.Context(), input)
	if err != nil {
		return nil, chatError(err)
	}
	return chatResponse(result), nil
}

func (s *Service) Regenerate(r *http.Request) (any, error) {
	req, err := ParseRequest[pkgapi.RegenerateRequest](r)
	if err != nil {
		return nil, err
	}
	if req.ConversationId == uuid.Nil {
		return nil, CodedErrorf(http.StatusBadRequest, "conversation_id is required")
	}

	result, err := s.chat.Regenerate(r.Context(), req.ConversationId, req.Language)
	if err != nil {
		return nil, chatError(err)
	}
	return chatResponse(result), nil
}

func (s *Service) EditMessage(r *http.Request) (any, error) {
	convId, msgId, err := messageParams(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[pkgapi.EditMessageRequest](r)
	if err != nil {
		return nil, err
	}

	if err := s.store.EditMessage(r.Context(), convId, msgId, req.Content); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "message not found")
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "unable to edit message: %v", err)
	}
	return pkgapi.SuccessResponse{Success: true}, nil
}

func (s *Service) DeleteMessage(r *http.Request) (any, error) {
	convId, msgId, err := messageParams(r)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteMessage(r.Context(), convId, msgId); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "message not found")
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "unable to delete message: %v", err)
	}
	return pkgapi.SuccessResponse{Success: true}, nil
}

func (s *Service) Export(r *http.Request) (any, error) {
	req, err := ParseRequest[pkgapi.ExportRequest](r)
	if err != nil {
		return nil, err
	}
	if req.ConversationId == uuid.Nil {
		return nil, CodedErrorf(http.StatusBadRequest, "conversation_id is required")
	}

	result, err := s.exporter.Export(r.Context(), req.ConversationId, req.Format)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrUnknownFormat):
			return nil, CodedError(http.StatusBadRequest, err)
		case errors.Is(err, store.ErrNotFound):
			return nil, CodedErrorf(http.StatusNotFound, "conversation not found")
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "unable to export conversation: %v", err)
	}

	if result.Document != nil {
		return pkgapi.ExportResponse{Content: result.Document.Content, Filename: result.Document.Filename}, nil
	}
	return convertConversation(*result.Conversation, true), nil
}

func (s *Service) Health(r *http.Request) (any, error) {
	res := pkgapi.HealthResponse{Status: "healthy", Database: "connected", Timestamp: time.Now().UTC()}

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		res.Status = "degraded"
		res.Database = "disconnected"
	}
	return res, nil
}

func messageParams(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	convId, err := URLParamUUID(r, "conversation_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	msgId, err := URLParamUUID(r, "message_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return convId, msgId, nil
}

func chatResponse(result chat.SendResult) pkgapi.ChatResponse {
	sources := make([]pkgapi.Source, 0, len(result.Sources))
	for _, src := range result.Sources {
		sources = append(sources, pkgapi.Source{Title: src.Title, Uri: src.Uri})
	}
	return pkgapi.ChatResponse{
		Success:        true,
		Response:       result.Response,
		Sources:        sources,
		ConversationId: result.ConversationId,
	}
}

// chatError maps chat-service failures to HTTP codes. Provider failures keep
// the conversation id in the error body so the client can still navigate to
// the conversation that recorded the failure.
func chatError(err error) error {
	var gwErr *chat.GatewayError
	switch {
	case errors.As(err, &gwErr):
		code := http.StatusInternalServerError
		if errors.Is(err, chat.ErrGatewayTimeout) {
			code = http.StatusGatewayTimeout
		}
		return CodedErrorWithBody(code, err, pkgapi.ErrorResponse{
			Success:        false,
			Error:          gwErr.Error(),
			ConversationId: gwErr.ConversationId.String(),
		})
	case errors.Is(err, chat.ErrNotConfigured):
		return CodedError(http.StatusInternalServerError, err)
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrNoPriorMessage),
		errors.Is(err, prompt.ErrAttachmentType),
		errors.Is(err, prompt.ErrAttachmentTooLarge),
		errors.Is(err, gateway.ErrAttachmentsUnsupported):
		return CodedError(http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		return CodedErrorf(http.StatusNotFound, "conversation not found")
	}
	return err
}
