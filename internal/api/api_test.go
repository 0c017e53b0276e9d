package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	backend "chat-backend/internal/api"
	"chat-backend/internal/chat"
	"chat-backend/internal/database"
	"chat-backend/internal/export"
	"chat-backend/internal/gateway"
	"chat-backend/internal/prompt"
	"chat-backend/internal/store"
	"chat-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubGateway struct {
	res           gateway.Response
	err           error
	noAttachments bool
	block         bool

	lastPrompt prompt.Prompt
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) SupportsAttachments() bool { return !g.noAttachments }

func (g *stubGateway) Generate(ctx context.Context, p prompt.Prompt) (gateway.Response, error) {
	g.lastPrompt = p
	if g.block {
		<-ctx.Done()
		return gateway.Response{}, ctx.Err()
	}
	return g.res, g.err
}

type testEnv struct {
	router chi.Router
	store  store.ConversationStore
}

func createEnv(t *testing.T, gw gateway.Gateway) testEnv {
	return createEnvWithTimeout(t, gw, time.Second)
}

func createEnvWithTimeout(t *testing.T, gw gateway.Gateway, timeout time.Duration) testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	cs := store.NewGormStore(db)
	assembler := prompt.NewAssembler("AnuragBot", "Anurag University")
	chatService := chat.NewService(cs, gw, assembler, nil, timeout)
	exporter := export.NewExporter(cs)

	service := backend.NewService(db, cs, chatService, exporter, 16<<20)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		service.AddRoutes(r)
	})

	return testEnv{router: router, store: cs}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func parseBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestConversationLifecycle(t *testing.T) {
	env := createEnv(t, &stubGateway{})

	rec := env.do(t, http.MethodPost, "/api/conversations", api.CreateConversationRequest{Title: "Scholarships"})
	require.Equal(t, http.StatusOK, rec.Code)
	created := parseBody[api.Conversation](t, rec)
	assert.Equal(t, "Scholarships", created.Title)
	assert.NotEqual(t, uuid.Nil, created.Id)

	rec = env.do(t, http.MethodPost, "/api/conversations", api.CreateConversationRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	untitled := parseBody[api.Conversation](t, rec)
	assert.Equal(t, database.DefaultConversationTitle, untitled.Title)

	rec = env.do(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := parseBody[[]api.Conversation](t, rec)
	assert.Len(t, list, 2)

	rec = env.do(t, http.MethodGet, "/api/conversations/"+created.Id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := parseBody[api.Conversation](t, rec)
	assert.Equal(t, created.Id, fetched.Id)

	rec = env.do(t, http.MethodDelete, "/api/conversations/"+created.Id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, parseBody[api.SuccessResponse](t, rec).Success)

	rec = env.do(t, http.MethodGet, "/api/conversations/"+created.Id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Deleting again still succeeds.
	rec = env.do(t, http.MethodDelete, "/api/conversations/"+created.Id.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatCreatesAndContinuesConversation(t *testing.T) {
	gw := &stubGateway{res: gateway.Response{
		Text:    "Hi there",
		Sources: []gateway.Source{{Title: "https://a.example", Uri: "https://a.example"}},
	}}
	env := createEnv(t, gw)

	rec := env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "Hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	first := parseBody[api.ChatResponse](t, rec)
	assert.True(t, first.Success)
	assert.Equal(t, "Hi there", first.Response)
	require.Len(t, first.Sources, 1)
	assert.NotEqual(t, uuid.Nil, first.ConversationId)

	rec = env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{
		Message:        "And what else?",
		ConversationId: first.ConversationId.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	second := parseBody[api.ChatResponse](t, rec)
	assert.Equal(t, first.ConversationId, second.ConversationId)

	conv, err := env.store.GetConversation(context.Background(), first.ConversationId)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 4)

	// The second call sees the first exchange as history.
	require.Len(t, gw.lastPrompt.History, 2)
	assert.Equal(t, "Hello", gw.lastPrompt.History[0].Content)
}

func TestChatMultipartWithFile(t *testing.T) {
	gw := &stubGateway{res: gateway.Response{Text: "A campus map"}}
	env := createEnv(t, gw)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("message", "What is this?"))
	require.NoError(t, writer.WriteField("language", "English"))

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="map.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := parseBody[api.ChatResponse](t, rec)
	assert.Equal(t, "A campus map", res.Response)

	require.NotNil(t, gw.lastPrompt.Attachment)
	assert.Equal(t, "map.png", gw.lastPrompt.Attachment.Name)
	assert.Equal(t, []byte("png-bytes"), gw.lastPrompt.Attachment.Data)

	conv, err := env.store.GetConversation(context.Background(), res.ConversationId)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "map.png", conv.Messages[0].FileName.String)
	assert.Equal(t, "image/png", conv.Messages[0].FileType.String)
}

func TestChatRejectsBadRequests(t *testing.T) {
	env := createEnv(t, &stubGateway{res: gateway.Response{Text: "ok"}})

	rec := env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "hi", ConversationId: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{
		Message: "hi",
		File:    &api.InlineFile{Name: "a.txt", MimeType: "text/plain", Data: []byte("txt")},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "hi", ConversationId: uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatNotConfigured(t *testing.T) {
	env := createEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "Hello"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	res := parseBody[api.ErrorResponse](t, rec)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not configured")
}

func TestChatProviderFailureKeepsConversationId(t *testing.T) {
	env := createEnv(t, &stubGateway{err: fmt.Errorf("upstream exploded")})

	rec := env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "Hello"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	res := parseBody[api.ErrorResponse](t, rec)
	assert.False(t, res.Success)
	require.NotEmpty(t, res.ConversationId)

	convId, err := uuid.Parse(res.ConversationId)
	require.NoError(t, err)

	conv, err := env.store.GetConversation(context.Background(), convId)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Contains(t, conv.Messages[1].Content, "Sorry, I encountered an error")
}

func TestChatProviderTimeout(t *testing.T) {
	env := createEnvWithTimeout(t, &stubGateway{block: true}, 50*time.Millisecond)

	rec := env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "Hello"})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	res := parseBody[api.ErrorResponse](t, rec)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.ConversationId)
}

func TestEditAndDeleteMessage(t *testing.T) {
	env := createEnv(t, &stubGateway{res: gateway.Response{Text: "Hi there"}})

	rec := env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "Hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	chatRes := parseBody[api.ChatResponse](t, rec)

	conv, err := env.store.GetConversation(context.Background(), chatRes.ConversationId)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	userMsg := conv.Messages[0]

	path := fmt.Sprintf("/api/messages/%s/%s", chatRes.ConversationId, userMsg.Id)

	rec = env.do(t, http.MethodPut, path, api.EditMessageRequest{Content: "Hello there"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/conversations/"+chatRes.ConversationId.String(), nil)
	fetched := parseBody[api.Conversation](t, rec)
	require.Len(t, fetched.Messages, 2)
	assert.Equal(t, "Hello there", fetched.Messages[0].Content)
	assert.True(t, fetched.Messages[0].Edited)
	assert.NotNil(t, fetched.Messages[0].EditedAt)

	rec = env.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/messages/%s/%s", chatRes.ConversationId, uuid.New()), api.EditMessageRequest{Content: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegenerateEndpoint(t *testing.T) {
	gw := &stubGateway{res: gateway.Response{Text: "Hi there"}}
	env := createEnv(t, gw)

	rec := env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "Hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	chatRes := parseBody[api.ChatResponse](t, rec)

	gw.res = gateway.Response{Text: "Hello again"}
	rec = env.do(t, http.MethodPost, "/api/regenerate", api.RegenerateRequest{ConversationId: chatRes.ConversationId})
	require.Equal(t, http.StatusOK, rec.Code)
	regen := parseBody[api.ChatResponse](t, rec)
	assert.Equal(t, "Hello again", regen.Response)
	assert.Equal(t, chatRes.ConversationId, regen.ConversationId)

	conv, err := env.store.GetConversation(context.Background(), chatRes.ConversationId)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "Hello again", conv.Messages[1].Content)

	rec = env.do(t, http.MethodPost, "/api/regenerate", api.RegenerateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/regenerate", api.RegenerateRequest{ConversationId: uuid.New()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	env := createEnv(t, &stubGateway{res: gateway.Response{Text: "Hi there"}})

	rec := env.do(t, http.MethodPost, "/api/chat", api.ChatRequest{Message: "Hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	chatRes := parseBody[api.ChatResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/api/export", api.ExportRequest{ConversationId: chatRes.ConversationId, Format: "markdown"})
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseBody[api.ExportResponse](t, rec)
	assert.Contains(t, doc.Content, "# "+database.DefaultConversationTitle)
	assert.Contains(t, doc.Content, "**User**:\nHello")
	assert.Equal(t, database.DefaultConversationTitle+".md", doc.Filename)

	rec = env.do(t, http.MethodPost, "/api/export", api.ExportRequest{ConversationId: chatRes.ConversationId, Format: "json"})
	require.Equal(t, http.StatusOK, rec.Code)
	conv := parseBody[api.Conversation](t, rec)
	assert.Equal(t, chatRes.ConversationId, conv.Id)
	assert.Len(t, conv.Messages, 2)

	rec = env.do(t, http.MethodPost, "/api/export", api.ExportRequest{ConversationId: chatRes.ConversationId, Format: "pdf"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/export", api.ExportRequest{ConversationId: uuid.New(), Format: "markdown"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	env := createEnv(t, &stubGateway{})

	rec := env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	res := parseBody[api.HealthResponse](t, rec)
	assert.Equal(t, "healthy", res.Status)
	assert.Equal(t, "connected", res.Database)
	assert.WithinDuration(t, time.Now().UTC(), res.Timestamp, time.Minute)
}
