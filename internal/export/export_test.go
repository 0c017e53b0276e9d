package export_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chat-backend/internal/database"
	"chat-backend/internal/export"
	"chat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createConversation(t *testing.T) (store.ConversationStore, database.Conversation) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	cs := store.NewGormStore(db)

	conv, err := cs.CreateConversation(context.Background(), "Campus tour")
	require.NoError(t, err)

	_, err = cs.AppendMessage(context.Background(), conv.Id, store.NewMessage{Role: database.RoleUser, Content: "When are tours held?"})
	require.NoError(t, err)
	_, err = cs.AppendMessage(context.Background(), conv.Id, store.NewMessage{Role: database.RoleAssistant, Content: "Tours run every Saturday."})
	require.NoError(t, err)

	return cs, conv
}

func TestExportMarkdown(t *testing.T) {
	cs, conv := createConversation(t)
	exporter := export.NewExporter(cs)

	result, err := exporter.Export(context.Background(), conv.Id, export.FormatMarkdown)
	require.NoError(t, err)
	require.NotNil(t, result.Document)
	assert.Nil(t, result.Conversation)

	expected := fmt.Sprintf("# Campus tour\n\nCreated: %s\n\n**User**:\nWhen are tours held?\n\n**Assistant**:\nTours run every Saturday.\n\n",
		conv.CreatedAt.Format(time.RFC3339))
	assert.Equal(t, expected, result.Document.Content)
	assert.Equal(t, "Campus tour.md", result.Document.Filename)
}

func TestExportDefaultsToMarkdown(t *testing.T) {
	cs, conv := createConversation(t)
	exporter := export.NewExporter(cs)

	result, err := exporter.Export(context.Background(), conv.Id, "")
	require.NoError(t, err)
	require.NotNil(t, result.Document)
	assert.Equal(t, "Campus tour.md", result.Document.Filename)
}

func TestExportJSON(t *testing.T) {
	cs, conv := createConversation(t)
	exporter := export.NewExporter(cs)

	result, err := exporter.Export(context.Background(), conv.Id, export.FormatJSON)
	require.NoError(t, err)
	require.NotNil(t, result.Conversation)
	assert.Nil(t, result.Document)

	assert.Equal(t, conv.Id, result.Conversation.Id)
	require.Len(t, result.Conversation.Messages, 2)
	assert.Equal(t, "When are tours held?", result.Conversation.Messages[0].Content)
}

func TestExportUnknownFormat(t *testing.T) {
	cs, conv := createConversation(t)
	exporter := export.NewExporter(cs)

	_, err := exporter.Export(context.Background(), conv.Id, "pdf")
	assert.ErrorIs(t, err, export.ErrUnknownFormat)
}

func TestExportUnknownConversation(t *testing.T) {
	cs, _ := createConversation(t)
	exporter := export.NewExporter(cs)

	_, err := exporter.Export(context.Background(), uuid.New(), export.FormatMarkdown)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
