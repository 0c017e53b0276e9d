package api

import (
	"chat-backend/internal/database"
	pkgapi "chat-backend/pkg/api"
)

func convertMessage(m database.Message) pkgapi.Message {
	msg := pkgapi.Message{
		Id:        m.Id,
		Role:      m.Role,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Edited:    m.Edited,
	}
	if m.EditedAt.Valid {
		t := m.EditedAt.Time
		msg.EditedAt = &t
	}
	if m.FileName.Valid {
		msg.File = &pkgapi.FileRef{
			Name: m.FileName.String,
			Type: m.FileType.String,
		}
	}
	for _, src := range m.Sources {
		msg.Sources = append(msg.Sources, pkgapi.Source{Title: src.Title, Uri: src.Uri})
	}
	return msg
}

func convertMessages(ms []database.Message) []pkgapi.Message {
	messages := make([]pkgapi.Message, 0, len(ms))
	for _, m := range ms {
		messages = append(messages, convertMessage(m))
	}
	return messages
}

func convertConversation(c database.Conversation, includeMessages bool) pkgapi.Conversation {
	conv := pkgapi.Conversation{
		Id:        c.Id,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if includeMessages {
		conv.Messages = convertMessages(c.Messages)
	}
	return conv
}

func convertConversations(cs []database.Conversation) []pkgapi.Conversation {
	conversations := make([]pkgapi.Conversation, 0, len(cs))
	for _, c := range cs {
		conversations = append(conversations, convertConversation(c, false))
	}
	return conversations
}
