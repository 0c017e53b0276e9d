package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"chat-backend/internal/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB

	// SQLite only supports one writer at a time, so we need a lock
	// whenever we write to the database
	mu sync.Mutex
}

var _ ConversationStore = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateConversation(ctx context.Context, title string) (database.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(title) == "" {
		title = database.DefaultConversationTitle
	}

	now := time.Now().UTC()
	conv := database.Conversation{
		Id:        uuid.New(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []database.Message{},
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return database.Conversation{}, err
	}
	return conv, nil
}

func (s *GormStore) GetConversation(ctx context.Context, id uuid.UUID) (database.Conversation, error) {
	var conv database.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC")
		}).
		Preload("Messages.Sources").
		First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.Conversation{}, ErrNotFound
	}
	if err != nil {
		return database.Conversation{}, err
	}
	return conv, nil
}

func (s *GormStore) ListConversations(ctx context.Context) ([]database.Conversation, error) {
	var convs []database.Conversation
	err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&convs).Error
	return convs, err
}

func (s *GormStore) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Children are removed explicitly rather than relying on FK cascades,
	// which sqlite only enforces on connections with foreign_keys enabled.
	return s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		messageIds := txn.Model(&database.Message{}).Select("id").Where("conversation_id = ?", id)

		if err := txn.Where("message_id IN (?)", messageIds).Delete(&database.MessageSource{}).Error; err != nil {
			return err
		}
		if err := txn.Where("message_id IN (?)", messageIds).Delete(&database.FileAttachment{}).Error; err != nil {
			return err
		}
		if err := txn.Delete(&database.Message{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		return txn.Delete(&database.Conversation{}, "id = ?", id).Error
	})
}

func (s *GormStore) AppendMessage(ctx context.Context, convId uuid.UUID, msg NewMessage) (database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	record := database.Message{
		Id:             uuid.New(),
		ConversationId: convId,
		Role:           msg.Role,
		Content:        msg.Content,
		Timestamp:      now,
	}
	if msg.FileName != "" {
		record.FileName = sql.NullString{String: msg.FileName, Valid: true}
		record.FileType = sql.NullString{String: msg.FileType, Valid: true}
	}
	for _, src := range msg.Sources {
		record.Sources = append(record.Sources, database.MessageSource{
			Id:        uuid.New(),
			MessageId: record.Id,
			Title:     src.Title,
			Uri:       src.Uri,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var conv database.Conversation
		if err := txn.First(&conv, "id = ?", convId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := txn.Create(&record).Error; err != nil {
			return err
		}

		return txn.Model(&database.Conversation{Id: convId}).Update("updated_at", now).Error
	})
	if err != nil {
		return database.Message{}, err
	}
	return record, nil
}

func (s *GormStore) EditMessage(ctx context.Context, convId, msgId uuid.UUID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Role and the original timestamp are never touched here.
	res := s.db.WithContext(ctx).
		Model(&database.Message{}).
		Where("id = ? AND conversation_id = ?", msgId, convId).
		Updates(map[string]any{
			"content":   content,
			"edited":    true,
			"edited_at": sql.NullTime{Time: time.Now().UTC(), Valid: true},
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteMessage(ctx context.Context, convId, msgId uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Where("message_id = ?", msgId).Delete(&database.MessageSource{}).Error; err != nil {
			return err
		}
		if err := txn.Where("message_id = ?", msgId).Delete(&database.FileAttachment{}).Error; err != nil {
			return err
		}

		res := txn.Where("id = ? AND conversation_id = ?", msgId, convId).Delete(&database.Message{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) SaveAttachment(ctx context.Context, attachment database.FileAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Create(&attachment).Error
}
