package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      string = "user"
	RoleAssistant string = "assistant"
)

const DefaultConversationTitle = "New Conversation"

type Conversation struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title string `gorm:"size:255;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Messages []Message `gorm:"foreignKey:ConversationId;constraint:OnDelete:CASCADE"`
}

type Message struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ConversationId uuid.UUID `gorm:"type:uuid;index;not null"`

	Role    string `gorm:"size:10;not null"` // 'user' or 'assistant', immutable after creation
	Content string `gorm:"not null"`

	Timestamp time.Time
	Edited    bool `gorm:"default:false"`
	EditedAt  sql.NullTime

	// Inline descriptor of the file sent with this message, if any.
	FileName sql.NullString `gorm:"size:255"`
	FileType sql.NullString `gorm:"size:50"`

	Sources []MessageSource `gorm:"foreignKey:MessageId;constraint:OnDelete:CASCADE"`
}

type MessageSource struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	MessageId uuid.UUID `gorm:"type:uuid;index;not null"`

	Title string `gorm:"size:255;not null"`
	Uri   string `gorm:"size:500;not null"`
}

// FileAttachment tracks uploaded file bytes separately from the message that
// carried them, so attachments can be referenced independently.
type FileAttachment struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	MessageId uuid.UUID `gorm:"type:uuid;index;not null"`

	FileName    string `gorm:"size:255;not null"`
	FileType    string `gorm:"size:50;not null"`
	FileSize    int64  `gorm:"not null"`
	StoragePath string `gorm:"size:500;not null"` // local or S3 key
	UploadedAt  time.Time
}
