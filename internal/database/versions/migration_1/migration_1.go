package migration_1

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

type Message struct {
	Edited   bool `gorm:"default:false"`
	EditedAt sql.NullTime
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Message{}, "edited"); err != nil {
		return fmt.Errorf("error adding Edited column: %w", err)
	}

	if err := db.Migrator().AddColumn(&Message{}, "edited_at"); err != nil {
		return fmt.Errorf("error adding EditedAt column: %w", err)
	}

	if err := db.Model(&Message{}).
		Where("edited IS NULL").
		Update("edited", false).Error; err != nil {
		return fmt.Errorf("error setting default value for Edited: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&Message{}, "Edited"); err != nil {
		return fmt.Errorf("error dropping Edited column: %w", err)
	}

	if err := db.Migrator().DropColumn(&Message{}, "EditedAt"); err != nil {
		return fmt.Errorf("error dropping EditedAt column: %w", err)
	}

	return nil
}
