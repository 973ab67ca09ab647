package entities

import "time"

// StoredFile represents the persisted upload metadata.
type StoredFile struct {
	ID           string    `gorm:"type:varchar(40);primaryKey"`
	OriginalName string    `gorm:"type:varchar(255);not null"`
	FileName     string    `gorm:"type:varchar(64);not null"`
	FilePath     string    `gorm:"type:text;not null;uniqueIndex:idx_files_file_path"`
	FileSize     int64     `gorm:"not null"`
	MimeType     string    `gorm:"type:varchar(255);not null"`
	Category     string    `gorm:"type:varchar(16);not null;index:idx_files_category_created_at,priority:1"`
	UserID       *string   `gorm:"type:varchar(64);index:idx_files_user_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_files_category_created_at,priority:2"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (StoredFile) TableName() string {
	return "files"
}
