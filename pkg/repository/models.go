package repository

import "time"

// Folder is a row of the folders table. ParentID 0 means the folder sits
// directly under Root.
type Folder struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ParentID  int64  `gorm:"index;not null;default:0"`
	Name      string `gorm:"not null"`
	Position  int    `gorm:"not null;default:0"`
	CreatedAt time.Time
}

// TableName returns the table name.
func (Folder) TableName() string { return "folders" }

// Asset is a row of the assets table. Path is the canonical asset key.
type Asset struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	FolderID  int64  `gorm:"index;not null;default:0"`
	Path      string `gorm:"uniqueIndex;not null;size:4096"`
	Position  int    `gorm:"not null;default:0"`
	CreatedAt time.Time
}

// TableName returns the table name.
func (Asset) TableName() string { return "assets" }

func allModels() []any {
	return []any{&Folder{}, &Asset{}}
}
