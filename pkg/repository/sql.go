package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/diskworker"
)

// SQLStore is a Repository backed by GORM. SQLite schemas are created with
// AutoMigrate; PostgreSQL schemas come from the embedded migrations.
type SQLStore struct {
	db     *gorm.DB
	config *Config
}

// NewSQLStore opens (and if needed creates) the repository database.
func NewSQLStore(ctx context.Context, config *Config) (*SQLStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypePostgres:
		if err := runMigrations(ctx, config.Postgres.DSN()); err != nil {
			return nil, err
		}
		dialector = postgres.Open(config.Postgres.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	switch config.Type {
	case DatabaseTypePostgres:
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)

	case DatabaseTypeSQLite:
		if err := db.AutoMigrate(allModels()...); err != nil {
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}

	logger.Info("Repository opened", logger.KeyStore, string(config.Type))
	return &SQLStore{db: db, config: config}, nil
}

// DB returns the underlying GORM connection.
func (s *SQLStore) DB() *gorm.DB { return s.db }

// Close closes the database.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateFolder adds a folder named name under parent and returns its id.
func (s *SQLStore) CreateFolder(ctx context.Context, name string, parent FolderID) (FolderID, error) {
	var folder Folder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !parent.IsRoot() {
			var n int64
			if err := tx.Model(&Folder{}).Where("id = ?", int64(parent)).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrFolderNotFound
			}
		}

		var siblings int64
		if err := tx.Model(&Folder{}).Where("parent_id = ?", int64(parent)).Count(&siblings).Error; err != nil {
			return err
		}

		folder = Folder{ParentID: int64(parent), Name: name, Position: int(siblings)}
		return tx.Create(&folder).Error
	})
	if err != nil {
		return Root, fmt.Errorf("create folder %q: %w", name, err)
	}
	return FolderID(folder.ID), nil
}

// AddAsset appends key to folder.
func (s *SQLStore) AddAsset(ctx context.Context, folder FolderID, key asset.Key) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Asset{}).Where("folder_id = ?", int64(folder)).Count(&n).Error; err != nil {
			return err
		}
		return tx.Create(&Asset{FolderID: int64(folder), Path: key.String(), Position: int(n)}).Error
	})
	if isUniqueConstraintError(err) {
		return ErrDuplicateAsset
	}
	if err != nil {
		return fmt.Errorf("add asset %s: %w", key, err)
	}
	return nil
}

// ImportStats summarises an ImportTree run.
type ImportStats struct {
	Folders int
	Assets  int
	Skipped int
}

// ImportTree mirrors a directory tree: root maps to Root, every
// subdirectory becomes a folder, and every image file an asset. Existing
// folders are reused and known paths skipped, so importing twice is harmless.
func (s *SQLStore) ImportTree(ctx context.Context, root string) (ImportStats, error) {
	var stats ImportStats

	abs, err := filepath.Abs(root)
	if err != nil {
		return stats, fmt.Errorf("import %s: %w", root, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := map[string]FolderID{abs: Root}
		positions := map[FolderID]int{}

		return filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if path == abs {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			parent := ids[filepath.Dir(path)]

			if d.IsDir() {
				var folder Folder
				err := tx.Where("parent_id = ? AND name = ?", int64(parent), d.Name()).Take(&folder).Error
				switch {
				case err == nil:
				case errors.Is(err, gorm.ErrRecordNotFound):
					folder = Folder{ParentID: int64(parent), Name: d.Name(), Position: positions[parent]}
					if err := tx.Create(&folder).Error; err != nil {
						return err
					}
					positions[parent]++
					stats.Folders++
				default:
					return err
				}
				ids[path] = FolderID(folder.ID)
				return nil
			}

			if !d.Type().IsRegular() || !diskworker.IsImagePath(path) {
				return nil
			}

			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Asset{
				FolderID: int64(parent),
				Path:     asset.NewKey(path).String(),
				Position: positions[parent],
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				stats.Skipped++
				return nil
			}
			positions[parent]++
			stats.Assets++
			return nil
		})
	})
	if err != nil {
		return stats, fmt.Errorf("import %s: %w", root, err)
	}

	logger.Info("Imported directory tree",
		logger.KeyPath, abs,
		"folders", stats.Folders,
		"assets", stats.Assets,
		"skipped", stats.Skipped)
	return stats, nil
}

// ImagePathsForFolder implements Repository.
func (s *SQLStore) ImagePathsForFolder(id FolderID) []asset.Key {
	var paths []string
	err := s.db.Model(&Asset{}).
		Where("folder_id = ?", int64(id)).
		Order("position, id").
		Pluck("path", &paths).Error
	if err != nil {
		logger.Error("Failed to list folder images", logger.FolderID(int64(id)), logger.Err(err))
		return nil
	}

	keys := make([]asset.Key, len(paths))
	for i, p := range paths {
		keys[i] = asset.Key(p)
	}
	return keys
}

// ParentOf implements Repository.
func (s *SQLStore) ParentOf(id FolderID) (FolderID, bool) {
	if id.IsRoot() {
		return Root, false
	}
	var folder Folder
	err := s.db.Select("parent_id").Where("id = ?", int64(id)).Take(&folder).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to resolve parent folder", logger.FolderID(int64(id)), logger.Err(err))
		}
		return Root, false
	}
	return FolderID(folder.ParentID), true
}

// SubfolderIDs implements Repository.
func (s *SQLStore) SubfolderIDs(id FolderID) []FolderID {
	var ids []int64
	err := s.db.Model(&Folder{}).
		Where("parent_id = ?", int64(id)).
		Order("position, id").
		Pluck("id", &ids).Error
	if err != nil {
		logger.Error("Failed to list subfolders", logger.FolderID(int64(id)), logger.Err(err))
		return nil
	}

	out := make([]FolderID, len(ids))
	for i, v := range ids {
		out[i] = FolderID(v)
	}
	return out
}

// FolderByName returns the first folder named name under parent.
func (s *SQLStore) FolderByName(ctx context.Context, parent FolderID, name string) (FolderID, error) {
	var folder Folder
	err := s.db.WithContext(ctx).
		Where("parent_id = ? AND name = ?", int64(parent), name).
		Order("position, id").
		Take(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Root, ErrFolderNotFound
	}
	if err != nil {
		return Root, err
	}
	return FolderID(folder.ID), nil
}

// isUniqueConstraintError checks for SQLite and PostgreSQL unique violations.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
