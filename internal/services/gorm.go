package services

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ytakahashi/taskboard/internal/models"
)

// columns maps stored field names to SQL columns.
var columns = map[string]string{
	"id":          "id",
	"title":       "title",
	"description": "description",
	"status":      "status",
	"important":   "important",
	"userId":      "user_id",
	"createdAt":   "created_at",
}

// GormRepository stores tasks in a SQL database through gorm.
type GormRepository struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates the
// tasks table. Use ":memory:" for a throwaway database.
func OpenSQLite(path string, logLevel logger.LogLevel) (*GormRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&models.Task{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewGormRepository(db), nil
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) scope(ctx context.Context, where Where) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Task{})
	if where.ID != "" {
		q = q.Where("id = ?", where.ID)
	}
	if where.UserID != "" {
		q = q.Where("user_id = ?", where.UserID)
	}
	if where.Status != nil {
		q = q.Where("status = ?", string(*where.Status))
	}
	if where.Important != nil {
		q = q.Where("important = ?", *where.Important)
	}
	return q
}

func (r *GormRepository) FindMany(ctx context.Context, where Where, orderBy OrderBy) ([]models.Task, error) {
	q := r.scope(ctx, where)
	if orderBy.Field != "" {
		col, ok := columns[orderBy.Field]
		if !ok {
			return nil, fmt.Errorf("unknown order field %q", orderBy.Field)
		}
		if orderBy.Desc {
			col += " DESC"
		}
		q = q.Order(col)
	}

	tasks := []models.Task{}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	return tasks, nil
}

func (r *GormRepository) Create(ctx context.Context, task models.Task) error {
	if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *GormRepository) UpdateMany(ctx context.Context, where Where, fields map[string]any) (int, error) {
	if len(fields) == 0 {
		var count int64
		if err := r.scope(ctx, where).Count(&count).Error; err != nil {
			return 0, fmt.Errorf("failed to count tasks: %w", err)
		}
		return int(count), nil
	}

	updates := make(map[string]any, len(fields))
	for field, value := range fields {
		col, ok := columns[field]
		if !ok {
			return 0, fmt.Errorf("unknown field %q", field)
		}
		if s, ok := value.(models.Status); ok {
			value = string(s)
		}
		updates[col] = value
	}

	result := r.scope(ctx, where).Updates(updates)
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to update tasks: %w", err)
	}
	return int(result.RowsAffected), nil
}

func (r *GormRepository) DeleteMany(ctx context.Context, where Where) (int, error) {
	result := r.scope(ctx, where).Delete(&models.Task{})
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return int(result.RowsAffected), nil
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
