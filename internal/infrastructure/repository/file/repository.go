package file

import (
	"context"
	"errors"

	"gorm.io/gorm"

	domain "github.com/postora/postora-server/internal/domain/upload"
	"github.com/postora/postora-server/internal/infrastructure/database/entities"
	"github.com/postora/postora-server/internal/utils/platformerrors"
)

// Repository handles stored file persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, file *domain.StoredFile) error {
	entity := entities.StoredFile{
		ID:           file.ID,
		OriginalName: file.OriginalName,
		FileName:     file.FileName,
		FilePath:     file.FilePath,
		FileSize:     file.FileSize,
		MimeType:     file.MimeType,
		Category:     string(file.Category),
		UserID:       file.UserID,
	}
	if err := r.db.WithContext(ctx).Create(&entity).Error; err != nil {
		fields := map[string]any{
			"file_id":  file.ID,
			"category": string(file.Category),
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewErrorWithContext(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeConflict,
				"file record already exists",
				err,
				"c3f0e7a2-8d41-4b5e-9a6c-2e7d1f4b8c90",
				fields,
			)
		}
		return platformerrors.NewErrorWithContext(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create file record",
			err,
			"ea2098f9-efe5-43a9-830b-299a72e3082f",
			fields,
		)
	}
	file.CreatedAt = entity.CreatedAt
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.StoredFile, error) {
	var entity entities.StoredFile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewErrorWithContext(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"file not found",
				err,
				"80714003-5e1c-4bb6-81b7-6473dba245bf",
				map[string]any{"file_id": id},
			)
		}
		return nil, platformerrors.NewErrorWithContext(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to get file by id",
			err,
			"2d6956e5-08d6-4fd4-b99c-de0f8bdf2f2a",
			map[string]any{"file_id": id},
		)
	}
	file := mapEntity(entity)
	return &file, nil
}

// Delete removes a record. Deleting a missing record is NotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.StoredFile{})
	if result.Error != nil {
		return platformerrors.NewErrorWithContext(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete file record",
			result.Error,
			"54603aaf-44ed-440f-b8fe-f7834cb2f5e7",
			map[string]any{"file_id": id},
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewErrorWithContext(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"file not found",
			nil,
			"8782218b-65b1-4af4-80e4-b05ae406d8d4",
			map[string]any{"file_id": id},
		)
	}
	return nil
}

// List returns records matching filter, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.StoredFile, int64, error) {
	query := r.db.WithContext(ctx).Model(&entities.StoredFile{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", string(filter.Category))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count file records",
			err,
			"b84e1b2a-f9e3-4cf9-ac79-099e31b3179c",
		)
	}

	var rows []entities.StoredFile
	err := query.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list file records",
			err,
			"93704c64-1eb9-42b2-8383-a62d53fbbd7d",
		)
	}

	files := make([]*domain.StoredFile, 0, len(rows))
	for _, row := range rows {
		file := mapEntity(row)
		files = append(files, &file)
	}
	return files, total, nil
}

func mapEntity(entity entities.StoredFile) domain.StoredFile {
	return domain.StoredFile{
		ID:           entity.ID,
		OriginalName: entity.OriginalName,
		FileName:     entity.FileName,
		FilePath:     entity.FilePath,
		FileSize:     entity.FileSize,
		MimeType:     entity.MimeType,
		Category:     domain.Category(entity.Category),
		UserID:       entity.UserID,
		CreatedAt:    entity.CreatedAt,
	}
}
