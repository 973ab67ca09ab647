package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	domain "github.com/postora/postora-server/internal/domain/upload"
	"github.com/postora/postora-server/internal/infrastructure/database/entities"
	"github.com/postora/postora-server/internal/utils/platformerrors"
	"github.com/postora/postora-server/utils/fileid"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&entities.StoredFile{}))
	return NewRepository(db)
}

func newFile(category domain.Category, userID *string) *domain.StoredFile {
	id := fileid.New()
	return &domain.StoredFile{
		ID:           id,
		OriginalName: "report.pdf",
		FileName:     fileid.Token() + ".pdf",
		FilePath:     "/srv/uploads/" + string(category) + "/" + id,
		FileSize:     2048,
		MimeType:     "application/pdf",
		Category:     category,
		UserID:       userID,
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	owner := "user-1"
	file := newFile(domain.CategoryDocument, &owner)

	require.NoError(t, repo.Create(ctx, file))
	assert.False(t, file.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.FileName, got.FileName)
	assert.Equal(t, file.FilePath, got.FilePath)
	assert.Equal(t, int64(2048), got.FileSize)
	assert.Equal(t, domain.CategoryDocument, got.Category)
	require.NotNil(t, got.UserID)
	assert.Equal(t, owner, *got.UserID)
}

func TestCreate_DuplicatePathFails(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	first := newFile(domain.CategoryImage, nil)
	require.NoError(t, repo.Create(ctx, first))

	second := newFile(domain.CategoryImage, nil)
	second.FilePath = first.FilePath
	err := repo.Create(ctx, second)

	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))
	platformErr := platformerrors.GetPlatformError(err)
	require.NotNil(t, platformErr)
	assert.Equal(t, second.ID, platformErr.Context["file_id"])
	assert.Equal(t, "image", platformErr.Context["category"])
}

func TestGetByID_NotFound(t *testing.T) {
	repo := setupRepository(t)

	id := fileid.New()
	_, err := repo.GetByID(context.Background(), id)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	platformErr := platformerrors.GetPlatformError(err)
	require.NotNil(t, platformErr)
	assert.Equal(t, platformerrors.LayerRepository, platformErr.Layer)
	assert.Equal(t, id, platformErr.Context["file_id"])
}

func TestDelete(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	file := newFile(domain.CategoryVideo, nil)
	require.NoError(t, repo.Create(ctx, file))

	require.NoError(t, repo.Delete(ctx, file.ID))

	_, err := repo.GetByID(ctx, file.ID)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	err = repo.Delete(ctx, file.ID)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestList_FiltersAndPages(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	alice, bob := "alice", "bob"

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newFile(domain.CategoryImage, &alice)))
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, repo.Create(ctx, newFile(domain.CategoryDocument, &alice)))
	require.NoError(t, repo.Create(ctx, newFile(domain.CategoryImage, &bob)))

	files, total, err := repo.List(ctx, domain.ListFilter{UserID: &alice, Category: domain.CategoryImage, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, files, 2)
	assert.True(t, !files[0].CreatedAt.Before(files[1].CreatedAt))

	rest, total, err := repo.List(ctx, domain.ListFilter{UserID: &alice, Category: domain.CategoryImage, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rest, 1)

	all, total, err := repo.List(ctx, domain.ListFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, all, 5)
}
