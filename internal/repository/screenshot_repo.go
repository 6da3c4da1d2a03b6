package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/models"
)

// ScreenshotRepository keeps the metadata of screenshots pushed to object storage.
type ScreenshotRepository interface {
	Create(ctx context.Context, record *models.ScreenshotUpload) error
	// FindByChecksum returns the newest upload of userID with the given sha256, or gorm.ErrRecordNotFound.
	FindByChecksum(ctx context.Context, userID, checksum string) (models.ScreenshotUpload, error)
}

type screenshotRepository struct {
	db *gorm.DB
}

func NewScreenshotRepository(db *gorm.DB) ScreenshotRepository {
	return &screenshotRepository{db: db}
}

func (r *screenshotRepository) Create(ctx context.Context, record *models.ScreenshotUpload) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *screenshotRepository) FindByChecksum(ctx context.Context, userID, checksum string) (models.ScreenshotUpload, error) {
	var record models.ScreenshotUpload
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND checksum = ?", userID, checksum).
		Order("created_at DESC").
		Order("id DESC").
		First(&record).Error
	return record, err
}
