package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/models"
)

func TestScreenshotRepositoryFindByChecksumIsPerUser(t *testing.T) {
	db := setupTestDB(t, &models.ScreenshotUpload{})
	repo := NewScreenshotRepository(db)
	ctx := context.Background()

	first := models.ScreenshotUpload{UserID: "rahul", FileName: "error.png", URL: "https://cdn/1.png", MimeType: "image/png", SizeBytes: 10, Checksum: "abc"}
	second := models.ScreenshotUpload{UserID: "rahul", FileName: "error-again.png", URL: "https://cdn/2.png", MimeType: "image/png", SizeBytes: 10, Checksum: "abc"}
	require.NoError(t, repo.Create(ctx, &first))
	require.NoError(t, repo.Create(ctx, &second))

	found, err := repo.FindByChecksum(ctx, "rahul", "abc")
	require.NoError(t, err)
	require.Equal(t, second.ID, found.ID)

	_, err = repo.FindByChecksum(ctx, "priya", "abc")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.FindByChecksum(ctx, "rahul", "def")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
