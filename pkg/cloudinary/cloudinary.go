// Package cloudinary stores complaint screenshots as Cloudinary image assets.
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const screenshotTag = "brovoice-screenshot"

var allowedFormats = api.CldAPIArray{"png", "jpg", "gif", "webp"}

// UploadAPI is the subset of the Cloudinary upload client used by Service.
type UploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service uploads screenshots to Cloudinary.
type Service struct {
	upload UploadAPI
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service from account credentials.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return NewWithUploader(&cld.Upload, cfg.Folder, logger), nil
}

// NewWithUploader wraps an existing upload client.
func NewWithUploader(upload UploadAPI, folder string, logger zerolog.Logger) *Service {
	return &Service{
		upload: upload,
		folder: strings.Trim(folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}
}

// Upload stores the screenshot as a tagged image and returns its secure URL.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	result, err := s.upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       PublicID(name),
		ResourceType:   "image",
		Tags:           api.CldAPIArray{screenshotTag},
		AllowedFormats: allowedFormats,
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload screenshot: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("failed to upload screenshot: empty response")
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload screenshot: %s", result.Error.Message)
	}

	s.logger.Debug().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("screenshot stored")
	return result.SecureURL, nil
}

// PublicID turns a file name into an ascii slug with a short random suffix.
func PublicID(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "screenshot"
	}
	return slug + "-" + uuid.NewString()[:8]
}
