package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/observability"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the content is not a supported image.
	ErrUploadTypeNotAllowed = errors.New("only png, jpeg, gif and webp screenshots are allowed")
)

var allowedScreenshotTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FileStorage abstracts screenshot destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ScreenshotService validates and stores complaint screenshots.
type ScreenshotService interface {
	Upload(ctx context.Context, sess session.Session, file *multipart.FileHeader) (dto.ScreenshotResponse, error)
}

type screenshotService struct {
	storage FileStorage
	repo    repository.ScreenshotRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewScreenshotService constructs a screenshot service.
func NewScreenshotService(storage FileStorage, repo repository.ScreenshotRepository, maxSizeMB int, logger zerolog.Logger) ScreenshotService {
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	return &screenshotService{
		storage: storage,
		repo:    repo,
		logger:  logger.With().Str("component", "screenshot_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/brovoice-api/internal/service/screenshot"),
	}
}

func (s *screenshotService) Upload(ctx context.Context, sess session.Session, file *multipart.FileHeader) (dto.ScreenshotResponse, error) {
	ctx, span := s.tracer.Start(ctx, "screenshot.store")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.ScreenshotLatency().Observe(time.Since(start).Seconds())
	}()

	if err := sess.Require(); err != nil {
		return dto.ScreenshotResponse{}, err
	}
	if file == nil {
		return dto.ScreenshotResponse{}, newValidationError("screenshot", "is required")
	}
	span.SetAttributes(
		attribute.String("screenshot.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("screenshot.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		return dto.ScreenshotResponse{}, s.reject(span, "size", ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.ScreenshotResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.ScreenshotResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.ScreenshotResponse{}, s.reject(span, "size", ErrUploadTooLarge)
	}

	detected := mimetype.Detect(buf.Bytes())
	mimeType := strings.ToLower(detected.String())
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	span.SetAttributes(attribute.String("screenshot.detected_mime", mimeType))
	ext, ok := allowedScreenshotTypes[mimeType]
	if !ok {
		return dto.ScreenshotResponse{}, s.reject(span, "type", ErrUploadTypeNotAllowed)
	}

	sum := sha256.Sum256(buf.Bytes())
	checksum := hex.EncodeToString(sum[:])

	// A student re-attaching the same image reuses the stored object.
	previous, err := s.repo.FindByChecksum(ctx, sess.UserID, checksum)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("screenshot.reused", true))
		span.SetStatus(codes.Ok, "reused")
		return newScreenshotResponse(previous), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Warn().Err(err).Str("user_id", sess.UserID).Msg("screenshot lookup failed, uploading again")
	}

	name := sanitizeFileName(file.Filename, ext)
	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.ScreenshotRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.ScreenshotResponse{}, fmt.Errorf("store screenshot: %w", err)
	}

	record := models.ScreenshotUpload{
		UserID:    sess.UserID,
		FileName:  name,
		URL:       url,
		MimeType:  mimeType,
		SizeBytes: int64(buf.Len()),
		Checksum:  checksum,
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.ScreenshotResponse{}, err
	}

	span.SetStatus(codes.Ok, "stored")
	return newScreenshotResponse(record), nil
}

func newScreenshotResponse(record models.ScreenshotUpload) dto.ScreenshotResponse {
	return dto.ScreenshotResponse{
		URL:       record.URL,
		SizeBytes: record.SizeBytes,
		MimeType:  record.MimeType,
		Checksum:  record.Checksum,
		FileName:  record.FileName,
	}
}

func (s *screenshotService) reject(span trace.Span, reason string, err error) error {
	observability.ScreenshotRejected().WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return err
}

// sanitizeFileName lower-cases the base name, replaces anything outside [a-z0-9_-] and forces the sniffed extension.
func sanitizeFileName(name, ext string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("screenshot-%d", time.Now().Unix())
	}
	return base + ext
}
