package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
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

const (
	minDescriptionLength = 30
	maxTitleLength       = 200
	ticketPrefix         = "BRO-"
	ticketAlphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	ticketLength         = 4
	ticketAttempts       = 8
	recentComplaints     = 5
)

// ErrTicketExhausted is returned when no free ticket code was found.
var ErrTicketExhausted = errors.New("could not allocate a unique ticket code")

// ComplaintService implements the complaint lifecycle for students and staff.
type ComplaintService interface {
	Submit(ctx context.Context, sess session.Session, req dto.ComplaintCreateRequest, screenshot *multipart.FileHeader) (dto.ComplaintResponse, error)
	List(ctx context.Context, sess session.Session, req dto.ComplaintListRequest) (dto.ComplaintListResponse, error)
	Get(ctx context.Context, sess session.Session, id string) (dto.ComplaintResponse, error)
	Update(ctx context.Context, sess session.Session, id string, req dto.ComplaintUpdateRequest) (dto.ComplaintResponse, error)
	Dashboard(ctx context.Context, sess session.Session) (dto.DashboardResponse, error)
}

type complaintService struct {
	repo        repository.ComplaintRepository
	users       repository.UserRepository
	screenshots ScreenshotService
	events      EventQueue
	activity    ActivityRecorder
	analytics   cacheInvalidator
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	newTicket   func() (string, error)
}

// NewComplaintService wires the complaint service. screenshots, events, activity and analytics may be nil.
func NewComplaintService(
	repo repository.ComplaintRepository,
	users repository.UserRepository,
	screenshots ScreenshotService,
	events EventQueue,
	activity ActivityRecorder,
	analytics AnalyticsService,
	validate *validator.Validate,
	logger zerolog.Logger,
) ComplaintService {
	svc := &complaintService{
		repo:        repo,
		users:       users,
		screenshots: screenshots,
		events:      events,
		activity:    activity,
		validator:   validate,
		logger:      logger.With().Str("component", "complaint_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/brovoice-api/internal/service/complaint"),
		newTicket:   randomTicketID,
	}
	if analytics != nil {
		svc.analytics = analytics
	}
	return svc
}

func (s *complaintService) Submit(ctx context.Context, sess session.Session, req dto.ComplaintCreateRequest, screenshot *multipart.FileHeader) (dto.ComplaintResponse, error) {
	ctx, span := s.tracer.Start(ctx, "complaints.submit")
	defer span.End()

	if err := sess.Require(models.RoleStudent); err != nil {
		return dto.ComplaintResponse{}, err
	}

	complaint, err := s.prepareComplaint(req)
	if err != nil {
		return dto.ComplaintResponse{}, err
	}
	span.SetAttributes(attribute.String("complaint.category", complaint.Category))

	if !complaint.IsAnonymous {
		profile, err := s.users.GetByID(ctx, sess.UserID)
		switch {
		case err == nil && strings.TrimSpace(profile.FullName) != "":
			name := strings.TrimSpace(profile.FullName)
			complaint.StudentName = &name
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Warn().Err(err).Str("user_id", sess.UserID).Msg("failed to resolve student name")
		}
	}

	if screenshot != nil {
		if s.screenshots == nil {
			return dto.ComplaintResponse{}, newValidationError("screenshot", "uploads are not enabled")
		}
		stored, err := s.screenshots.Upload(ctx, sess, screenshot)
		if err != nil {
			return dto.ComplaintResponse{}, err
		}
		complaint.ScreenshotURL = &stored.URL
	}

	if err := s.createWithTicket(ctx, sess, &complaint); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.ComplaintResponse{}, err
	}

	observability.ComplaintsSubmitted().WithLabelValues(complaint.Category).Inc()
	s.invalidateAnalytics(ctx)
	s.emit(ctx, NewComplaintEvent(EventComplaintCreated, complaint, sess.UserID, complaint.CreatedAt))
	actor := sess
	if complaint.IsAnonymous {
		actor = session.Session{Role: sess.Role}
	}
	s.record(ctx, ActivityEntry{
		Actor:      actor,
		Action:     ActionComplaintSubmitted,
		EntityType: "complaint",
		EntityID:   complaint.ID,
		Metadata: map[string]interface{}{
			"ticket_id":    complaint.TicketID,
			"category":     complaint.Category,
			"is_anonymous": complaint.IsAnonymous,
		},
	})

	s.logger.Info().Str("ticket_id", complaint.TicketID).Str("user_id", sess.UserID).Msg("complaint submitted")
	span.SetStatus(codes.Ok, "submitted")
	return dto.NewComplaintResponse(complaint), nil
}

func (s *complaintService) prepareComplaint(req dto.ComplaintCreateRequest) (models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Complaint{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return models.Complaint{}, newValidationError("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return models.Complaint{}, newValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}

	category, ok := NormalizeCategory(req.Category)
	if !ok {
		return models.Complaint{}, newValidationError("category", "must be one of: "+strings.Join(models.ComplaintCategories, " "))
	}

	description := strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(description) < minDescriptionLength {
		return models.Complaint{}, newValidationError("description", fmt.Sprintf("must be at least %d characters", minDescriptionLength))
	}

	return models.Complaint{
		Title:       title,
		Category:    category,
		Description: description,
		Status:      models.ComplaintStatusNew,
		IsAnonymous: req.IsAnonymous,
	}, nil
}

// NormalizeCategory accepts a category key, its label or a hyphenated key, case-insensitively.
func NormalizeCategory(value string) (string, bool) {
	candidate := strings.ToLower(strings.TrimSpace(value))
	if candidate == "" {
		return "", false
	}
	keyed := strings.ReplaceAll(strings.ReplaceAll(candidate, "-", "_"), " ", "_")
	if models.IsValidComplaintCategory(keyed) {
		return keyed, true
	}
	for _, category := range models.ComplaintCategories {
		if strings.EqualFold(models.CategoryLabel(category), strings.TrimSpace(value)) {
			return category, true
		}
	}
	return "", false
}

// createWithTicket inserts the complaint under a fresh ticket code. A concurrent submit can take the same
// code between the existence check and the insert; the unique index rejects it and a new code is drawn.
func (s *complaintService) createWithTicket(ctx context.Context, sess session.Session, complaint *models.Complaint) error {
	for attempt := 0; attempt < ticketAttempts; attempt++ {
		ticket, err := s.allocateTicket(ctx)
		if err != nil {
			return err
		}
		complaint.TicketID = ticket

		err = s.repo.Create(ctx, sess, complaint)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("create complaint: %w", err)
		}
		complaint.ID = ""
		s.logger.Debug().Str("ticket_id", ticket).Msg("ticket code taken concurrently, retrying")
	}
	return ErrTicketExhausted
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func (s *complaintService) allocateTicket(ctx context.Context) (string, error) {
	for attempt := 0; attempt < ticketAttempts; attempt++ {
		ticket, err := s.newTicket()
		if err != nil {
			return "", err
		}
		exists, err := s.repo.TicketExists(ctx, ticket)
		if err != nil {
			return "", fmt.Errorf("check ticket code: %w", err)
		}
		if !exists {
			return ticket, nil
		}
		s.logger.Debug().Str("ticket_id", ticket).Msg("ticket code collision, retrying")
	}
	return "", ErrTicketExhausted
}

func randomTicketID() (string, error) {
	var b strings.Builder
	b.WriteString(ticketPrefix)
	base := big.NewInt(int64(len(ticketAlphabet)))
	for i := 0; i < ticketLength; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		b.WriteByte(ticketAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *complaintService) List(ctx context.Context, sess session.Session, req dto.ComplaintListRequest) (dto.ComplaintListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "complaints.list")
	defer span.End()

	filter := repository.ComplaintFilter{Statuses: req.Statuses}
	if status := strings.TrimSpace(req.Status); status != "" {
		if !models.IsValidComplaintStatus(status) {
			return dto.ComplaintListResponse{}, newValidationError("status", "must be one of: "+strings.Join(models.ComplaintStatuses, " "))
		}
		filter.Statuses = []string{status}
	}
	if category := strings.TrimSpace(req.Category); category != "" {
		normalized, ok := NormalizeCategory(category)
		if !ok {
			return dto.ComplaintListResponse{}, newValidationError("category", "must be one of: "+strings.Join(models.ComplaintCategories, " "))
		}
		filter.Category = normalized
	}

	complaints, _, err := s.repo.List(ctx, sess, filter)
	if err != nil {
		span.RecordError(err)
		return dto.ComplaintListResponse{}, err
	}

	matched := FilterComplaints(complaints, ComplaintQuery{Search: req.Search})
	span.SetAttributes(attribute.Int("complaints.matched", len(matched)))

	page, pageSize := req.Page, req.PageSize
	if page <= 0 {
		page = 1
	}
	items := matched
	if pageSize > 0 {
		start := (page - 1) * pageSize
		if start > len(matched) {
			start = len(matched)
		}
		end := start + pageSize
		if end > len(matched) {
			end = len(matched)
		}
		items = matched[start:end]
	}

	return dto.ComplaintListResponse{
		Items:      dto.NewComplaintResponseSlice(items),
		Pagination: dto.NewPaginationMeta(page, pageSize, int64(len(matched))),
	}, nil
}

func (s *complaintService) Get(ctx context.Context, sess session.Session, id string) (dto.ComplaintResponse, error) {
	complaint, err := s.repo.GetByID(ctx, sess, strings.TrimSpace(id))
	if err != nil {
		return dto.ComplaintResponse{}, mapComplaintError(err)
	}
	return dto.NewComplaintResponse(complaint), nil
}

func (s *complaintService) Update(ctx context.Context, sess session.Session, id string, req dto.ComplaintUpdateRequest) (dto.ComplaintResponse, error) {
	ctx, span := s.tracer.Start(ctx, "complaints.update", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	if err := sess.RequireStaff(); err != nil {
		return dto.ComplaintResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ComplaintResponse{}, err
	}

	changes := repository.ComplaintChanges{
		Status:               req.Status,
		InternalNotes:        trimOptional(req.InternalNotes),
		ResolutionNote:       trimOptional(req.ResolutionNote),
		ExpectedResolutionAt: req.ExpectedResolutionAt,
	}
	if changes.Empty() {
		return dto.ComplaintResponse{}, ErrNothingToUpdate
	}

	previous, err := s.repo.GetByID(ctx, sess, id)
	if err != nil {
		return dto.ComplaintResponse{}, mapComplaintError(err)
	}

	updated, err := s.repo.Update(ctx, sess, id, changes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return dto.ComplaintResponse{}, mapComplaintError(err)
	}

	observability.ComplaintUpdates().WithLabelValues(updated.Status).Inc()
	s.invalidateAnalytics(ctx)

	var pending []ComplaintEvent
	if updated.Status != previous.Status {
		event := NewComplaintEvent(EventStatusChanged, updated, sess.UserID, updated.UpdatedAt)
		event.PreviousStatus = previous.Status
		pending = append(pending, event)
	}
	if changes.ResolutionNote != nil && *changes.ResolutionNote != "" && *changes.ResolutionNote != derefString(previous.ResolutionNote) {
		pending = append(pending, NewComplaintEvent(EventResolutionAdded, updated, sess.UserID, updated.UpdatedAt))
	}
	s.emitToOwner(ctx, pending)

	s.record(ctx, ActivityEntry{
		Actor:      sess,
		Action:     ActionComplaintUpdated,
		EntityType: "complaint",
		EntityID:   updated.ID,
		Metadata: map[string]interface{}{
			"ticket_id":   updated.TicketID,
			"status_from": previous.Status,
			"status_to":   updated.Status,
			"fields":      changedFields(changes),
		},
	})

	return dto.NewComplaintResponse(updated), nil
}

func (s *complaintService) Dashboard(ctx context.Context, sess session.Session) (dto.DashboardResponse, error) {
	complaints, _, err := s.repo.List(ctx, sess, repository.ComplaintFilter{})
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	recent := complaints
	if len(recent) > recentComplaints {
		recent = recent[:recentComplaints]
	}

	return dto.DashboardResponse{
		Stats:  CountByStatus(complaints),
		Recent: dto.NewComplaintResponseSlice(recent),
	}, nil
}

// trimOptional keeps the text as written. Escaping happens where it is rendered.
func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

// emit publishes after the write committed; failures never reach the caller.
func (s *complaintService) emit(ctx context.Context, event ComplaintEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		observability.ComplaintEvents().WithLabelValues(event.Type, "dropped").Inc()
		s.logger.Warn().Err(err).Str("event", event.Type).Str("complaint_id", event.ComplaintID).Msg("failed to enqueue complaint event")
		return
	}
	observability.ComplaintEvents().WithLabelValues(event.Type, "queued").Inc()
}

// emitToOwner fills in the owner that redaction hides on anonymous complaints before emitting.
func (s *complaintService) emitToOwner(ctx context.Context, events []ComplaintEvent) {
	if len(events) == 0 || s.events == nil {
		return
	}
	if events[0].OwnerID == "" {
		owner, err := s.repo.OwnerOf(ctx, events[0].ComplaintID)
		if err != nil {
			s.logger.Warn().Err(err).Str("complaint_id", events[0].ComplaintID).Msg("failed to resolve complaint owner")
			return
		}
		for i := range events {
			events[i].OwnerID = owner
		}
	}
	for _, event := range events {
		s.emit(ctx, event)
	}
}

func (s *complaintService) invalidateAnalytics(ctx context.Context) {
	if s.analytics != nil {
		s.analytics.Invalidate(ctx)
	}
}

func (s *complaintService) record(ctx context.Context, entry ActivityEntry) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record complaint activity")
	}
}

func changedFields(changes repository.ComplaintChanges) []string {
	fields := make([]string, 0, 4)
	if changes.Status != nil {
		fields = append(fields, "status")
	}
	if changes.InternalNotes != nil {
		fields = append(fields, "internal_notes")
	}
	if changes.ResolutionNote != nil {
		fields = append(fields, "resolution_note")
	}
	if changes.ExpectedResolutionAt != nil {
		fields = append(fields, "expected_resolution_at")
	}
	return fields
}

func mapComplaintError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrComplaintNotFound
	}
	return err
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
